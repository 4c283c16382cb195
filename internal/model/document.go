package model

import "time"

// MaxLogEntries bounds Document.Logs; older entries are dropped.
const MaxLogEntries = 200

// Document is the single shared record behind the board.  Every client reads
// and writes the whole thing through the key-value store; Rev only mirrors
// the external revision counter and is informational.
type Document struct {
    Rev          int64         `json:"rev"`
    Brand        Brand         `json:"brand"`
    Background   Background    `json:"background"`
    Layout       Layout        `json:"layout"`
    Security     Security      `json:"security"`
    Payments     Payments      `json:"payments"`
    Categories   []Category    `json:"categories"`
    Tents        []Tent        `json:"tents"`
    Reservations []Reservation `json:"reservations"` // newest first
    Logs         []LogEntry    `json:"logs"`         // newest first, at most MaxLogEntries
}

// Brand holds the name and logo shown in the top bar.
type Brand struct {
    Name     string `json:"name"`
    LogoURL  string `json:"logoUrl"`
    LogoSize int    `json:"logoSize"`
}

// Background points to the map image the tents are drawn on.
type Background struct {
    PublicPath string `json:"publicPath"`
}

// Layout is the tent count used when the grid is regenerated.
type Layout struct {
    Count int `json:"count"`
}

// Security carries the bcrypt hash of the admin PIN.  It is stripped from
// public reads.
type Security struct {
    PINHash string `json:"pinHash"`
}

// Payments lists the instructions shown to customers after they reserve.
type Payments struct {
    USDToVES  float64     `json:"usdToVES"`
    Currency  string      `json:"currency"`
    WhatsApp  string      `json:"whatsapp"`
    MP        MercadoPago `json:"mp"`
    PagoMovil PagoMovil   `json:"pagoMovil"`
    Zelle     Zelle       `json:"zelle"`
}

type MercadoPago struct {
    Link  string `json:"link"`
    Alias string `json:"alias"`
}

type PagoMovil struct {
    Bank  string `json:"bank"`
    RIF   string `json:"rif"`
    Phone string `json:"phone"`
}

type Zelle struct {
    Email string `json:"email"`
    Name  string `json:"name"`
}

// Category groups extra items customers can add to their cart.
type Category struct {
    ID    string `json:"id"`
    Name  string `json:"name"`
    Items []Item `json:"items"`
}

type Item struct {
    ID    string  `json:"id"`
    Name  string  `json:"name"`
    Price float64 `json:"price"`
    Img   string  `json:"img,omitempty"`
}

// LogEntry is an informational audit row.
type LogEntry struct {
    TS      time.Time `json:"ts"`
    Type    string    `json:"type"`
    Message string    `json:"message"`
}

// Public returns a copy safe to hand to unauthenticated readers.
func (d Document) Public() Document {
    d.Security = Security{}
    return d
}

// FindTent returns the index of the tent with the given id or -1.
func (d Document) FindTent(id int) int {
    for i, t := range d.Tents {
        if t.ID == id {
            return i
        }
    }
    return -1
}

// FindReservation returns the index of the reservation with the given id or -1.
func (d Document) FindReservation(id string) int {
    for i, r := range d.Reservations {
        if r.ID == id {
            return i
        }
    }
    return -1
}

// ActiveHold returns the pending, unexpired reservation holding tentID.
func (d Document) ActiveHold(tentID int, now time.Time) (Reservation, bool) {
    for _, r := range d.Reservations {
        if r.TentID == tentID && r.Active(now) {
            return r, true
        }
    }
    return Reservation{}, false
}

// AppendLog returns logs with entry prepended, trimmed to MaxLogEntries.
func AppendLog(logs []LogEntry, entry LogEntry) []LogEntry {
    n := len(logs) + 1
    if n > MaxLogEntries {
        n = MaxLogEntries
    }
    out := make([]LogEntry, 0, n)
    out = append(out, entry)
    for _, l := range logs {
        if len(out) == n {
            break
        }
        out = append(out, l)
    }
    return out
}

// DefaultDocument is the seed written on first load.  Tents are left empty;
// callers generate the grid from Layout.Count.
func DefaultDocument(pinHash string) Document {
    return Document{
        Brand:      Brand{Name: "Coral Club", LogoURL: "/logo.png", LogoSize: 42},
        Background: Background{PublicPath: "/Mapa.png"},
        Layout:     Layout{Count: 20},
        Security:   Security{PINHash: pinHash},
        Payments: Payments{
            Currency: "USD",
            WhatsApp: "584121234567",
        },
        Categories: []Category{
            {
                ID:   "servicios",
                Name: "Servicios",
                Items: []Item{
                    {ID: "sombrilla", Name: "Sombrilla (1 mesa + 2 sillas)", Price: 10, Img: "/img/sombrilla.png"},
                    {ID: "toalla", Name: "Toalla Extra", Price: 2, Img: "/img/toalla.png"},
                    {ID: "hielera", Name: "Hielera con Hielo", Price: 5, Img: "/img/hielera.png"},
                },
            },
            {
                ID:   "bebidas",
                Name: "Bebidas",
                Items: []Item{
                    {ID: "agua", Name: "Agua Mineral", Price: 2.5, Img: "/img/agua.png"},
                    {ID: "refresco", Name: "Refresco", Price: 3.0, Img: "/img/refresco.png"},
                },
            },
        },
        Tents:        []Tent{},
        Reservations: []Reservation{},
        Logs:         []LogEntry{},
    }
}
