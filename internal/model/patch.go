package model

// Patch is a partial Document.  A nil field leaves the current value alone.
// Config objects merge field by field through their own patch types;
// sequence fields always replace the current sequence wholesale.
type Patch struct {
    Rev          *int64           `json:"rev,omitempty"`
    Brand        *BrandPatch      `json:"brand,omitempty"`
    Background   *BackgroundPatch `json:"background,omitempty"`
    Layout       *LayoutPatch     `json:"layout,omitempty"`
    Security     *SecurityPatch   `json:"security,omitempty"`
    Payments     *PaymentsPatch   `json:"payments,omitempty"`
    Categories   *[]Category      `json:"categories,omitempty"`
    Tents        *[]Tent          `json:"tents,omitempty"`
    Reservations *[]Reservation   `json:"reservations,omitempty"`
    Logs         *[]LogEntry      `json:"logs,omitempty"`
}

type BrandPatch struct {
    Name     *string `json:"name,omitempty"`
    LogoURL  *string `json:"logoUrl,omitempty"`
    LogoSize *int    `json:"logoSize,omitempty"`
}

type BackgroundPatch struct {
    PublicPath *string `json:"publicPath,omitempty"`
}

type LayoutPatch struct {
    Count *int `json:"count,omitempty"`
}

type SecurityPatch struct {
    PINHash *string `json:"pinHash,omitempty"`
}

type PaymentsPatch struct {
    USDToVES  *float64          `json:"usdToVES,omitempty"`
    Currency  *string           `json:"currency,omitempty"`
    WhatsApp  *string           `json:"whatsapp,omitempty"`
    MP        *MercadoPagoPatch `json:"mp,omitempty"`
    PagoMovil *PagoMovilPatch   `json:"pagoMovil,omitempty"`
    Zelle     *ZellePatch       `json:"zelle,omitempty"`
}

type MercadoPagoPatch struct {
    Link  *string `json:"link,omitempty"`
    Alias *string `json:"alias,omitempty"`
}

type PagoMovilPatch struct {
    Bank  *string `json:"bank,omitempty"`
    RIF   *string `json:"rif,omitempty"`
    Phone *string `json:"phone,omitempty"`
}

type ZellePatch struct {
    Email *string `json:"email,omitempty"`
    Name  *string `json:"name,omitempty"`
}

// IsEmpty reports whether applying p would change nothing.
func (p Patch) IsEmpty() bool {
    return p.Rev == nil && p.Brand == nil && p.Background == nil && p.Layout == nil &&
        p.Security == nil && p.Payments == nil && p.Categories == nil && p.Tents == nil &&
        p.Reservations == nil && p.Logs == nil
}

// Apply merges p into a copy of d and returns it.  Neither d nor p is
// modified and the result shares no slices with either.
func (d Document) Apply(p Patch) Document {
    out := d.Clone()
    if p.Rev != nil {
        out.Rev = *p.Rev
    }
    if p.Brand != nil {
        out.Brand = p.Brand.apply(out.Brand)
    }
    if p.Background != nil {
        set(&out.Background.PublicPath, p.Background.PublicPath)
    }
    if p.Layout != nil {
        set(&out.Layout.Count, p.Layout.Count)
    }
    if p.Security != nil {
        set(&out.Security.PINHash, p.Security.PINHash)
    }
    if p.Payments != nil {
        out.Payments = p.Payments.apply(out.Payments)
    }
    if p.Categories != nil {
        out.Categories = cloneCategories(*p.Categories)
    }
    if p.Tents != nil {
        out.Tents = append([]Tent{}, (*p.Tents)...)
    }
    if p.Reservations != nil {
        out.Reservations = cloneReservations(*p.Reservations)
    }
    if p.Logs != nil {
        out.Logs = append([]LogEntry{}, (*p.Logs)...)
    }
    return out
}

func (p BrandPatch) apply(b Brand) Brand {
    set(&b.Name, p.Name)
    set(&b.LogoURL, p.LogoURL)
    set(&b.LogoSize, p.LogoSize)
    return b
}

func (p PaymentsPatch) apply(pm Payments) Payments {
    set(&pm.USDToVES, p.USDToVES)
    set(&pm.Currency, p.Currency)
    set(&pm.WhatsApp, p.WhatsApp)
    if p.MP != nil {
        set(&pm.MP.Link, p.MP.Link)
        set(&pm.MP.Alias, p.MP.Alias)
    }
    if p.PagoMovil != nil {
        set(&pm.PagoMovil.Bank, p.PagoMovil.Bank)
        set(&pm.PagoMovil.RIF, p.PagoMovil.RIF)
        set(&pm.PagoMovil.Phone, p.PagoMovil.Phone)
    }
    if p.Zelle != nil {
        set(&pm.Zelle.Email, p.Zelle.Email)
        set(&pm.Zelle.Name, p.Zelle.Name)
    }
    return pm
}

func set[T any](dst *T, v *T) {
    if v != nil {
        *dst = *v
    }
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
    out := d
    out.Categories = cloneCategories(d.Categories)
    out.Tents = cloneSlice(d.Tents)
    out.Reservations = cloneReservations(d.Reservations)
    out.Logs = cloneSlice(d.Logs)
    return out
}

func cloneSlice[T any](s []T) []T {
    if s == nil {
        return nil
    }
    return append(make([]T, 0, len(s)), s...)
}

func cloneCategories(cs []Category) []Category {
    if cs == nil {
        return nil
    }
    out := make([]Category, len(cs))
    for i, c := range cs {
        c.Items = cloneSlice(c.Items)
        out[i] = c
    }
    return out
}

func cloneReservations(rs []Reservation) []Reservation {
    if rs == nil {
        return nil
    }
    out := make([]Reservation, len(rs))
    for i, r := range rs {
        r.Cart = cloneSlice(r.Cart)
        out[i] = r
    }
    return out
}

// Ptr is a small helper for building patches inline.
func Ptr[T any](v T) *T { return &v }
