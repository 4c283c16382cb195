package utils // package utils provides token and PIN helpers for the admin login

import (
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the only role the board issues.  Anyone holding the PIN acts
// as staff.
const RoleAdmin = "ADMIN"

// AccessToken is a signed JWT along with its expiry.
type AccessToken struct {
    Token string    `json:"access_token"`
    Exp   time.Time `json:"expires_at"`
}

// NewAccessToken builds and signs an HS256 JWT.  The token carries the
// subject (sub), role, expiration (exp) and issued at (iat) claims.
func NewAccessToken(secret, subject, role string, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.MapClaims{
        "sub":  subject,
        "role": role,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}
