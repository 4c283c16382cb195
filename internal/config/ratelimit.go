package config

import "time"

// RateLimitConfig sizes the token buckets in front of write routes.  Every
// client gets Burst writes per scope and regains one each RefillEvery.
// Admin login has its own, smaller bucket so a PIN cannot be guessed by
// brute force.
type RateLimitConfig struct {
    Enabled     bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
    Burst       int           `envconfig:"RATE_LIMIT_BURST" default:"20"`
    LoginBurst  int           `envconfig:"RATE_LIMIT_LOGIN_BURST" default:"5"`
    RefillEvery time.Duration `envconfig:"RATE_LIMIT_REFILL_EVERY" default:"3s"`
    Prefix      string        `envconfig:"RATE_LIMIT_PREFIX" default:"coralclub:rl"`
}

// normalize clamps values that would make a bucket useless.
func (r RateLimitConfig) normalize() RateLimitConfig {
    if r.Burst < 1 {
        r.Burst = 1
    }
    if r.LoginBurst < 1 {
        r.LoginBurst = 1
    }
    if r.RefillEvery <= 0 {
        r.RefillEvery = time.Second
    }
    if r.Prefix == "" {
        r.Prefix = "coralclub:rl"
    }
    return r
}

// TTL is how long an idle bucket is kept: long enough for a full bucket
// to refill from empty.
func (r RateLimitConfig) TTL(burst int) time.Duration {
    return time.Duration(burst+1) * r.RefillEvery
}
