package ratelimit

import "time"

// Traffic classes known to the service. Endpoints pick one; anything else
// falls back to ClassDefault limits.
const (
	ClassDefault  = "default"
	ClassLogin    = "login"
	ClassRegister = "register"
)

// Role tiers, checked highest-first when resolving limits.
const (
	TierSuperuser = "superuser"
	TierPremium   = "premium"
	TierUser      = "user"
	TierGuest     = "guest"
)

var tierPriority = []string{TierSuperuser, TierPremium, TierUser, TierGuest}

// Config describes one leaky bucket: maximum level, continuous leak rate
// in requests per second, and how long an idle bucket is retained.
type Config struct {
	Capacity float64
	LeakRate float64
	TTL      time.Duration
}

// ClassLimits maps a role tier (or "default") to its bucket shape.
type ClassLimits map[string]Config

// Matrix is the full two-level rate-limit configuration:
// traffic class -> role tier -> bucket shape.
type Matrix map[string]ClassLimits

// Resolve picks the effective bucket config for a traffic class and a set
// of caller roles. Missing tiers fall back to the class default, missing
// classes to the top-level default class.
func (m Matrix) Resolve(class string, roles []string) Config {
	limits, ok := m[class]
	if !ok {
		limits = m[ClassDefault]
	}

	roleSet := make(map[string]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}

	for _, tier := range tierPriority {
		if !roleSet[tier] {
			continue
		}
		if cfg, ok := limits[tier]; ok {
			return cfg
		}
	}

	if cfg, ok := limits[ClassDefault]; ok {
		return cfg
	}
	return m[ClassDefault][ClassDefault]
}

// DefaultMatrix returns the built-in rate-limit configuration.
func DefaultMatrix() Matrix {
	return Matrix{
		ClassDefault: {
			ClassDefault:  {Capacity: 10, LeakRate: 1, TTL: 60 * time.Second},
			TierGuest:     {Capacity: 5, LeakRate: 0.5, TTL: 60 * time.Second},
			TierUser:      {Capacity: 20, LeakRate: 2, TTL: 300 * time.Second},
			TierPremium:   {Capacity: 100, LeakRate: 10, TTL: 3600 * time.Second},
			TierSuperuser: {Capacity: 500, LeakRate: 50, TTL: 86400 * time.Second},
		},
		ClassLogin: {
			ClassDefault:  {Capacity: 5, LeakRate: 0.5, TTL: 300 * time.Second},
			TierGuest:     {Capacity: 3, LeakRate: 0.3, TTL: 300 * time.Second},
			TierUser:      {Capacity: 10, LeakRate: 1, TTL: 600 * time.Second},
			TierPremium:   {Capacity: 20, LeakRate: 2, TTL: 1200 * time.Second},
			TierSuperuser: {Capacity: 50, LeakRate: 5, TTL: 3600 * time.Second},
		},
		ClassRegister: {
			ClassDefault: {Capacity: 3, LeakRate: 0.3, TTL: 300 * time.Second},
		},
	}
}
