// Package geo defines the pluggable IP-to-location lookup the tracking
// pipeline consumes. Lookups are best-effort: every failure degrades to the
// Unknown location and must never block or fail a hit.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// UnknownValue is the field value used when a lookup failed or missed
const UnknownValue = "Unknown"

// ErrNotFound is returned by resolvers that have no data for an IP
var ErrNotFound = errors.New("geo: no location for ip")

// Location holds the resolved geo facts for an IP address
type Location struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	City    string `json:"city"`
	ISP     string `json:"isp"`
}

// Unknown returns the degraded location used when resolution fails
func Unknown() Location {
	return Location{
		Country: UnknownValue,
		Region:  UnknownValue,
		City:    UnknownValue,
		ISP:     UnknownValue,
	}
}

// IsUnknown reports whether the location carries no usable geo data
func (l Location) IsUnknown() bool {
	return (l.Country == "" || l.Country == UnknownValue) &&
		(l.Region == "" || l.Region == UnknownValue) &&
		(l.City == "" || l.City == UnknownValue)
}

// Resolver looks up the location for an IP address
type Resolver interface {
	Resolve(ctx context.Context, ip string) (Location, error)
}

// NullResolver is used when no geo backend is configured; every lookup
// resolves to Unknown without error.
type NullResolver struct{}

// Resolve always returns the Unknown location
func (NullResolver) Resolve(_ context.Context, _ string) (Location, error) {
	return Unknown(), nil
}

// StaticResolver serves locations from a fixed map, keyed by IP.
// Useful for tests and fixtures.
type StaticResolver map[string]Location

// Resolve returns the mapped location or ErrNotFound
func (r StaticResolver) Resolve(_ context.Context, ip string) (Location, error) {
	loc, ok := r[ip]
	if !ok {
		return Unknown(), ErrNotFound
	}
	return loc, nil
}

// CachedResolver decorates another resolver with a per-IP redis cache so a
// burst of hits from one address costs a single upstream lookup within the
// TTL window. Cache failures fall through to the inner resolver.
type CachedResolver struct {
	inner Resolver
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedResolver wraps inner with a redis cache. A nil client or
// non-positive TTL disables caching and returns the inner resolver behavior.
func NewCachedResolver(inner Resolver, rdb *redis.Client, ttl time.Duration) *CachedResolver {
	return &CachedResolver{inner: inner, rdb: rdb, ttl: ttl}
}

// Resolve returns the cached location for ip, or resolves and caches it
func (r *CachedResolver) Resolve(ctx context.Context, ip string) (Location, error) {
	if r.rdb == nil || r.ttl <= 0 {
		return r.inner.Resolve(ctx, ip)
	}

	key := "geo:" + ip
	if raw, err := r.rdb.Get(ctx, key).Result(); err == nil {
		var loc Location
		if json.Unmarshal([]byte(raw), &loc) == nil {
			return loc, nil
		}
	}

	loc, err := r.inner.Resolve(ctx, ip)
	if err != nil {
		return loc, err
	}

	if data, err := json.Marshal(loc); err == nil {
		r.rdb.Set(ctx, key, data, r.ttl)
	}
	return loc, nil
}
