// Package tz converts instants to local hours in named IANA zones.
package tz

import (
	"sync"
	"time"
)

var (
	mu    sync.RWMutex
	cache = map[string]*time.Location{}
)

// Location returns the zone for name, caching lookups. Unknown or empty names resolve to UTC.
func Location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}

	mu.RLock()
	loc, ok := cache[name]
	mu.RUnlock()
	if ok {
		return loc
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = time.UTC
	}

	mu.Lock()
	cache[name] = loc
	mu.Unlock()
	return loc
}

// Hour is the hour of day (0-23) of t in zone. It satisfies burn.HourFunc.
func Hour(t time.Time, zone string) int {
	return t.In(Location(zone)).Hour()
}

// Valid reports whether name is a loadable zone.
func Valid(name string) bool {
	if name == "" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}
