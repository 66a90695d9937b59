package timezone

import (
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

const defaultCapacity = 64

// Resolver loads IANA zones once and keeps the parsed locations in a 2Q cache.
type Resolver struct {
	locations *lru.TwoQueueCache
}

func NewResolver(capacity int) (*Resolver, error) {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	locations, err := lru.New2Q(capacity)
	if err != nil {
		return nil, fmt.Errorf("create location cache: %w", err)
	}
	return &Resolver{locations: locations}, nil
}

// Resolve accepts an IANA name, "Local", "UTC" or a fixed offset like "+08:00".
func (r *Resolver) Resolve(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	if strings.EqualFold(name, "utc") || name == "Z" {
		return time.UTC, nil
	}

	if cached, ok := r.locations.Get(name); ok {
		return cached.(*time.Location), nil
	}

	loc, err := load(name)
	if err != nil {
		return nil, err
	}
	r.locations.Add(name, loc)
	return loc, nil
}

func (r *Resolver) Len() int {
	return r.locations.Len()
}

func load(name string) (*time.Location, error) {
	if name[0] == '+' || name[0] == '-' {
		return parseOffset(name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

func parseOffset(value string) (*time.Location, error) {
	t, err := time.Parse("-07:00", value)
	if err != nil {
		return nil, fmt.Errorf("parse timezone offset %q: %w", value, err)
	}
	_, offset := t.Zone()
	return time.FixedZone("UTC"+value, offset), nil
}
