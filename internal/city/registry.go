// Package city resolves named regions to bounding boxes for heatmap job
// scheduling.
package city

import (
	"context"
	"errors"

	"github.com/urbanindex/urbanindex/internal/geo"
)

// ErrCityNotFound is returned when a slug resolves to no known city.
var ErrCityNotFound = errors.New("city not found")

// City is a named region with precomputed bounds.
type City struct {
	Slug   string     `json:"slug"`
	Name   string     `json:"name"`
	Bounds geo.Bounds `json:"bounds"`
}

// Registry resolves city slugs to bounds.
type Registry interface {
	// Get returns the city for a slug. Returns ErrCityNotFound if absent.
	Get(ctx context.Context, slug string) (City, error)

	// List returns all known cities.
	List(ctx context.Context) ([]City, error)
}

// defaultCities seeds the static registry with the initial launch markets.
var defaultCities = []City{
	{
		Slug: "amsterdam", Name: "Amsterdam",
		Bounds: geo.Bounds{MinLat: 52.28, MinLng: 4.73, MaxLat: 52.43, MaxLng: 5.03},
	},
	{
		Slug: "rotterdam", Name: "Rotterdam",
		Bounds: geo.Bounds{MinLat: 51.85, MinLng: 4.37, MaxLat: 51.99, MaxLng: 4.60},
	},
	{
		Slug: "den-haag", Name: "Den Haag",
		Bounds: geo.Bounds{MinLat: 52.02, MinLng: 4.22, MaxLat: 52.13, MaxLng: 4.42},
	},
	{
		Slug: "utrecht", Name: "Utrecht",
		Bounds: geo.Bounds{MinLat: 52.04, MinLng: 5.04, MaxLat: 52.14, MaxLng: 5.19},
	},
	{
		Slug: "eindhoven", Name: "Eindhoven",
		Bounds: geo.Bounds{MinLat: 51.40, MinLng: 5.40, MaxLat: 51.49, MaxLng: 5.53},
	},
}

// StaticRegistry is an in-process Registry backed by the seed table.
type StaticRegistry struct {
	cities map[string]City
	order  []string
}

// NewStaticRegistry creates a registry with the default city table.
func NewStaticRegistry() *StaticRegistry {
	return NewStaticRegistryWith(defaultCities)
}

// NewStaticRegistryWith creates a registry with a custom city table.
func NewStaticRegistryWith(cities []City) *StaticRegistry {
	r := &StaticRegistry{cities: make(map[string]City, len(cities))}
	for _, c := range cities {
		r.cities[c.Slug] = c
		r.order = append(r.order, c.Slug)
	}
	return r
}

// Get returns the city for a slug.
func (r *StaticRegistry) Get(_ context.Context, slug string) (City, error) {
	c, ok := r.cities[slug]
	if !ok {
		return City{}, ErrCityNotFound
	}
	return c, nil
}

// List returns all known cities in seed order.
func (r *StaticRegistry) List(_ context.Context) ([]City, error) {
	out := make([]City, 0, len(r.order))
	for _, slug := range r.order {
		out = append(out, r.cities[slug])
	}
	return out, nil
}
