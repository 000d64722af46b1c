// Package location supplies the coordinates recorded when a period starts.
package location

import (
	"context"
	"errors"
	"fmt"

	"github.com/sadopc/punchclock/internal/store"
)

var ErrUnavailable = errors.New("no location configured")

// Static reports a fixed, configured position. A nil Static, or one built
// without coordinates, is unavailable.
type Static struct {
	loc *store.Location
}

func NewStatic(lat, lon *float64) *Static {
	if lat == nil || lon == nil {
		return &Static{}
	}
	return &Static{loc: &store.Location{Latitude: *lat, Longitude: *lon}}
}

func (s *Static) CurrentLocation(ctx context.Context) (store.Location, error) {
	if err := ctx.Err(); err != nil {
		return store.Location{}, err
	}
	if s == nil || s.loc == nil {
		return store.Location{}, ErrUnavailable
	}
	if err := Validate(*s.loc); err != nil {
		return store.Location{}, err
	}
	return *s.loc, nil
}

// Validate checks that loc is a plausible coordinate pair in decimal degrees.
func Validate(loc store.Location) error {
	if loc.Latitude < -90 || loc.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range", loc.Latitude)
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range", loc.Longitude)
	}
	return nil
}
