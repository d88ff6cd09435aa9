package berealex

import (
	"fmt"
	"time"

	"github.com/ringsaturn/tzf"
	"k8s.io/klog/v2"
)

// TimezoneResolver maps a record's GPS coordinate to an IANA timezone name,
// falling back to a configured default when coordinates are absent or the
// lookup comes up empty. Lookups use tzf's embedded boundary data; there is
// no network involved.
type TimezoneResolver struct {
	fallback string
	useGPS   bool
	finder   tzf.F
}

// NewTimezoneResolver builds a resolver. The tzf finder is only constructed
// when GPS resolution is enabled, since loading the boundary data is the
// expensive part.
func NewTimezoneResolver(fallback string, useGPS bool) (*TimezoneResolver, error) {
	if _, err := time.LoadLocation(fallback); err != nil {
		return nil, fmt.Errorf("load fallback timezone %q: %w", fallback, err)
	}

	r := &TimezoneResolver{fallback: fallback, useGPS: useGPS}
	if useGPS {
		finder, err := tzf.NewDefaultFinder()
		if err != nil {
			return nil, fmt.Errorf("tzf finder: %w", err)
		}
		r.finder = finder
	}
	return r, nil
}

// Resolve returns the IANA zone name for loc, or the fallback when GPS
// resolution is disabled, loc is nil, or the point is outside all known
// zones.
func (r *TimezoneResolver) Resolve(loc *Location) string {
	if !r.useGPS || loc == nil {
		return r.fallback
	}

	name := r.finder.GetTimezoneName(loc.Longitude, loc.Latitude)
	if name == "" {
		klog.V(1).Infof("no timezone for (%f, %f), using fallback %s", loc.Latitude, loc.Longitude, r.fallback)
		return r.fallback
	}
	return name
}

// ResolveTime converts a UTC capture time to local wall-clock time in the
// zone resolved for loc.
func (r *TimezoneResolver) ResolveTime(utc time.Time, loc *Location) (ResolvedTimestamp, error) {
	zone := r.Resolve(loc)
	l, err := time.LoadLocation(zone)
	if err != nil {
		return ResolvedTimestamp{}, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return ResolvedTimestamp{Zone: zone, Local: utc.In(l)}, nil
}
