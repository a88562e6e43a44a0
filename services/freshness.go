package services

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Freshness int

const (
	FreshnessUnknown Freshness = iota
	FreshnessFresh
	FreshnessStale
)

// Location is a device-reported capture position.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// boundingRegion is the area submissions are expected to come from.
type boundingRegion struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Greater Sydney. Overridable via FRESHNESS_REGION env vars.
var defaultRegion = boundingRegion{
	MinLat: -34.2, MaxLat: -33.4,
	MinLon: 150.4, MaxLon: 151.6,
}

// FreshnessChecker is a best-effort heuristic, not a security boundary.
// Missing evidence never rejects: a submission without a capture timestamp
// or location simply comes back Unknown and passes through.
type FreshnessChecker struct {
	MaxAge time.Duration
	region boundingRegion
}

func NewFreshnessChecker() *FreshnessChecker {
	maxAge := 60 * time.Minute
	if v := os.Getenv("FRESHNESS_MAX_AGE_MINUTES"); v != "" {
		if mins, err := strconv.Atoi(v); err == nil && mins > 0 {
			maxAge = time.Duration(mins) * time.Minute
		}
	}
	region := defaultRegion
	if v, err := strconv.ParseFloat(os.Getenv("FRESHNESS_MIN_LAT"), 64); err == nil {
		region.MinLat = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("FRESHNESS_MAX_LAT"), 64); err == nil {
		region.MaxLat = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("FRESHNESS_MIN_LON"), 64); err == nil {
		region.MinLon = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("FRESHNESS_MAX_LON"), 64); err == nil {
		region.MaxLon = v
	}
	return &FreshnessChecker{MaxAge: maxAge, region: region}
}

// Check compares the capture timestamp (and location, when present) against
// the configured limits. The note only distinguishes the cause for
// observability; every stale path produces the same downgrade.
func (f *FreshnessChecker) Check(capturedAt *time.Time, loc *Location, now time.Time) (Freshness, string) {
	if capturedAt == nil && loc == nil {
		return FreshnessUnknown, ""
	}

	if capturedAt != nil {
		age := now.Sub(*capturedAt)
		if age > f.MaxAge {
			return FreshnessStale, fmt.Sprintf("photo was taken %s ago, older than the %s limit", age.Round(time.Minute), f.MaxAge)
		}
	}

	if loc != nil && !f.region.contains(*loc) {
		return FreshnessStale, fmt.Sprintf("photo location (%.4f, %.4f) is outside the hunt area", loc.Latitude, loc.Longitude)
	}

	if capturedAt == nil {
		// Location alone, and it checked out.
		return FreshnessUnknown, ""
	}
	return FreshnessFresh, ""
}

func (r boundingRegion) contains(loc Location) bool {
	return loc.Latitude >= r.MinLat && loc.Latitude <= r.MaxLat &&
		loc.Longitude >= r.MinLon && loc.Longitude <= r.MaxLon
}
