package interact

import (
	"math"
	"time"
)

// Default interaction tuning. Scale thresholds are inclusive lower bounds
// for the level they map to.
const (
	DefaultCountryThreshold = 2.5
	DefaultCityThreshold    = 5.0
	DefaultMinScale         = 1.0
	DefaultMaxScale         = 12.0

	DefaultClickDelay         = 250 * time.Millisecond
	DefaultRapidClickGuard    = 100 * time.Millisecond
	DefaultTransitionDuration = 400 * time.Millisecond
	DefaultResizeDebounce     = 150 * time.Millisecond

	DefaultViewportWidth  = 1100.0
	DefaultViewportHeight = 600.0

	// drillZoomFactor is applied when double-clicking at the deepest level.
	drillZoomFactor = 1.5

	minSizeFactor = 0.3
	maxSizeFactor = 1.0
)

// Config tunes a Controller. Zero values fall back to the defaults above.
type Config struct {
	MaxSelections      int
	CountryThreshold   float64
	CityThreshold      float64
	MinScale           float64
	MaxScale           float64
	MarkerBaseSizes    map[int]float64
	ViewportWidth      float64
	ViewportHeight     float64
	ClickDelay         time.Duration
	RapidClickGuard    time.Duration
	TransitionDuration time.Duration
	ResizeDebounce     time.Duration
}

func (c Config) withDefaults() Config {
	if c.CountryThreshold == 0 {
		c.CountryThreshold = DefaultCountryThreshold
	}
	if c.CityThreshold == 0 {
		c.CityThreshold = DefaultCityThreshold
	}
	if c.MinScale == 0 {
		c.MinScale = DefaultMinScale
	}
	if c.MaxScale == 0 {
		c.MaxScale = DefaultMaxScale
	}
	if c.MarkerBaseSizes == nil {
		c.MarkerBaseSizes = map[int]float64{1: 24, 2: 16, 3: 10}
	}
	if c.ViewportHeight == 0 {
		c.ViewportHeight = DefaultViewportHeight
	}
	if c.ViewportWidth == 0 {
		// Width auto-sizes from the height at the default aspect ratio.
		c.ViewportWidth = c.ViewportHeight * (DefaultViewportWidth / DefaultViewportHeight)
	}
	if c.ClickDelay == 0 {
		c.ClickDelay = DefaultClickDelay
	}
	if c.RapidClickGuard == 0 {
		c.RapidClickGuard = DefaultRapidClickGuard
	}
	if c.TransitionDuration == 0 {
		c.TransitionDuration = DefaultTransitionDuration
	}
	if c.ResizeDebounce == 0 {
		c.ResizeDebounce = DefaultResizeDebounce
	}
	return c
}

// levelForScale maps a zoom scale to a hierarchy level; thresholds are
// inclusive lower bounds.
func levelForScale(scale, countryThreshold, cityThreshold float64) int {
	switch {
	case scale >= cityThreshold:
		return 3
	case scale >= countryThreshold:
		return 2
	default:
		return 1
	}
}

// markerSizeFactor shrinks markers as the map zooms in, inverse square
// root, clamped to [0.3, 1] of the base size.
func markerSizeFactor(scale float64) float64 {
	if scale <= 0 {
		return maxSizeFactor
	}
	return clamp(1/math.Sqrt(scale), minSizeFactor, maxSizeFactor)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
