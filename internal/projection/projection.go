package projection

import (
	"errors"
	"math"
)

var (
	// ErrInvalidCoordinate means a longitude/latitude pair is outside the
	// valid domain or not a finite number.
	ErrInvalidCoordinate = errors.New("projection: coordinate out of domain")
	// ErrNotInvertible means the inverse projection did not converge for
	// the given planar point.
	ErrNotInvertible = errors.New("projection: point not invertible")
)

const (
	earthRadiusKm = 6371.0

	// degenerateFitScale is returned by FitScale for a zero-size bounding box.
	degenerateFitScale = 8.0

	invertMaxIterations = 25
	invertEpsilon       = 1e-11
)

// Point is a planar screen coordinate.
type Point struct {
	X float64
	Y float64
}

// Coordinate is a geographic position in degrees.
type Coordinate struct {
	Lon float64
	Lat float64
}

// Valid reports whether the coordinate is finite and inside the
// [-180,180] x [-90,90] domain.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lon) || math.IsNaN(c.Lat) || math.IsInf(c.Lon, 0) || math.IsInf(c.Lat, 0) {
		return false
	}
	return c.Lon >= -180 && c.Lon <= 180 && c.Lat >= -90 && c.Lat <= 90
}

// BBox is a geographic bounding box in degrees.
type BBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// Projector maps geographic coordinates onto a viewport using a Natural
// Earth compromise projection. The projection scale is width/5.5 with the
// origin translated to the viewport centre, matching the usual "fit a world
// map into the viewport" parameterisation.
type Projector struct {
	width  float64
	height float64
	scale  float64
}

// New builds a Projector for the given viewport size in pixels.
func New(width, height float64) *Projector {
	return &Projector{
		width:  width,
		height: height,
		scale:  width / 5.5,
	}
}

// Width returns the viewport width the projector was built for.
func (p *Projector) Width() float64 { return p.width }

// Height returns the viewport height the projector was built for.
func (p *Projector) Height() float64 { return p.height }

// Project maps a longitude/latitude pair to screen coordinates. It fails
// with ErrInvalidCoordinate when the input is outside the geographic domain
// or not a finite number.
func (p *Projector) Project(lon, lat float64) (Point, error) {
	c := Coordinate{Lon: lon, Lat: lat}
	if !c.Valid() {
		return Point{}, ErrInvalidCoordinate
	}

	x, y := naturalEarthRaw(radians(lon), radians(lat))
	return Point{
		X: p.width/2 + p.scale*x,
		Y: p.height/2 - p.scale*y,
	}, nil
}

// Unproject maps a screen point back to geographic coordinates. It fails
// with ErrNotInvertible when the Newton iteration does not converge or the
// result is not a valid coordinate.
func (p *Projector) Unproject(x, y float64) (Coordinate, error) {
	rawX := (x - p.width/2) / p.scale
	rawY := (p.height/2 - y) / p.scale

	lonRad, latRad, ok := naturalEarthInvert(rawX, rawY)
	if !ok {
		return Coordinate{}, ErrNotInvertible
	}

	c := Coordinate{Lon: degrees(lonRad), Lat: degrees(latRad)}
	if !c.Valid() {
		return Coordinate{}, ErrNotInvertible
	}
	return c, nil
}

// BoundingBox computes the geographic bounding box of the given coordinates.
// Individually invalid coordinates are skipped; it returns ok=false when no
// valid coordinate remains.
func BoundingBox(coords []Coordinate) (BBox, bool) {
	found := false
	var b BBox
	for _, c := range coords {
		if !c.Valid() {
			continue
		}
		if !found {
			b = BBox{MinLon: c.Lon, MinLat: c.Lat, MaxLon: c.Lon, MaxLat: c.Lat}
			found = true
			continue
		}
		b.MinLon = math.Min(b.MinLon, c.Lon)
		b.MinLat = math.Min(b.MinLat, c.Lat)
		b.MaxLon = math.Max(b.MaxLon, c.Lon)
		b.MaxLat = math.Max(b.MaxLat, c.Lat)
	}
	return b, found
}

// FitScale returns the zoom scale at which the bounding box fills the
// viewport, shrunk by padding (0.8 leaves a 20% margin). A degenerate box
// with zero extent yields a fixed scale of 8.
func (p *Projector) FitScale(b BBox, padding float64) float64 {
	if padding <= 0 {
		padding = 0.8
	}

	x0, y0 := naturalEarthRaw(radians(b.MinLon), radians(b.MinLat))
	x1, y1 := naturalEarthRaw(radians(b.MaxLon), radians(b.MaxLat))

	dx := math.Abs(x1-x0) * p.scale
	dy := math.Abs(y1-y0) * p.scale
	if dx == 0 || dy == 0 || math.IsNaN(dx) || math.IsNaN(dy) {
		return degenerateFitScale
	}

	return padding * math.Min(p.width/dx, p.height/dy)
}

// ResolveOverlaps pushes apart every pair of points closer than minDistance,
// each point moving by half the overlap along the connecting line. Pairs at
// exactly the same position are left in place (no direction to push along).
// O(n^2); intended for marker sets up to a few hundred points.
func ResolveOverlaps(points []Point, minDistance float64) []Point {
	out := make([]Point, len(points))
	copy(out, points)

	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			dx := out[j].X - out[i].X
			dy := out[j].Y - out[i].Y
			dist := math.Hypot(dx, dy)
			if dist >= minDistance || dist == 0 {
				continue
			}
			push := (minDistance - dist) / 2
			ux := dx / dist
			uy := dy / dist
			out[i].X -= ux * push
			out[i].Y -= uy * push
			out[j].X += ux * push
			out[j].Y += uy * push
		}
	}
	return out
}

// HaversineDistanceKm returns the great-circle distance between two
// coordinates in kilometres.
func HaversineDistanceKm(a, b Coordinate) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// naturalEarthRaw is the Natural Earth I forward projection in radians,
// polynomial form (Šavrič et al.).
func naturalEarthRaw(lambda, phi float64) (float64, float64) {
	phi2 := phi * phi
	phi4 := phi2 * phi2
	x := lambda * (0.8707 - 0.131979*phi2 + phi4*(-0.013791+phi4*(0.003971*phi2-0.001529*phi4)))
	y := phi * (1.007226 + phi2*(0.015085+phi4*(-0.044475+0.028874*phi2-0.005916*phi4)))
	return x, y
}

// naturalEarthInvert recovers (lambda, phi) from raw projected coordinates by
// Newton iteration on the y polynomial.
func naturalEarthInvert(x, y float64) (lambda, phi float64, ok bool) {
	phi = y
	for i := 0; i < invertMaxIterations; i++ {
		phi2 := phi * phi
		phi4 := phi2 * phi2
		fy := phi*(1.007226+phi2*(0.015085+phi4*(-0.044475+0.028874*phi2-0.005916*phi4))) - y
		dy := 1.007226 + phi2*(0.015085*3+phi4*(-0.044475*7+0.028874*9*phi2-0.005916*11*phi4))
		if dy == 0 {
			return 0, 0, false
		}
		delta := fy / dy
		phi -= delta
		if math.Abs(delta) <= invertEpsilon {
			break
		}
	}
	if math.IsNaN(phi) {
		return 0, 0, false
	}

	phi2 := phi * phi
	phi4 := phi2 * phi2
	denom := 0.8707 - 0.131979*phi2 + phi4*(-0.013791+phi4*(0.003971*phi2-0.001529*phi4))
	if denom == 0 || math.IsNaN(denom) {
		return 0, 0, false
	}
	lambda = x / denom
	if math.IsNaN(lambda) {
		return 0, 0, false
	}
	return lambda, phi, true
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
