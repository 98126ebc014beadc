package geofence

import (
	"math"
	"time"

	geoerrors "go-attend/internal/geofence/errors"
)

const (
	ReasonImplausibleVelocity = "implausible_velocity"
	ReasonDegenerateAccuracy  = "degenerate_accuracy"
	ReasonNullIsland          = "null_island"
)

const earthRadiusM = 6371000.0

type Location struct {
	Lat       float64
	Lng       float64
	AccuracyM float64
}

// PriorFix is the previously accepted fix for the same user, used for
// the velocity plausibility check.
type PriorFix struct {
	Location Location
	Elapsed  time.Duration
}

type ValidationResult struct {
	InsideGeofence    bool
	SpoofingSuspected bool
	Reasons           []string
}

// Limits holds the tunable spoofing heuristics cutoffs.
type Limits struct {
	MaxVelocityKmph float64
	MinAccuracyM    float64
}

// Validate checks a reported fix against a geofence and runs the
// spoofing heuristics. It is a pure function: no I/O, no side effects.
// Heuristic hits populate Reasons but never fail the call; only broken
// geometry or out-of-range coordinates return an error.
func Validate(reported Location, g *Geofence, prior *PriorFix, limits Limits) (ValidationResult, error) {
	var res ValidationResult

	if err := checkCoordinate(reported.Lat, reported.Lng); err != nil {
		return res, err
	}
	if reported.AccuracyM < 0 {
		return res, geoerrors.ErrInvalidCoordinate
	}
	if err := checkGeometry(g); err != nil {
		return res, err
	}

	switch g.Kind {
	case KindCircle:
		dist := HaversineMeters(reported.Lat, reported.Lng, *g.CenterLat, *g.CenterLng)
		res.InsideGeofence = dist <= *g.RadiusM+g.HysteresisM
	case KindPolygon:
		res.InsideGeofence = pointInPolygon(reported.Lat, reported.Lng, g.Vertices)
		if !res.InsideGeofence && g.HysteresisM > 0 {
			// Treat the hysteresis band around the boundary as inside.
			res.InsideGeofence = distanceToBoundaryM(reported.Lat, reported.Lng, g.Vertices) <= g.HysteresisM
		}
	}

	if isNullIsland(reported.Lat, reported.Lng) {
		res.Reasons = append(res.Reasons, ReasonNullIsland)
	}
	if reported.AccuracyM == 0 || (limits.MinAccuracyM > 0 && reported.AccuracyM < limits.MinAccuracyM) {
		res.Reasons = append(res.Reasons, ReasonDegenerateAccuracy)
	}
	if prior != nil && prior.Elapsed > 0 && limits.MaxVelocityKmph > 0 {
		distKm := HaversineMeters(reported.Lat, reported.Lng, prior.Location.Lat, prior.Location.Lng) / 1000
		speedKmph := distKm / prior.Elapsed.Hours()
		if speedKmph > limits.MaxVelocityKmph {
			res.Reasons = append(res.Reasons, ReasonImplausibleVelocity)
		}
	}

	res.SpoofingSuspected = len(res.Reasons) > 0
	return res, nil
}

func checkCoordinate(lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return geoerrors.ErrInvalidCoordinate
	}
	return nil
}

func checkGeometry(g *Geofence) error {
	if g == nil {
		return geoerrors.ErrInvalidGeometry
	}
	if g.HysteresisM < 0 {
		return geoerrors.ErrInvalidGeometry
	}

	switch g.Kind {
	case KindCircle:
		if g.CenterLat == nil || g.CenterLng == nil || g.RadiusM == nil || *g.RadiusM <= 0 {
			return geoerrors.ErrInvalidGeometry
		}
		return checkCoordinate(*g.CenterLat, *g.CenterLng)
	case KindPolygon:
		if len(g.Vertices) < 3 {
			return geoerrors.ErrInvalidGeometry
		}
		for _, v := range g.Vertices {
			if err := checkCoordinate(v.Lat, v.Lng); err != nil {
				return err
			}
		}
		return nil
	default:
		return geoerrors.ErrInvalidGeometry
	}
}

func isNullIsland(lat, lng float64) bool {
	return math.Abs(lat) < 1e-6 && math.Abs(lng) < 1e-6
}

// HaversineMeters returns the great-circle distance between two fixes.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlng/2)*math.Sin(dlng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// pointInPolygon runs a standard ray cast over the vertex list. The
// result is independent of winding direction.
func pointInPolygon(lat, lng float64, vertices VertexList) bool {
	inside := false
	n := len(vertices)
	j := n - 1
	for i := 0; i < n; i++ {
		vi, vj := vertices[i], vertices[j]
		if (vi.Lat > lat) != (vj.Lat > lat) {
			intersectLng := (vj.Lng-vi.Lng)*(lat-vi.Lat)/(vj.Lat-vi.Lat) + vi.Lng
			if lng < intersectLng {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// distanceToBoundaryM returns the distance in meters from a point to the
// nearest polygon edge, using a local equirectangular projection. Good
// enough for hysteresis bands of tens of meters.
func distanceToBoundaryM(lat, lng float64, vertices VertexList) float64 {
	cosLat := math.Cos(lat * math.Pi / 180)
	px := lng * cosLat
	py := lat

	min := math.MaxFloat64
	n := len(vertices)
	for i := 0; i < n; i++ {
		a, b := vertices[i], vertices[(i+1)%n]
		ax, ay := a.Lng*cosLat, a.Lat
		bx, by := b.Lng*cosLat, b.Lat

		d := pointToSegment(px, py, ax, ay, bx, by)
		if d < min {
			min = d
		}
	}

	// Degrees to meters along a great circle.
	return min * math.Pi / 180 * earthRadiusM
}

func pointToSegment(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}
