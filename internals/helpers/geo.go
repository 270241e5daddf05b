// file: internals/helpers/geo.go
package helper

import "math"

const earthRadiusKm = 6371.0

// kmPerDegree is the fixed degrees-per-km approximation used for radius
// searches. It treats one degree of latitude AND longitude as 111 km, which
// is only correct for longitude near the equator. Kept as documented
// behavior: dashboards depend on the resulting box, not on a true
// great-circle filter.
const kmPerDegree = 111.0

type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// BoundingBoxAround returns the square box of radiusKm around a point.
func BoundingBoxAround(lat, lng, radiusKm float64) BoundingBox {
	d := radiusKm / kmPerDegree
	return BoundingBox{
		MinLat: lat - d,
		MaxLat: lat + d,
		MinLng: lng - d,
		MaxLng: lng + d,
	}
}

// HaversineKm returns the great-circle distance between two points in km.
// Used to annotate distances on results, not to filter them.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := deg2rad(lat2 - lat1)
	dLng := deg2rad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(lat1))*math.Cos(deg2rad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func deg2rad(deg float64) float64 {
	return deg * (math.Pi / 180)
}
