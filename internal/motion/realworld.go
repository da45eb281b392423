package motion

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/tzneal/coordconv"
)

// RealWorldOrigin anchors the local tangent-plane frame that geodetic
// pose input is projected into. A loudspeaker rig's tracking system
// typically reports WGS84 latitude/longitude/altitude; the motion
// model itself only ever works in a flat local frame, so geodetic
// input is converted through coordconv's UTM projection and offset by
// this origin before it is fed into a Model as an ordinary
// InputMotionKey call. This backs spec.md §3's optional "separate
// real-world pose (for loudspeaker setups where the physical listener
// and the virtual listener differ)".
type RealWorldOrigin struct {
	Easting  float64
	Northing float64
}

// GeodeticToLocal converts a latitude/longitude/altitude triple (in
// decimal degrees and meters) to a local position relative to origin,
// via the same coordconv UTM conversion the teacher's own
// cmd/samoyed-ll2utm tool performs. X/Z are the local ground plane,
// Y is altitude.
func GeodeticToLocal(origin RealWorldOrigin, latDeg, lonDeg, altMeters float64) (r3.Vector, error) {
	latlng := s2.LatLng{
		Lat: s1.Angle(latDeg * math.Pi / 180),
		Lng: s1.Angle(lonDeg * math.Pi / 180),
	}
	utm, err := coordconv.DefaultUTMConverter.ConvertFromGeodetic(latlng, 0)
	if err != nil {
		return r3.Vector{}, fmt.Errorf("motion: geodetic to UTM: %w", err)
	}
	return r3.Vector{
		X: utm.Easting - origin.Easting,
		Y: altMeters,
		Z: -(utm.Northing - origin.Northing),
	}, nil
}
