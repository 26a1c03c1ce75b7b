package model

import (
	"fmt"
	"math"
)

// earthRadiusM is the WGS84 equatorial radius used for the equirectangular
// projection of geographic waypoints.
const earthRadiusM = 6378137.0

// Origin anchors a mission in geographic space. Planar waypoint coordinates
// are interpreted relative to it.
type Origin struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Waypoint is one point on a mission path. It carries either planar (x,y)
// or geographic (lng,lat) coordinates; planar takes precedence when both
// are present. Altitude is optional.
type Waypoint struct {
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Altitude *float64 `json:"altitude,omitempty"`
}

// Resolve returns the planar coordinates of the waypoint. Geographic
// coordinates are projected equirectangularly around the origin.
func (w Waypoint) Resolve(o Origin) (x, y float64, err error) {
	if w.X != nil && w.Y != nil {
		return *w.X, *w.Y, nil
	}
	if w.Lng != nil && w.Lat != nil {
		rad := math.Pi / 180
		x = (*w.Lng - o.Lng) * rad * earthRadiusM * math.Cos(o.Lat*rad)
		y = (*w.Lat - o.Lat) * rad * earthRadiusM
		return x, y, nil
	}
	return 0, 0, fmt.Errorf("waypoint has neither planar nor geographic coordinates")
}

// Trajectory is an ordered sequence of waypoints.
type Trajectory struct {
	Waypoints []Waypoint `json:"waypoints"`
}

// Mission is a named flight plan: an origin and an ordered list of
// trajectories flown back to back.
type Mission struct {
	ID           string       `json:"id"`
	Origin       Origin       `json:"origin"`
	Trajectories []Trajectory `json:"trajectories"`
}

// Path flattens the mission trajectories into one ordered waypoint list.
func (m Mission) Path() []Waypoint {
	var path []Waypoint
	for _, t := range m.Trajectories {
		path = append(path, t.Waypoints...)
	}
	return path
}
