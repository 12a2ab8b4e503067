// Package transform maps frame pixels to planar world coordinates.
//
// Both projectors satisfy planner.Projector.
package transform

import "github.com/paulmach/orb"

// Projection maps both ways between frame pixels and world coordinates.
type Projection interface {
	PixelToWorld(px, py float64) (x, y float64)
	WorldToPixel(x, y float64) (px, py float64)
}

// Scale is a uniform pixel to world scaling about an origin pixel. With
// FlipY set world y grows upward while pixel rows grow downward.
type Scale struct {
	MetersPerPixel float64
	Origin         orb.Point
	FlipY          bool
}

// PixelToWorld implements planner.Projector.
func (s Scale) PixelToWorld(px, py float64) (x, y float64) {
	x = (px - s.Origin.X()) * s.MetersPerPixel
	y = (py - s.Origin.Y()) * s.MetersPerPixel
	if s.FlipY {
		y = -y
	}
	return x, y
}

// WorldToPixel inverts PixelToWorld. A zero scale maps everything to the
// origin.
func (s Scale) WorldToPixel(x, y float64) (px, py float64) {
	if s.MetersPerPixel == 0 {
		return s.Origin.X(), s.Origin.Y()
	}
	if s.FlipY {
		y = -y
	}
	return x/s.MetersPerPixel + s.Origin.X(), y/s.MetersPerPixel + s.Origin.Y()
}
