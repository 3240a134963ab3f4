package viewer

import (
	"math"

	"cogentcore.org/core/math32"
	"github.com/aukilabs/tilestream/tiles"
	"github.com/aukilabs/tilestream/traverse"
)

const (
	DefaultFOV    = math.Pi / 3
	DefaultWidth  = 1920
	DefaultHeight = 1080
)

// Camera is a perspective camera.
type Camera struct {
	Position  math32.Vector3
	Direction math32.Vector3

	// The vertical field of view, in radians.
	FOV float64

	Width  int
	Height int

	Foveation        bool
	FoveatedConeSize float64
}

// LookAt returns a camera at the given position looking toward the target.
// fov is the vertical field of view in degrees.
func LookAt(position, target math32.Vector3, fov float64, width, height int) Camera {
	return Camera{
		Position:  position,
		Direction: target.Sub(position).Normal(),
		FOV:       fov * math.Pi / 180,
		Width:     max(width, 1),
		Height:    max(height, 1),
	}
}

func (c Camera) aspect() float64 {
	return float64(c.Width) / float64(c.Height)
}

// SSEDenominator returns the factor converting a geometric error at a given
// distance to a screen space error in pixels.
func (c Camera) SSEDenominator() float64 {
	return 2 * math.Tan(c.FOV/2) / float64(c.Height)
}

// InView reports whether the bounding volume intersects the cone enclosing
// the view frustum.
func (c Camera) InView(bv tiles.BoundingVolume) bool {
	toCenter := bv.Sphere.Center.Sub(c.Position)
	distance := float64(toCenter.Length())
	radius := float64(bv.Sphere.Radius)
	if distance <= radius {
		return true
	}

	halfAngle := math.Atan(math.Tan(c.FOV/2) * math.Sqrt(1+c.aspect()*c.aspect()))
	along := float64(toCenter.Dot(c.Direction))
	across := math.Sqrt(math.Max(distance*distance-along*along, 0))

	return across*math.Cos(halfAngle)-along*math.Sin(halfAngle) <= radius
}

// Distance returns the distance between the camera and the bounding volume.
// It is 0 when the camera is inside the volume.
func (c Camera) Distance(bv tiles.BoundingVolume) float64 {
	if bv.HasBox {
		return float64(bv.Box.DistanceToPoint(c.Position))
	}

	d := float64(bv.Sphere.Center.Sub(c.Position).Length() - bv.Sphere.Radius)
	return math.Max(d, 0)
}

// Error returns the screen space error of a geometric error seen at the
// given distance.
func (c Camera) Error(geometricError, distance float64) float64 {
	if geometricError == 0 {
		return 0
	}
	return geometricError / (distance * c.SSEDenominator())
}

// FoveationFactor returns how far the bounding sphere is from the view
// direction, from 0 (on the view axis or inside the foveated cone) to 1.
// It is always 1 when foveation is disabled.
func (c Camera) FoveationFactor(sphere math32.Sphere) float64 {
	if !c.Foveation || c.FoveatedConeSize >= 1 {
		return 1
	}

	toCenter := sphere.Center.Sub(c.Position)
	distance := toCenter.Length()

	toLine := c.Position.Add(c.Direction.MulScalar(distance)).Sub(sphere.Center)
	if toLine.Length() <= sphere.Radius {
		return 0
	}

	closest := sphere.Center.Add(toLine.Normal().MulScalar(sphere.Radius))
	factor := 1 - math.Abs(float64(c.Direction.Dot(closest.Sub(c.Position).Normal())))

	maxFactor := 1 - math.Cos(c.FOV/2)
	cone := c.FoveatedConeSize * maxFactor
	if factor <= cone {
		return 0
	}
	return math.Min(math.Max((factor-cone)/(maxFactor-cone), 0), 1)
}

// Measure returns the error, distance and foveation factor of the tile.
func (c Camera) Measure(t *tiles.Tile) traverse.Measurement {
	distance := c.Distance(t.Bounds)

	return traverse.Measurement{
		Error:     c.Error(t.GeometricError, distance),
		Distance:  distance,
		Foveation: c.FoveationFactor(t.Bounds.Sphere),
	}
}
