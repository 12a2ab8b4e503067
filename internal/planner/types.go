package planner

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/coverage.planner/internal/grid"
)

// Projector maps a pixel of the source frame to planar world coordinates.
type Projector interface {
	PixelToWorld(px, py float64) (x, y float64)
}

// ProjectorFunc adapts a function to the Projector interface.
type ProjectorFunc func(px, py float64) (x, y float64)

// PixelToWorld calls f(px, py).
func (f ProjectorFunc) PixelToWorld(px, py float64) (x, y float64) {
	return f(px, py)
}

// Identity leaves pixel coordinates unchanged.
var Identity = ProjectorFunc(func(px, py float64) (float64, float64) { return px, py })

// Pose is the robot's planar position in world units and its heading in
// radians.
type Pose struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Yaw float64 `json:"yaw"`
}

// Finite reports whether every field of p is a finite number.
func (p Pose) Finite() bool {
	for _, v := range [...]float64{p.X, p.Y, p.Yaw} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Observation is one localisation result. Found is false when the robot
// could not be located in the frame.
type Observation struct {
	Cell  grid.Point
	Found bool
	Pose  Pose
}

// Kind distinguishes cells covered for the first time from cells revisited
// on the way back to the frontier.
type Kind int

const (
	Cover Kind = iota
	Transit
)

func (k Kind) String() string {
	switch k {
	case Cover:
		return "cover"
	case Transit:
		return "transit"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText encodes k by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseKind returns the kind named s.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "cover":
		return Cover, nil
	case "transit":
		return Transit, nil
	}
	return 0, fmt.Errorf("unknown waypoint kind %q", s)
}

// Waypoint is one entry of the plan.
type Waypoint struct {
	Seq    int        `json:"seq"`
	Cell   grid.Point `json:"cell"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
	PixelX int        `json:"pixel_x"`
	PixelY int        `json:"pixel_y"`
	Kind   Kind       `json:"kind"`
}

// Phase is the coarse state of an episode.
type Phase int

const (
	// Inactive: no episode has been seeded.
	Inactive Phase = iota
	// Spiral: the frontier is being extended from the top of the stack.
	Spiral
	// Return: the stack is unwinding after a dead end.
	Return
)

func (p Phase) String() string {
	switch p {
	case Inactive:
		return "inactive"
	case Spiral:
		return "spiral"
	case Return:
		return "return"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// MarshalText encodes p by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Strategy selects how the next cell is chosen from the top of the stack.
type Strategy int

const (
	// WallFollow tries front, right, left, back relative to the direction
	// of travel, and after a turn keeps hugging the side it turned towards.
	WallFollow Strategy = iota
	// LocalPreference uses the same relative order without wall references.
	LocalPreference
	// GlobalPreference tries north, east, west, south regardless of heading.
	GlobalPreference
)

var strategyNames = map[Strategy]string{
	WallFollow:       "wall_follow",
	LocalPreference:  "local_preference",
	GlobalPreference: "global_preference",
}

func (s Strategy) String() string {
	if n, ok := strategyNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy returns the strategy named s. The empty string selects
// WallFollow.
func ParseStrategy(s string) (Strategy, error) {
	if s == "" {
		return WallFollow, nil
	}
	for k, n := range strategyNames {
		if strings.EqualFold(n, s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown strategy %q", s)
}

// Outcome reports what a call to Step did.
type Outcome int

const (
	// Waiting: the robot has not reached the last waypoint; nothing changed.
	Waiting Outcome = iota
	// Seeded: the episode was started at the robot's cell.
	Seeded
	// Advanced: one more cell was committed.
	Advanced
	// Exhausted: no reachable cell remains to cover.
	Exhausted
)

func (o Outcome) String() string {
	switch o {
	case Waiting:
		return "waiting"
	case Seeded:
		return "seeded"
	case Advanced:
		return "advanced"
	case Exhausted:
		return "exhausted"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Episode is a snapshot of a planner's episode state.
type Episode struct {
	Phase      Phase        `json:"phase"`
	Root       grid.Point   `json:"root"`
	Goal       *grid.Point  `json:"goal,omitempty"`
	Stack      []grid.Point `json:"stack"`
	Incumbents []grid.Point `json:"incumbents"`
	Waypoints  int          `json:"waypoints"`
	Covered    int          `json:"covered"`
	Exhausted  bool         `json:"exhausted"`
	NoPath     bool         `json:"no_path"`
}
