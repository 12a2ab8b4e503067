// Package heading holds the directional preference table used by the
// coverage planner.
//
// Grid rows grow downward and columns grow to the right, so North is row-1
// and East is col+1. A robot travelling in a Direction sees its four
// neighbours as Right, Front, Left and Back; the table maps each
// (Direction, Relative) pair to a grid offset.
package heading

import (
	"fmt"
	"math"
)

// Direction is an absolute travel direction on the grid.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

// Directions lists the four directions in table order.
var Directions = [4]Direction{North, East, South, West}

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Valid reports whether d is one of the four cardinal directions.
func (d Direction) Valid() bool {
	return d >= North && d <= West
}

// Opposite returns the direction rotated by 180 degrees.
func (d Direction) Opposite() Direction {
	return (d + 2) % 4
}

// Relative is a neighbour position in robot-local terms.
type Relative int

// NoWall marks a cell without an active wall-follow reference.
const NoWall Relative = -1

const (
	Right Relative = iota
	Front
	Left
	Back
)

func (r Relative) String() string {
	switch r {
	case NoWall:
		return "none"
	case Right:
		return "right"
	case Front:
		return "front"
	case Left:
		return "left"
	case Back:
		return "back"
	}
	return fmt.Sprintf("Relative(%d)", int(r))
}

// SearchOrder is the order in which neighbours are tried while extending the
// frontier. The straight-ahead cell comes first so a lane is finished before
// the robot turns into the next one.
var SearchOrder = [4]Relative{Front, Right, Left, Back}

// Offset is a (row, column) displacement between neighbouring cells.
type Offset struct {
	DRow, DCol int
}

// table[d][r] is the offset of the r neighbour for a robot travelling d.
var table = [4][4]Offset{
	North: {Right: {0, 1}, Front: {-1, 0}, Left: {0, -1}, Back: {1, 0}},
	East:  {Right: {1, 0}, Front: {0, 1}, Left: {-1, 0}, Back: {0, -1}},
	South: {Right: {0, -1}, Front: {1, 0}, Left: {0, 1}, Back: {-1, 0}},
	West:  {Right: {-1, 0}, Front: {0, -1}, Left: {1, 0}, Back: {0, 1}},
}

// Neighbor returns the offset of neighbour r for a robot travelling d.
func Neighbor(d Direction, r Relative) Offset {
	return table[d][r]
}

// Step returns the offset of one move in direction d.
func Step(d Direction) Offset {
	return table[d][Front]
}

// Turn returns the absolute direction of neighbour r for a robot travelling d.
func Turn(d Direction, r Relative) Direction {
	switch r {
	case Right:
		return (d + 1) % 4
	case Left:
		return (d + 3) % 4
	case Back:
		return d.Opposite()
	}
	return d
}

// Between returns the direction of a unit move by (dRow, dCol). ok is false
// when the displacement is not a single 4-neighbour step.
func Between(dRow, dCol int) (d Direction, ok bool) {
	for _, d := range Directions {
		if o := Step(d); o.DRow == dRow && o.DCol == dCol {
			return d, true
		}
	}
	return North, false
}

// ArrivalFromYaw infers the direction a robot is travelling from its yaw in
// radians. The planner uses it to seed the root cell, whose parent is taken
// to lie on the opposite side:
//
//	[-45°, 45°)              parent west,  travelling east
//	[45°, 135°)              parent north, travelling south
//	[135°, 180°]∪[-180°,-135°) parent east, travelling west
//	[-135°, -45°)            parent south, travelling north
func ArrivalFromYaw(yaw float64) Direction {
	deg := math.Remainder(yaw*180/math.Pi, 360)
	switch {
	case deg >= -45 && deg < 45:
		return East
	case deg >= 45 && deg < 135:
		return South
	case deg >= -135 && deg < -45:
		return North
	}
	return West
}
