package grid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/coverage.planner/internal/heading"
)

// DefaultObstacleRatio is the black/white pixel ratio above which a cell is
// treated as an obstacle.
const DefaultObstacleRatio = 0.2

var (
	// ErrDimensionMismatch is returned when two grids that must share extents do not.
	ErrDimensionMismatch = errors.New("grid dimensions differ")
	// ErrBadImage is returned for nil, empty or otherwise unusable input frames.
	ErrBadImage = errors.New("invalid image")
	// ErrBadCellSize is returned for non-positive cell sizes.
	ErrBadCellSize = errors.New("cell size must be positive")
)

// Point addresses a cell by row and column.
type Point struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Move returns the cell displaced from p by o.
func (p Point) Move(o heading.Offset) Point {
	return Point{Row: p.Row + o.DRow, Col: p.Col + o.DCol}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Cell holds the occupancy statistics of one grid position and the
// per-episode search metadata the planner keeps in it.
type Cell struct {
	// Pixel tallies from classification.
	Blacks int
	Whites int

	// Centroid accumulators: sums of 0-based pixel x and y, and pixel count.
	SumX   int
	SumY   int
	Pixels int

	// Visited is set once a search or coverage episode reaches the cell.
	Visited bool
	// Steps is the BFS distance from the search start (1 at the start) or
	// the commit order during coverage.
	Steps int
	// NextNeighbor indexes the next neighbour to try; global preference
	// coverage only.
	NextNeighbor int
	// Parent is the cell this one was reached from. Roots hold Grid.Sentinel.
	Parent Point
	// Wall is the wall-follow reference, heading.NoWall when inactive.
	Wall heading.Relative
	// Arrival is the direction of travel into the cell.
	Arrival heading.Direction
}

func (c *Cell) resetVisit(sentinel Point) {
	c.Visited = false
	c.Steps = 0
	c.NextNeighbor = 0
	c.Parent = sentinel
	c.Wall = heading.NoWall
	c.Arrival = heading.North
}

// Grid is a rectangular array of cells bundled with its extents.
type Grid struct {
	Rows, Cols int
	// Pixel size of one cell in the source image.
	CellWidth, CellHeight int
	// ObstacleRatio is the largest Blacks/Whites ratio of a free cell.
	ObstacleRatio float64
	// ExcludeBorder keeps the outer ring of cells out of the traversable set.
	ExcludeBorder bool

	cells []Cell
}

// New returns a grid with zeroed tallies. Every cell is free until
// classification adds black pixels to it.
func New(rows, cols, cellWidth, cellHeight int) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("grid must have at least one cell, got %dx%d", rows, cols)
	}
	if cellWidth <= 0 || cellHeight <= 0 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrBadCellSize, cellWidth, cellHeight)
	}
	g := &Grid{
		Rows:          rows,
		Cols:          cols,
		CellWidth:     cellWidth,
		CellHeight:    cellHeight,
		ObstacleRatio: DefaultObstacleRatio,
		cells:         make([]Cell, rows*cols),
	}
	g.ResetVisits()
	return g, nil
}

// NewOpen returns a grid whose cells read as if classified from an all-white
// frame of rows*cellHeight by cols*cellWidth pixels.
func NewOpen(rows, cols, cellWidth, cellHeight int) (*Grid, error) {
	g, err := New(rows, cols, cellWidth, cellHeight)
	if err != nil {
		return nil, err
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g.fillCell(Point{r, c}, false)
		}
	}
	return g, nil
}

// fillCell sets the tallies of p as though every pixel in it were black
// (obstacle) or white.
func (g *Grid) fillCell(p Point, obstacle bool) {
	cell := g.At(p)
	*cell = Cell{}
	for y := p.Row * g.CellHeight; y < (p.Row+1)*g.CellHeight; y++ {
		for x := p.Col * g.CellWidth; x < (p.Col+1)*g.CellWidth; x++ {
			cell.SumX += x
			cell.SumY += y
			cell.Pixels++
		}
	}
	if obstacle {
		cell.Blacks = cell.Pixels
	} else {
		cell.Whites = cell.Pixels
	}
	cell.resetVisit(g.Sentinel())
}

// At returns the cell at p. p must be in bounds.
func (g *Grid) At(p Point) *Cell {
	return &g.cells[p.Row*g.Cols+p.Col]
}

// InBounds reports whether p addresses a cell of g.
func (g *Grid) InBounds(p Point) bool {
	return p.Row >= 0 && p.Row < g.Rows && p.Col >= 0 && p.Col < g.Cols
}

// OnBorder reports whether p lies on the outer ring of the grid.
func (g *Grid) OnBorder(p Point) bool {
	return p.Row == 0 || p.Col == 0 || p.Row == g.Rows-1 || p.Col == g.Cols-1
}

// Open reports whether p is traversable: in bounds, at most ObstacleRatio
// black pixels per white pixel, and off the border when ExcludeBorder is set.
func (g *Grid) Open(p Point) bool {
	if !g.InBounds(p) {
		return false
	}
	if g.ExcludeBorder && g.OnBorder(p) {
		return false
	}
	c := g.At(p)
	return float64(c.Blacks) <= g.ObstacleRatio*float64(c.Whites)
}

// Blocked reports whether p cannot be entered: not open, or already visited.
func (g *Grid) Blocked(p Point) bool {
	return !g.Open(p) || g.At(p).Visited
}

// Centroid returns the representative pixel of p. Cells without pixel
// samples fall back to their geometric centre.
func (g *Grid) Centroid(p Point) (x, y int) {
	c := g.At(p)
	if c.Pixels > 0 {
		return c.SumX / c.Pixels, c.SumY / c.Pixels
	}
	return p.Col*g.CellWidth + g.CellWidth/2, p.Row*g.CellHeight + g.CellHeight/2
}

// Sentinel is the parent value of a root cell.
func (g *Grid) Sentinel() Point {
	return Point{Row: g.Rows, Col: g.Cols}
}

// HasParent reports whether p was reached from another cell.
func (g *Grid) HasParent(p Point) bool {
	return g.At(p).Parent != g.Sentinel()
}

// SameShape reports whether g and o have identical extents.
func (g *Grid) SameShape(o *Grid) bool {
	return g.Rows == o.Rows && g.Cols == o.Cols
}

// ResetVisits clears the search metadata of every cell, keeping tallies.
func (g *Grid) ResetVisits() {
	s := g.Sentinel()
	for i := range g.cells {
		g.cells[i].resetVisit(s)
	}
}

// Clone returns an independent deep copy of g.
func (g *Grid) Clone() *Grid {
	out := *g
	out.cells = make([]Cell, len(g.cells))
	copy(out.cells, g.cells)
	return &out
}

// CopyFrom overwrites the cells of g with those of src.
func (g *Grid) CopyFrom(src *Grid) error {
	if !g.SameShape(src) {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, g.Rows, g.Cols, src.Rows, src.Cols)
	}
	g.CellWidth, g.CellHeight = src.CellWidth, src.CellHeight
	g.ObstacleRatio = src.ObstacleRatio
	g.ExcludeBorder = src.ExcludeBorder
	copy(g.cells, src.cells)
	return nil
}

// OpenCells returns every traversable cell in row-major order.
func (g *Grid) OpenCells() []Point {
	var out []Point
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			if p := (Point{r, c}); g.Open(p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// VisitedCount returns the number of visited cells.
func (g *Grid) VisitedCount() int {
	n := 0
	for i := range g.cells {
		if g.cells[i].Visited {
			n++
		}
	}
	return n
}

// String draws the grid one row per line: '#' obstacle, 'o' visited, '.' free.
func (g *Grid) String() string {
	var b strings.Builder
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			p := Point{r, c}
			switch {
			case g.At(p).Visited:
				b.WriteByte('o')
			case !g.Open(p):
				b.WriteByte('#')
			default:
				b.WriteByte('.')
			}
		}
		if r < g.Rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
