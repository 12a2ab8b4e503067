package grid

import "fmt"

// Invert returns a grid with peer's extents in which the cells peer has
// visited are free and every other cell is blocked. A second robot planning
// on the result is confined to the region the first one has claimed.
func Invert(peer *Grid) *Grid {
	out := &Grid{
		Rows:          peer.Rows,
		Cols:          peer.Cols,
		CellWidth:     peer.CellWidth,
		CellHeight:    peer.CellHeight,
		ObstacleRatio: peer.ObstacleRatio,
		cells:         make([]Cell, len(peer.cells)),
	}
	invert(out, peer)
	return out
}

// InvertInto overwrites dst with the inversion of peer, reusing dst's cell
// storage. The two grids must have the same extents.
func InvertInto(dst, peer *Grid) error {
	if !dst.SameShape(peer) {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, dst.Rows, dst.Cols, peer.Rows, peer.Cols)
	}
	dst.CellWidth, dst.CellHeight = peer.CellWidth, peer.CellHeight
	dst.ObstacleRatio = peer.ObstacleRatio
	invert(dst, peer)
	return nil
}

// invert fills dst from peer. Tallies are zeroed so occupancy never blocks a
// cell of the result; the visited flag alone separates the two regions, and
// the border rule is dropped because peer never visits an excluded cell.
func invert(dst, peer *Grid) {
	dst.ExcludeBorder = false
	s := dst.Sentinel()
	for i := range peer.cells {
		src := &peer.cells[i]
		c := Cell{SumX: src.SumX, SumY: src.SumY, Pixels: src.Pixels}
		c.resetVisit(s)
		c.Visited = !src.Visited
		dst.cells[i] = c
	}
	tracef("inverted %dx%d grid: %d cells open", peer.Rows, peer.Cols, peer.VisitedCount())
}

// Exclude marks visited every cell that is visited in mask.
func (g *Grid) Exclude(mask *Grid) error {
	if !g.SameShape(mask) {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, g.Rows, g.Cols, mask.Rows, mask.Cols)
	}
	for i := range mask.cells {
		if mask.cells[i].Visited {
			g.cells[i].Visited = true
		}
	}
	return nil
}

// Release marks p unvisited so a search on an inverted grid may enter it.
func (g *Grid) Release(p Point) {
	g.At(p).Visited = false
}
