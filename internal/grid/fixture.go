package grid

import (
	"fmt"
	"strings"
)

// Fixture cell markers accepted by Parse.
const (
	FreeMark     = '.'
	ObstacleMark = '#'
)

// Parse builds a grid from a text map, one string per row, where '#' is an
// obstacle and '.' is free space. Each cell is filled as a fully black or
// fully white block of cellWidth by cellHeight pixels.
func Parse(rows []string, cellWidth, cellHeight int) (*Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("empty map")
	}
	g, err := New(len(rows), len(rows[0]), cellWidth, cellHeight)
	if err != nil {
		return nil, err
	}
	for r, line := range rows {
		if len(line) != g.Cols {
			return nil, fmt.Errorf("row %d has %d cells, want %d", r, len(line), g.Cols)
		}
		for c := 0; c < len(line); c++ {
			switch line[c] {
			case FreeMark:
				g.fillCell(Point{r, c}, false)
			case ObstacleMark:
				g.fillCell(Point{r, c}, true)
			default:
				return nil, fmt.Errorf("row %d col %d: unknown cell %q", r, c, line[c])
			}
		}
	}
	return g, nil
}

// MustParse is Parse for fixtures known to be well formed.
func MustParse(rows []string, cellWidth, cellHeight int) *Grid {
	g, err := Parse(rows, cellWidth, cellHeight)
	if err != nil {
		panic("grid.MustParse: " + err.Error())
	}
	return g
}

// Format writes g back in Parse notation, one row per line. Visits are not
// recorded.
func Format(g *Grid) string {
	var b strings.Builder
	for r := 0; r < g.Rows; r++ {
		if r > 0 {
			b.WriteByte('\n')
		}
		for c := 0; c < g.Cols; c++ {
			if g.Open(Point{r, c}) {
				b.WriteByte(FreeMark)
			} else {
				b.WriteByte(ObstacleMark)
			}
		}
	}
	return b.String()
}
