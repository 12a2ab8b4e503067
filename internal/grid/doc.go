// Package grid owns the occupancy grid used by the coverage planner.
//
// Responsibilities: the Cell and Grid data model, classification of a
// binarised camera frame into per-cell pixel tallies, and the map inversion
// used when one robot's planner hands its grid to another.
// Key types: Grid, Cell, Point, Classifier.
//
// A Grid always carries its own extents; sharing a *Grid shares the cells
// and the dimensions together. Grids are not safe for concurrent mutation;
// planners that run side by side each own a grid, or a copy obtained with
// Clone or Invert.
package grid
