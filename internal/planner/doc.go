// Package planner implements online coverage of an occupancy grid.
//
// A Planner walks the free cells of a grid.Grid with a backtracking stack,
// preferring to continue straight and turning so that consecutive lanes sit
// side by side. When the frontier dead-ends the stack unwinds until a cell
// with an open neighbour is found; the robot is then routed back over
// already covered cells along the shortest path, and coverage resumes.
//
// Cover runs an episode to exhaustion in one call. Step advances it by one
// committed cell per control-loop tick and refuses to advance until the
// robot has caught up with the last waypoint. Both share one kernel and emit
// the same waypoint sequence for the same grid and start.
package planner
