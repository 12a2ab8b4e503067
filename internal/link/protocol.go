package link

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/coverage.planner/internal/planner"
)

// Line types understood on the robot side of the link.
const (
	// LineWaypoint is sent to the robot: WP <seq> <x> <y> <kind>.
	LineWaypoint = "WP"
	// LineReset tells the robot to drop its queued waypoints.
	LineReset = "RESET"
	// LinePose is reported by the robot: POSE <x> <y> <yaw>.
	LinePose = "POSE"
	// LineAck is reported by the robot when it reaches a waypoint: ACK <seq>.
	LineAck = "ACK"
)

// FormatWaypoint returns the line that sends w to the robot.
func FormatWaypoint(w planner.Waypoint) string {
	return fmt.Sprintf("%s %d %.4f %.4f %s", LineWaypoint, w.Seq, w.X, w.Y, w.Kind)
}

// Telemetry is one parsed line received from the robot.
type Telemetry struct {
	Type string
	Pose planner.Pose
	Seq  int
	Raw  string
}

// ParseTelemetry classifies a line received from the robot. Lines that are
// neither poses nor acks come back with their first field as the type.
func ParseTelemetry(line string) (Telemetry, error) {
	t := Telemetry{Raw: line}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return t, fmt.Errorf("empty line")
	}
	t.Type = strings.ToUpper(fields[0])

	switch t.Type {
	case LinePose:
		if len(fields) != 4 {
			return t, fmt.Errorf("pose needs x y yaw, got %q", line)
		}
		var v [3]float64
		for i, f := range fields[1:] {
			x, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return t, fmt.Errorf("pose field %d: %w", i+1, err)
			}
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return t, fmt.Errorf("pose field %d is not finite: %q", i+1, f)
			}
			v[i] = x
		}
		t.Pose = planner.Pose{X: v[0], Y: v[1], Yaw: v[2]}
	case LineAck:
		if len(fields) != 2 {
			return t, fmt.Errorf("ack needs a sequence number, got %q", line)
		}
		seq, err := strconv.Atoi(fields[1])
		if err != nil {
			return t, fmt.Errorf("ack: %w", err)
		}
		t.Seq = seq
	}
	return t, nil
}
