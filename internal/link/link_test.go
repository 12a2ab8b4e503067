package link

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/banshee-data/coverage.planner/internal/grid"
	"github.com/banshee-data/coverage.planner/internal/monitoring"
	"github.com/banshee-data/coverage.planner/internal/planner"
)

func TestPortOptions_Normalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      PortOptions
		want    PortOptions
		wantErr bool
	}{
		{"defaults", PortOptions{}, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"even", PortOptions{BaudRate: 9600, Parity: " even "}, PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "E"}, false},
		{"odd two stop", PortOptions{StopBits: 2, Parity: "o"}, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 2, Parity: "O"}, false},
		{"data bits", PortOptions{DataBits: 9}, PortOptions{}, true},
		{"stop bits", PortOptions{StopBits: 3}, PortOptions{}, true},
		{"parity", PortOptions{Parity: "mark"}, PortOptions{}, true},
	}
	for _, tt := range tests {
		got, err := tt.in.Normalize()
		if tt.wantErr {
			assert.Error(t, err, tt.name)
			continue
		}
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	t.Parallel()

	mode, err := PortOptions{BaudRate: 57600, StopBits: 2, Parity: "E"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 57600, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)
	assert.Equal(t, serial.EvenParity, mode.Parity)

	_, err = PortOptions{Parity: "?"}.SerialMode()
	assert.Error(t, err)
}

func TestFormatWaypoint(t *testing.T) {
	t.Parallel()

	w := planner.Waypoint{Seq: 7, Cell: grid.Point{Row: 1, Col: 2}, X: 0.125, Y: -1.5, Kind: planner.Transit}
	assert.Equal(t, "WP 7 0.1250 -1.5000 transit", FormatWaypoint(w))
}

func TestParseTelemetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line    string
		want    Telemetry
		wantErr bool
	}{
		{line: "POSE 1.5 -2 0.25", want: Telemetry{Type: LinePose, Pose: planner.Pose{X: 1.5, Y: -2, Yaw: 0.25}}},
		{line: "pose 0 0 0", want: Telemetry{Type: LinePose}},
		{line: "ACK 12", want: Telemetry{Type: LineAck, Seq: 12}},
		{line: "BATT 87", want: Telemetry{Type: "BATT"}},
		{line: "", wantErr: true},
		{line: "POSE 1 2", wantErr: true},
		{line: "POSE 1 2 x", wantErr: true},
		{line: "POSE NaN NaN 0", wantErr: true},
		{line: "POSE 1 +Inf 0", wantErr: true},
		{line: "POSE 1 2 -inf", wantErr: true},
		{line: "ACK", wantErr: true},
		{line: "ACK one", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseTelemetry(tt.line)
		if tt.wantErr {
			assert.Error(t, err, tt.line)
			continue
		}
		require.NoError(t, err, tt.line)
		tt.want.Raw = tt.line
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestSendWaypoints(t *testing.T) {
	t.Parallel()

	port := NewTestableSerialPort()
	u := New(port)
	wps := []planner.Waypoint{
		{Seq: 0, X: 1, Y: 2, Kind: planner.Cover},
		{Seq: 1, X: 1, Y: 3, Kind: planner.Transit},
	}
	require.NoError(t, u.SendWaypoints(wps))
	require.NoError(t, u.Reset())
	assert.Equal(t, "WP 0 1.0000 2.0000 cover\nWP 1 1.0000 3.0000 transit\nRESET\n", port.Written())
}

func TestSendLine_Errors(t *testing.T) {
	t.Parallel()

	port := NewTestableSerialPort()
	u := New(port)

	boom := errors.New("boom")
	port.WriteError = boom
	err := u.SendWaypoints([]planner.Waypoint{{Seq: 3}})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "waypoint 3")

	port.ShortWrite = true
	assert.ErrorIs(t, u.SendLine("RESET"), ErrWriteFailed)
}

func TestMonitor_FansOut(t *testing.T) {
	t.Parallel()

	port := NewTestableSerialPort()
	port.AddReadData([]byte("POSE 1 2 0\n\n  ACK 4  \n"))
	u := New(port)
	id1, ch1 := u.Subscribe()
	_, ch2 := u.Subscribe()

	require.NoError(t, u.Monitor(context.Background()), "end of input")

	for _, ch := range []chan string{ch1, ch2} {
		assert.Equal(t, "POSE 1 2 0", <-ch)
		assert.Equal(t, "ACK 4", <-ch)
	}

	u.Unsubscribe(id1)
	_, open := <-ch1
	assert.False(t, open)

	require.NoError(t, u.Close())
	_, open = <-ch2
	assert.False(t, open)
	assert.True(t, port.Closed)
}

func TestMonitor_Cancelled(t *testing.T) {
	t.Parallel()

	port := NewTestableSerialPort()
	port.BlockReads = true
	u := New(port)
	defer u.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, u.Monitor(ctx), context.DeadlineExceeded)
}

func TestMonitor_StopsOnClose(t *testing.T) {
	t.Parallel()

	port := NewTestableSerialPort()
	port.BlockReads = true
	u := New(port)

	done := make(chan error, 1)
	go func() { done <- u.Monitor(context.Background()) }()
	require.NoError(t, u.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Monitor did not return after Close")
	}
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	port := NewTestableSerialPort()
	port.CloseError = errors.New("port gone")
	u := New(port)
	_, ch := u.Subscribe()

	assert.ErrorIs(t, u.Close(), port.CloseError)
	_, open := <-ch
	assert.False(t, open)
	assert.NoError(t, u.Close())
	assert.Equal(t, 1, port.CloseCalls)
}

func TestPoses(t *testing.T) {
	monitoring.SetLogger(nil)
	defer monitoring.SetLogger(log.Printf)

	port := NewTestableSerialPort()
	port.BlockReads = true
	u := New(port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poses := Poses(ctx, u)
	go u.Monitor(ctx)

	port.AddReadData([]byte("POSE 1 2 3\nACK 0\nPOSE bad\nPOSE 4 5 6\n"))
	for _, want := range []planner.Pose{{X: 1, Y: 2, Yaw: 3}, {X: 4, Y: 5, Yaw: 6}} {
		select {
		case got := <-poses:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %v", want)
		}
	}

	require.NoError(t, u.Close())
	_, open := <-poses
	assert.False(t, open)
}

func TestDisabled(t *testing.T) {
	t.Parallel()

	var d Interface = NewDisabled()
	require.NoError(t, d.SendLine("RESET"))
	require.NoError(t, d.SendWaypoints([]planner.Waypoint{{}}))

	id, ch := d.Subscribe()
	d.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open)

	_, ch = d.Subscribe()
	require.NoError(t, d.Close())
	_, open = <-ch
	assert.False(t, open)
	require.NoError(t, d.Close())

	_, ch = d.Subscribe()
	_, open = <-ch
	assert.False(t, open, "subscribing after close yields a closed channel")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Monitor(ctx), context.Canceled)
}

var _ Interface = (*Uplink[*TestableSerialPort])(nil)
