// Package link streams planned waypoints to a robot over a serial line and
// fans out the lines the robot reports back.
package link

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/coverage.planner/internal/monitoring"
	"github.com/banshee-data/coverage.planner/internal/planner"
)

// ErrWriteFailed is returned when the port accepts fewer bytes than sent.
var ErrWriteFailed = errors.New("failed to write to serial port")

// Interface is the uplink as seen by the command line tool.
type Interface interface {
	// Subscribe returns a channel of lines received from the robot and the
	// id to unsubscribe it with.
	Subscribe() (string, chan string)
	Unsubscribe(string)
	// SendLine writes one line to the robot.
	SendLine(string) error
	// SendWaypoints writes one WP line per waypoint.
	SendWaypoints([]planner.Waypoint) error
	// Monitor reads lines from the robot until ctx is done or the port
	// fails.
	Monitor(context.Context) error
	Close() error
}

// Uplink is a serial link to one robot. Any number of readers may
// subscribe to the lines the robot sends.
type Uplink[T SerialPorter] struct {
	port         T
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// New returns an uplink over port.
func New[T SerialPorter](port T) *Uplink[T] {
	return &Uplink[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// Subscribe registers a buffered channel for received lines. Lines are
// dropped for subscribers that fall behind.
func (u *Uplink[T]) Subscribe() (string, chan string) {
	id := uuid.NewString()
	ch := make(chan string, 16)
	u.subscriberMu.Lock()
	defer u.subscriberMu.Unlock()
	u.subscribers[id] = ch
	return id, ch
}

// Unsubscribe closes and removes the subscriber's channel.
func (u *Uplink[T]) Unsubscribe(id string) {
	u.subscriberMu.Lock()
	defer u.subscriberMu.Unlock()
	if ch, ok := u.subscribers[id]; ok {
		close(ch)
		delete(u.subscribers, id)
	}
}

// SendLine writes line to the port, terminated by a newline.
func (u *Uplink[T]) SendLine(line string) error {
	u.commandMu.Lock()
	defer u.commandMu.Unlock()
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	n, err := u.port.Write([]byte(line))
	if err != nil {
		return err
	}
	if n != len(line) {
		return ErrWriteFailed
	}
	return nil
}

// SendWaypoints writes wps in order and stops at the first failure.
func (u *Uplink[T]) SendWaypoints(wps []planner.Waypoint) error {
	for _, w := range wps {
		if err := u.SendLine(FormatWaypoint(w)); err != nil {
			return fmt.Errorf("waypoint %d: %w", w.Seq, err)
		}
	}
	return nil
}

// Reset tells the robot to discard its queued waypoints.
func (u *Uplink[T]) Reset() error {
	return u.SendLine(LineReset)
}

// Monitor reads lines from the port and hands each to every subscriber.
// It returns nil at end of input or once Close has been called.
func (u *Uplink[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(u.port)
	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// Scan in the background so the loop below can watch ctx.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErrChan <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					if u.isClosing() {
						return nil
					}
					return err
				default:
					return nil
				}
			}
			if u.isClosing() {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			u.subscriberMu.Lock()
			for _, ch := range u.subscribers {
				select {
				case ch <- line:
				default:
				}
			}
			u.subscriberMu.Unlock()
		}
	}
}

func (u *Uplink[T]) isClosing() bool {
	u.closingMu.Lock()
	defer u.closingMu.Unlock()
	return u.closing
}

// Close closes every subscriber channel and then the port. Closing again
// is a no-op.
func (u *Uplink[T]) Close() error {
	u.closingMu.Lock()
	if u.closing {
		u.closingMu.Unlock()
		return nil
	}
	u.closing = true
	u.closingMu.Unlock()

	u.subscriberMu.Lock()
	defer u.subscriberMu.Unlock()
	for id, ch := range u.subscribers {
		close(ch)
		delete(u.subscribers, id)
	}
	return u.port.Close()
}

// Poses subscribes to u and returns a channel of the robot's reported
// poses. Malformed lines are logged and skipped. The channel closes when
// ctx is done or the uplink is closed.
func Poses(ctx context.Context, u Interface) <-chan planner.Pose {
	id, lines := u.Subscribe()
	out := make(chan planner.Pose, 1)
	go func() {
		defer close(out)
		defer u.Unsubscribe(id)
		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-lines:
				if !ok {
					return
				}
				t, err := ParseTelemetry(line)
				if err != nil {
					monitoring.Logf("link: %v", err)
					continue
				}
				if t.Type != LinePose {
					continue
				}
				select {
				case out <- t.Pose:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
