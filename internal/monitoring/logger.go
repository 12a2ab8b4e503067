// Package monitoring holds the process-level logger shared by the adapters
// and the command line tool.
package monitoring

import (
	"log"
	"strings"
)

// Logf is the process-level logger. It defaults to log.Printf and may be
// replaced by SetLogger; tests use that to capture or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces Logf. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Writer forwards each line written to it to Logf. It lets the per-package
// log streams (SetLogWriters) share the process logger.
type Writer struct {
	// Prefix is prepended to every forwarded line.
	Prefix string
}

// Write splits p into lines and logs each non-empty one.
func (w Writer) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		Logf("%s%s", w.Prefix, line)
	}
	return len(p), nil
}
