// Package narrator prints step banners for a console walkthrough.
//
// A Narrator brackets each step of a demo between an opening banner with a
// timestamp and a closing banner, so a recorded session reads as a sequence of
// clearly separated steps:
//
//	n := narrator.New(os.Stdout)
//	n.Announce(1, "Create test activity", "A POST request will be sent.")
//	// ... do the work
//	n.Complete(1, "")
package narrator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

var (
	heavyRule = strings.Repeat("=", 80)
	lightRule = strings.Repeat("-", 80)
	shortRule = strings.Repeat("-", 40)
)

// Narrator writes step banners to an output stream.
type Narrator struct {
	w   io.Writer
	now func() time.Time
}

// Option configures a Narrator.
type Option func(*Narrator)

// WithClock overrides the time source used for banner timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Narrator) {
		n.now = now
	}
}

// New creates a Narrator writing to w.
func New(w io.Writer, opts ...Option) *Narrator {
	n := &Narrator{w: w, now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Announce prints the opening banner of a step. note is optional.
func (n *Narrator) Announce(step int, title, note string) {
	ts := n.now().Format(timestampLayout)
	fmt.Fprintf(n.w, "\n%s\n", heavyRule)
	fmt.Fprintf(n.w, "STEP %d: %s    (%s)\n", step, title, ts)
	if note != "" {
		fmt.Fprintln(n.w, note)
	}
	fmt.Fprintln(n.w, lightRule)
}

// Complete prints the closing banner of a step. message is optional.
func (n *Narrator) Complete(step int, message string) {
	n.close(step, "COMPLETED", message)
}

// Skip prints both banners for a step that did not run.
func (n *Narrator) Skip(step int, title, reason string) {
	n.Announce(step, title, reason)
	n.close(step, "SKIPPED", "")
}

func (n *Narrator) close(step int, verb, message string) {
	fmt.Fprintf(n.w, "\n%s STEP %d %s %s\n", shortRule, step, verb, shortRule)
	if message != "" {
		fmt.Fprintln(n.w, message)
	}
}

// JSON pretty-prints v with four-space indentation. Non-ASCII text is
// written as-is.
func (n *Narrator) JSON(v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err := n.w.Write(buf.Bytes())
	return err
}
