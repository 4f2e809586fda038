// Package testmode intercepts debug commands embedded in raw submission
// text. Integration tests use it to exercise latency and error surfaces
// without spending model calls. Recognized inputs never reach the grading
// pipeline; everything here stays outside the engine.
package testmode

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ashgrovelabs/tutord/internal/gateway"
	"github.com/ashgrovelabs/tutord/internal/logging"
)

// Marker switches a raw submission into debug dispatch. The trailing space
// is part of the marker so ordinary text starting with "@@debug" (no
// command) is not swallowed.
const Marker = "@@debug "

// maxSleep caps the sleep command. Longer waits are what ctx deadlines are
// for.
const maxSleep = 60 * time.Second

// IsCommand reports whether raw input invokes the debug dispatcher.
func IsCommand(input string) bool {
	return strings.HasPrefix(input, Marker)
}

// Report is the internal state dumped by the trace command.
type Report struct {
	Directives    []string         `json:"directives"`
	DefaultModel  string           `json:"default_model,omitempty"`
	TokenUsage    gateway.Snapshot `json:"token_usage"`
	UptimeSeconds float64          `json:"uptime_seconds"`
	Evaluations   uint64           `json:"evaluations"`
}

// Reporter supplies the trace dump. The evaluation service implements it.
type Reporter interface {
	Report() Report
}

// Dispatcher executes debug commands.
type Dispatcher struct {
	rep Reporter
	log *logging.Logger
}

// New creates a dispatcher reading trace data from rep.
func New(rep Reporter, log *logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.NewNop()
	}
	return &Dispatcher{rep: rep, log: log.Named("testmode")}
}

// Execute runs one marker-prefixed debug input and returns the feedback
// text to hand back. Malformed commands produce explanatory text rather
// than errors; only context cancellation and trace serialization fail.
func (d *Dispatcher) Execute(ctx context.Context, input string) (string, error) {
	fields := strings.Fields(strings.TrimPrefix(input, Marker))
	if len(fields) == 0 {
		return "debug mode: missing command (expected hex, sleep, or trace)", nil
	}

	cmd := fields[0]
	d.log.Debug(ctx, "debug command", zap.String("command", cmd))

	switch cmd {
	case "hex":
		if len(fields) < 2 {
			return "debug hex: missing hex payload", nil
		}
		return d.decodeHex(fields[1]), nil

	case "sleep":
		if len(fields) < 2 {
			return "debug sleep: missing duration in seconds", nil
		}
		return d.sleep(ctx, fields[1])

	case "trace":
		return d.trace()

	default:
		return fmt.Sprintf("debug mode: unknown command %q (expected hex, sleep, or trace)", cmd), nil
	}
}

func (d *Dispatcher) decodeHex(payload string) string {
	decoded, err := hex.DecodeString(payload)
	if err != nil {
		return fmt.Sprintf("debug hex: invalid input: %v", err)
	}
	return string(decoded)
}

func (d *Dispatcher) sleep(ctx context.Context, arg string) (string, error) {
	secs, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return fmt.Sprintf("debug sleep: invalid duration %q: %v", arg, err), nil
	}
	if secs < 0 {
		return fmt.Sprintf("debug sleep: negative duration %q", arg), nil
	}

	dur := time.Duration(secs * float64(time.Second))
	if dur > maxSleep {
		dur = maxSleep
	}

	select {
	case <-time.After(dur):
		return fmt.Sprintf("slept for %s", dur), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (d *Dispatcher) trace() (string, error) {
	report := d.rep.Report()
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("debug trace: %w", err)
	}
	return string(data), nil
}
