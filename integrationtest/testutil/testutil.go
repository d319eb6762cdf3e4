// Package testutil provides shared infrastructure for the integration scenarios: a
// simulated game that wires the full spawncap stack onto an in-memory host and plays the
// host's side of every intercepted call.
package testutil

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rickchristie/spawncap/config"
	"github.com/rickchristie/spawncap/events"
	"go.uber.org/zap"
)

// TestConfig configures how a scenario is run and displayed.
type TestConfig struct {
	// Settings are the settings the game starts with. Nil means config.Default().
	Settings *config.Settings

	// ChangedHost simulates a host version whose method bodies no longer contain the
	// patterns the precise interception looks for.
	ChangedHost bool

	// LogWriter receives a YAML trace of every event. Nil disables tracing.
	LogWriter io.Writer

	// Verbose enables development logging to stderr.
	Verbose bool

	// ShowStats prints the runtime's counters at the end of a scenario.
	ShowStats bool

	// Feed, when set, receives every event the game publishes.
	Feed *events.Feed
}

// DefaultTestConfig returns a config suitable for go test.
func DefaultTestConfig() TestConfig {
	return TestConfig{Settings: config.Default()}
}

// InteractiveConfig returns a config for the interactive CLI.
func InteractiveConfig() TestConfig {
	return TestConfig{Settings: config.Default(), ShowStats: true}
}

// Logger returns the diagnostic logger for cfg: development output when Verbose is set,
// otherwise a no-op logger.
func (cfg TestConfig) Logger() *zap.Logger {
	if !cfg.Verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// TestCase represents a scenario that can be run.
type TestCase struct {
	Name        string
	Description string
	Run         func(
		ctx context.Context,
		w io.Writer,
		config TestConfig,
	) error
}

// PrintHeader prints a header line.
func PrintHeader(w io.Writer, title string) {
	line := strings.Repeat("=", 80)
	fmt.Fprintf(w, "%s\n%s\n%s\n", line, title, line)
}

// PrintSection prints a section header.
func PrintSection(w io.Writer, title string) {
	fmt.Fprintf(w, "\n--- %s ---\n", title)
}

// PrintCounters prints counters sorted by key.
func PrintCounters(w io.Writer, counters map[string]int64) {
	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-36s %d\n", k, counters[k])
	}
}

// Expect returns an error describing a failed expectation, or nil.
func Expect(ok bool, format string, args ...any) error {
	if ok {
		return nil
	}
	return fmt.Errorf("expectation failed: "+format, args...)
}

// FirstError returns the first non-nil error.
func FirstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
