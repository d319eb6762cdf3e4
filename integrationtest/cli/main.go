// Package main provides a CLI for playing the spawn scenarios against the simulated game,
// either from the command line or from an interactive menu.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/rickchristie/spawncap"
	"github.com/rickchristie/spawncap/config"
	"github.com/rickchristie/spawncap/events"
	"github.com/rickchristie/spawncap/integrationtest/observer"
	"github.com/rickchristie/spawncap/integrationtest/raid"
	"github.com/rickchristie/spawncap/integrationtest/testutil"
	"github.com/rickchristie/spawncap/loggers"
	"github.com/spf13/cobra"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

var (
	settingsPath string
	changedHost  bool
	tracePath    string
	verbose      bool
	follow       bool
	watch        bool
	serveAddr    string

	// liveFeed is set while serve streams events to websocket observers.
	liveFeed *events.Feed
)

var rootCmd = &cobra.Command{
	Use:   "spawncap-cli",
	Short: "Play spawn compression scenarios on a simulated game",
	Long: `Runs the integration scenarios against an in-memory host with the full
spawncap stack installed. Without a subcommand an interactive menu is shown.`,
	SilenceUsage: true,
	RunE:         runMenu,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available scenarios",
	RunE: func(cmd *cobra.Command, _ []string) error {
		for i, tc := range raid.GetRaidTestCases() {
			fmt.Fprintf(cmd.OutOrStdout(), "  %2d. %-16s %s\n", i+1, tc.Name, tc.Description)
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run [scenario...]",
	Short: "Run scenarios by number or name; all when none is given",
	RunE:  runScenarios,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Print the effective settings as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		data, err := settings.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Pick scenarios from an interactive menu",
	RunE:  runMenu,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Stream events to websocket observers while playing from the menu",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&settingsPath, "config", "c", "", "Settings file (default: built-in defaults)")
	rootCmd.PersistentFlags().BoolVar(&changedHost, "changed-host", false, "Simulate a host whose method bodies changed")
	rootCmd.PersistentFlags().StringVar(&tracePath, "trace", filepath.Join(".logs", "cli_spawncap.log"),
		"Write a YAML event trace to this file, zstd-compressed for .zst (empty disables)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable development logging")
	rootCmd.PersistentFlags().BoolVarP(&follow, "follow", "f", false, "Print compression events as they are published")
	rootCmd.PersistentFlags().BoolVarP(&watch, "watch", "w", false, "Reload the settings file when it changes (menu only)")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(menuCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:7777", "Listen address for the event stream")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%sError: %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
}

func loadSettings() (*config.Settings, error) {
	if settingsPath == "" {
		return config.Default(), nil
	}
	return config.Load(settingsPath)
}

// testConfig builds the scenario config from the flags. The returned closer releases the
// trace file and stops following.
func testConfig() (testutil.TestConfig, func(), error) {
	settings, err := loadSettings()
	if err != nil {
		return testutil.TestConfig{}, nil, err
	}
	cfg := testutil.InteractiveConfig()
	cfg.Settings = settings
	cfg.ChangedHost = changedHost
	cfg.Verbose = verbose

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if follow || liveFeed != nil {
		cfg.Feed = liveFeed
		if cfg.Feed == nil {
			cfg.Feed = events.NewFeed()
		}
		if follow {
			closers = append(closers, followFeed(cfg.Feed))
		} else {
			closers = append(closers, cfg.Feed.Close)
		}
	}

	if tracePath != "" {
		trace, err := loggers.OpenTrace(tracePath)
		if err != nil {
			closeAll()
			return cfg, nil, err
		}
		cfg.LogWriter = trace
		closers = append(closers, func() {
			if err := trace.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "%strace: %v%s\n", colorRed, err, colorReset)
			}
		})
	}
	return cfg, closeAll, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ln, err := net.Listen("tcp", serveAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	liveFeed = events.NewFeed()
	defer func() { liveFeed = nil }()

	logger := testutil.TestConfig{Verbose: verbose}.Logger()
	mux := http.NewServeMux()
	mux.Handle("/events", observer.NewServer(liveFeed, logger).Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "%sevent stream: %v%s\n", colorRed, err, colorReset)
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	fmt.Printf("%sStreaming events on ws://%s/events%s\n\n", colorGreen, ln.Addr(), colorReset)
	return runMenu(cmd, args)
}

// followFeed prints decided and finished compression events until the returned func is
// called. It waits for the events already published to be printed.
func followFeed(feed *events.Feed) func() {
	ch, unsubscribe := feed.Subscribe(
		spawncap.EventNameCompressionDecided,
		spawncap.EventNameCompressionFinished,
		spawncap.EventNameOriginalCallError,
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range ch {
			switch e := e.(type) {
			case *spawncap.CompressionDecidedEvent:
				fmt.Printf("%s  [decided] %s %d -> %d allowed=%v %s%s\n", colorDim,
					e.Request.Shape, e.Decision.BaseCount, e.Decision.CappedCount,
					e.Decision.Allowed, e.Decision.Reason, colorReset)
			case *spawncap.CompressionFinishedEvent:
				fmt.Printf("%s  [finished] order %d%s\n", colorDim, e.Decision.Order, colorReset)
			case *spawncap.OriginalCallErrorEvent:
				fmt.Printf("%s  [original failed] %s: %v%s\n", colorRed, e.Shape, e.Err, colorReset)
			}
		}
	}()
	return func() {
		unsubscribe()
		<-done
		feed.Close()
	}
}

// find resolves a scenario by its 1-based number or its case-insensitive name.
func find(cases []testutil.TestCase, arg string) (testutil.TestCase, bool) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n >= 1 && n <= len(cases) {
			return cases[n-1], true
		}
		return testutil.TestCase{}, false
	}
	for _, tc := range cases {
		if strings.EqualFold(tc.Name, arg) {
			return tc, true
		}
	}
	return testutil.TestCase{}, false
}

func runScenarios(cmd *cobra.Command, args []string) error {
	cfg, closeTrace, err := testConfig()
	if err != nil {
		return err
	}
	defer closeTrace()

	cases := raid.GetRaidTestCases()
	selected := cases
	if len(args) > 0 {
		selected = nil
		for _, arg := range args {
			tc, ok := find(cases, arg)
			if !ok {
				return fmt.Errorf("unknown scenario %q", arg)
			}
			selected = append(selected, tc)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	failed := 0
	for _, tc := range selected {
		if !runOne(ctx, cmd.OutOrStdout(), tc, cfg) {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(selected))
	}
	return nil
}

func runOne(ctx context.Context, w io.Writer, tc testutil.TestCase, cfg testutil.TestConfig) bool {
	fmt.Fprintf(w, "\n%sRunning scenario: %s%s\n", colorGreen, tc.Name, colorReset)
	if err := tc.Run(ctx, w, cfg); err != nil {
		fmt.Fprintf(w, "%s%sFAIL%s %s: %v\n", colorBold, colorRed, colorReset, tc.Name, err)
		return false
	}
	fmt.Fprintf(w, "%s%sPASS%s %s\n", colorBold, colorGreen, colorReset, tc.Name)
	return true
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Printf("\n%sReceived interrupt, cancelling...%s\n", colorYellow, colorReset)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

func runMenu(_ *cobra.Command, _ []string) error {
	cfg, closeTrace, err := testConfig()
	if err != nil {
		return err
	}
	defer closeTrace()

	var current atomic.Pointer[config.Settings]
	current.Store(cfg.Settings)
	if watch && settingsPath != "" {
		w, err := config.Watch(context.Background(), settingsPath, func(s *config.Settings) {
			current.Store(s)
			fmt.Printf("\n%sSettings reloaded from %s%s\n", colorYellow, settingsPath, colorReset)
		}, config.WithWatchLogger(cfg.Logger()))
		if err != nil {
			return err
		}
		defer w.Stop()
	}

	rl, err := readline.New(colorCyan + "Enter selection (or 'q' to quit): " + colorReset)
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	cases := raid.GetRaidTestCases()
	printMenu(cases)

	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Printf("\n%sGoodbye!%s\n", colorGreen, colorReset)
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		cfg.Settings = current.Load()
		switch {
		case input == "q" || input == "Q":
			fmt.Printf("%sGoodbye!%s\n", colorGreen, colorReset)
			return nil
		case input == "h" || input == "H":
			cfg.ChangedHost = !cfg.ChangedHost
			fmt.Printf("%sChanged host: %v%s\n\n", colorYellow, cfg.ChangedHost, colorReset)
			continue
		case input == "a" || input == "A":
			ctx, cancel := signalContext()
			for _, tc := range cases {
				runOne(ctx, os.Stdout, tc, cfg)
			}
			cancel()
			continue
		}

		tc, ok := find(cases, input)
		if !ok {
			fmt.Printf("%sInvalid selection. Please enter 1-%d.%s\n\n", colorRed, len(cases), colorReset)
			continue
		}

		ctx, cancel := signalContext()
		runOne(ctx, os.Stdout, tc, cfg)
		cancel()

		fmt.Printf("\n%s%s%s\n\n", colorDim, strings.Repeat("-", 60), colorReset)
	}
}

func printMenu(cases []testutil.TestCase) {
	fmt.Printf("%s%sAvailable Scenarios:%s\n", colorBold, colorYellow, colorReset)
	fmt.Printf("%s%s%s\n", colorYellow, strings.Repeat("=", 20), colorReset)
	for i, tc := range cases {
		fmt.Printf("  %s%d.%s %s%s%s - %s\n",
			colorCyan, i+1, colorReset,
			colorWhite, tc.Name, colorReset,
			tc.Description)
	}
	fmt.Println()
	fmt.Printf("  %sa%s - run all, %sh%s - toggle changed host\n\n",
		colorCyan, colorReset, colorCyan, colorReset)
}
