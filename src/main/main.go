package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"grammar-fix/src/config"
	"grammar-fix/src/eventloop"
	"grammar-fix/src/hotkey"
	"grammar-fix/src/pipeline"
	"grammar-fix/src/runtimeinit"
	"grammar-fix/src/singleinstance"
)

type mainOptions struct {
	trigger    bool
	apiKeyPath string
	hotkey     string
}

type triggerClient interface {
	TryTrigger(ctx context.Context) (delegated bool, backlog int, err error)
}

var errNoResident = errors.New("no running grammar fixer found")

func main() {
	// The OS hotkey backend needs the main thread on macOS.
	hotkey.RunOnMainThread(func() {
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	})
}

func run() error {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(normalizeLegacyArgs(os.Args)[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "grammar-fix",
		Short:         "Fix grammar of the selected text with a global hotkey",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadOptions := config.LoadOptions{
				APIKeyPathOverride: opts.apiKeyPath,
				HotkeyOverride:     opts.hotkey,
			}
			if opts.trigger {
				// Load .env early so SINGLEINSTANCE_PORT_* are applied before the scan.
				_, _ = config.LoadWithOptions(loadOptions)
				ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
				defer cancel()
				return delegateTrigger(ctx, singleinstance.NewClient(), cmd.OutOrStdout())
			}
			return runResident(loadOptions)
		},
	}

	cmd.Flags().BoolVar(&opts.trigger, "trigger", false, "Ask the running instance to fix the current selection, then exit")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	cmd.Flags().StringVar(&opts.hotkey, "hotkey", "", "Trigger key, e.g. CapsLock or Ctrl+Alt+G (overrides HOTKEY)")

	return cmd
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return []string{"grammar-fix"}
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"trigger", "api-key-path", "hotkey"} {
			single := "-" + name
			if arg == single || strings.HasPrefix(arg, single+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}

	return normalized
}

// delegateTrigger hands one trigger to the resident. It never falls back to a
// local run: only the resident owns the keyboard hook and the clipboard.
func delegateTrigger(ctx context.Context, client triggerClient, out io.Writer) error {
	delegated, backlog, err := client.TryTrigger(ctx)
	if err != nil {
		return fmt.Errorf("resident rejected trigger: %w", err)
	}
	if !delegated {
		start, end := singleinstance.PortRange()
		return fmt.Errorf("%w on ports %d-%d", errNoResident, start, end)
	}
	fmt.Fprintf(out, "queued (backlog %d)\n", backlog)
	return nil
}

func runResident(loadOptions config.LoadOptions) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{LoadOptions: loadOptions})
	if err != nil {
		return err
	}
	log := rt.Log
	defer func() { _ = log.Sync() }()

	// Refuse before installing the hook if a resident already owns the port.
	if port, ok := singleinstance.DetectResidentPort(ctx); ok {
		return fmt.Errorf("%w on port %d", singleinstance.ErrAlreadyRunning, port)
	}

	pipe, err := pipeline.New(pipeline.Options{
		Keys:        rt.Keys,
		Clipboard:   rt.Clipboard,
		Corrector:   rt.Corrector,
		SettleDelay: rt.Config.SettleDelay(),
		Logger:      log.Named("pipeline"),
		OnTransition: func(run uint64, from, to pipeline.State) {
			log.Debugw("state change", "run", run, "from", from, "to", to)
		},
	})
	if err != nil {
		return err
	}

	loop, err := eventloop.New(eventloop.Options{
		Listener: rt.Listener,
		Pipeline: pipe,
		NewServer: func(fn singleinstance.TriggerFunc) singleinstance.Server {
			return singleinstance.NewServer(fn, singleinstance.WithLogger(log.Named("singleinstance")))
		},
		Logger: log,
	})
	if err != nil {
		return err
	}

	go waitForSignal(cancel, log)

	log.Infow("grammar fixer ready", "hotkey", rt.Config.Hotkey)
	return loop.Run(ctx)
}

func waitForSignal(cancel context.CancelFunc, log *zap.SugaredLogger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	log.Infow("shutting down", "signal", sig.String())
	cancel()
}
