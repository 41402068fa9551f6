package runtimeinit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"grammar-fix/src/clipboard"
	"grammar-fix/src/config"
	"grammar-fix/src/correction"
	"grammar-fix/src/hotkey"
	"grammar-fix/src/keys"
	"grammar-fix/src/logutil"
)

type Options struct {
	LoadOptions config.LoadOptions
	// SetupLogging builds the process logger; defaults to logutil.Setup.
	SetupLogging func(enableFileLogging bool, level string) *zap.SugaredLogger
}

// Runtime is everything the resident needs, built once at startup.
type Runtime struct {
	Config    *config.Config
	Log       *zap.SugaredLogger
	Corrector *correction.Client
	Clipboard *clipboard.Adapter
	Keys      keys.Simulator
	Listener  hotkey.Listener
}

// LoadConfig loads and validates configuration and sets up logging.
func LoadConfig(opts Options) (*config.Config, *zap.SugaredLogger, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	setup := opts.SetupLogging
	if setup == nil {
		setup = logutil.Setup
	}
	log := setup(cfg.EnableFileLogging, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// NewCorrector builds the correction client from configuration.
func NewCorrector(cfg *config.Config, log *zap.SugaredLogger) *correction.Client {
	return correction.New(correction.Options{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		Model:        cfg.Model,
		SystemPrompt: cfg.SystemPrompt,
		Providers:    cfg.Providers,
		Timeout:      cfg.RequestDeadline(),
		MaxRetries:   cfg.MaxRetries,
	}, log.Named("correction"))
}

// Bootstrap builds every resident component. Any error is fatal.
func Bootstrap(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, log, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}

	corrector := NewCorrector(cfg, log)
	if cfg.VerifyOnStartup {
		if err := corrector.Ping(ctx); err != nil {
			return nil, fmt.Errorf("startup check failed: %w", err)
		}
		log.Infow("correction service reachable", "base_url", cfg.BaseURL)
	}

	cb, err := clipboard.New(cfg.ClipboardBackend)
	if err != nil {
		return nil, err
	}

	sim, err := keys.New(cfg.InputBackend)
	if err != nil {
		return nil, err
	}

	listener, err := hotkey.New(cfg.HotkeyBackend, cfg.Hotkey, log.Named("hotkey"))
	if err != nil {
		return nil, fmt.Errorf("failed to configure hotkey: %w", err)
	}

	log.Infow("grammar fixer initialized",
		"model", cfg.Model,
		"base_url", cfg.BaseURL,
		"api_key", logutil.RedactKey(cfg.APIKey),
		"hotkey", cfg.Hotkey,
		"hotkey_backend", listener.Backend(),
		"input_backend", cfg.InputBackend,
		"clipboard_backend", cb.Backend(),
		"settle_delay", cfg.SettleDelay(),
	)

	return &Runtime{
		Config:    cfg,
		Log:       log,
		Corrector: corrector,
		Clipboard: cb,
		Keys:      sim,
		Listener:  listener,
	}, nil
}
