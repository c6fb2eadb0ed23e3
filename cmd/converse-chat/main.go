// Command converse-chat is an interactive terminal chat over a Bedrock,
// HTTP endpoint or Gemini backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mhpenta/converse"
	"github.com/mhpenta/converse/internal/chatui"
	"github.com/mhpenta/converse/internal/config"
	"github.com/mhpenta/converse/provider/bedrock"
	"github.com/mhpenta/converse/provider/gemini"
	"github.com/mhpenta/converse/provider/httpendpoint"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "converse-chat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags, err := config.ParseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		return err
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("stdout is not a terminal")
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}

	logPath := flags.LogPath
	if logPath == "" {
		logPath = cfg.LogPath
	}
	logger, closeLog, err := newLogger(logPath, flags.Dev)
	if err != nil {
		return err
	}
	defer closeLog()

	backend, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}

	manager := converse.NewManager([]converse.Backend{backend}, converse.WithLogger(logger))
	defer manager.Close()

	policy := converse.AttachFirstTurnOnly
	if cfg.AttachEveryTurn {
		policy = converse.AttachEveryTurn
	}

	session, err := converse.NewSession(manager,
		converse.WithSessionConfig(cfg.InvocationConfig()),
		converse.WithSystemTemplate(cfg.SystemPrompt),
		converse.WithAttachPolicy(policy),
		converse.WithSessionLogger(logger))
	if err != nil {
		return err
	}
	logger.Info("session started",
		"session_id", session.ID(),
		"provider", cfg.Provider,
		"model", cfg.Model)

	model := chatui.New(session,
		chatui.WithLogger(logger),
		chatui.WithMarkdownStyle(markdownStyle()))
	if flags.ImagePath != "" {
		img, err := converse.ImageFromFile(flags.ImagePath)
		if err != nil {
			return err
		}
		if err := session.AttachImage(img); err != nil {
			return err
		}
		model.AttachedImage(flags.ImagePath)
	}

	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func markdownStyle() string {
	if termenv.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

// newLogger writes JSON logs to path, or discards them so the UI owns the
// terminal.
func newLogger(path string, dev bool) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if dev {
		level = slog.LevelDebug
	}
	if path == "" {
		return slog.New(slog.NewJSONHandler(io.Discard, nil)), func() {}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { _ = f.Close() }, nil
}

func newBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (converse.Backend, error) {
	pc := cfg.ProviderConfig()

	switch pc.Provider {
	case converse.ProviderBedrock:
		return bedrock.New(ctx, pc, bedrock.WithLogger(logger))
	case converse.ProviderHTTPEndpoint:
		// Gateways in front of Bedrock accept the same model ids.
		return httpendpoint.New(pc, bedrock.DefaultModels(), httpendpoint.WithLogger(logger))
	case converse.ProviderGeminiAPI:
		if cfg.Model == string(converse.ModelDefault) {
			cfg.Model = gemini.FlashInfo.Name
		}
		g, err := gemini.New(ctx, pc)
		if err != nil {
			return nil, err
		}
		return g.SetLogger(logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", converse.ErrProviderNotConfigured, pc.Provider)
	}
}
