package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/loqalabs/loqa-narrator/internal/config"
	"github.com/loqalabs/loqa-narrator/internal/describe"
	"github.com/loqalabs/loqa-narrator/internal/runtime"
	"github.com/loqalabs/loqa-narrator/internal/speech"
	"github.com/loqalabs/loqa-narrator/internal/voice"
)

var version = "0.1.0-dev"

const usage = "expected one of 'describe', 'voices', 'say', 'validate' or 'version'"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "describe":
		err = runDescribe(os.Args[2:], os.Stdout)
	case "voices":
		err = runVoices(ctx, os.Args[2:], os.Stdout)
	case "say":
		err = runSay(ctx, os.Args[2:], os.Stdout)
	case "validate":
		err = runValidate(os.Args[2:], os.Stdout)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configFlags registers the flags every config-driven subcommand shares.
func configFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	path := fs.String("config", "narrator.yaml", "Path to configuration file (empty for defaults)")
	return fs, path
}

func runDescribe(args []string, out io.Writer) error {
	fs, path := configFlags("describe")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	p := cfg.Project
	fmt.Fprintln(out, describe.Generate(describe.Project{
		Name:        p.Name,
		Version:     p.Version,
		Description: p.Description,
		Notes:       p.Notes,
	}, p.Components))
	return nil
}

func runValidate(args []string, out io.Writer) error {
	fs, path := configFlags("validate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := config.Load(*path); err != nil {
		return err
	}
	fmt.Fprintln(out, "config valid")
	return nil
}

func runVoices(ctx context.Context, args []string, out io.Writer) error {
	fs, path := configFlags("voices")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	engine, closeEngine, err := localEngine(cfg)
	if err != nil {
		return err
	}
	defer closeEngine()

	voices, err := engine.ListVoices(ctx)
	if err != nil {
		return fmt.Errorf("list voices: %w", err)
	}
	for _, v := range voices {
		fmt.Fprintf(out, "%s\t%s\n", v.Name, v.Language)
	}
	return nil
}

// runSay speaks one utterance through a controller and waits for it to end.
func runSay(ctx context.Context, args []string, out io.Writer) error {
	fs, path := configFlags("say")
	voiceName := fs.String("voice", "", "Voice name (default: first available)")
	rate := fs.String("rate", "1", "Speaking rate")
	pitch := fs.String("pitch", "1", "Speaking pitch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	engine, closeEngine, err := localEngine(cfg)
	if err != nil {
		return err
	}
	defer closeEngine()

	logger := runtime.NewLogger(cfg.Telemetry, os.Stderr)
	ctrl := voice.New(engine, voice.Options{Logger: logger, Trace: voice.NewLogSink(logger)})
	defer ctrl.Close()
	if err := ctrl.Initialize(ctx); err != nil {
		return err
	}
	if *voiceName != "" {
		ctrl.SelectVoice(*voiceName)
	}
	ctrl.SetRate(*rate)
	ctrl.SetPitch(*pitch)

	text := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(text) == "" {
		p := cfg.Project
		text = describe.Generate(describe.Project{Name: p.Name, Version: p.Version, Description: p.Description, Notes: p.Notes}, p.Components)
	}

	if err := ctrl.Speak(ctx, text); err != nil {
		return err
	}
	updates, cancel := ctrl.Subscribe()
	defer cancel()
	fmt.Fprintf(out, "speaking: %s\n", text)
	for {
		select {
		case <-ctx.Done():
			ctrl.Stop()
			return ctx.Err()
		case snap := <-updates:
			if snap.Status != voice.StatusIdle {
				continue
			}
			if snap.LastError != "" {
				return errors.New(snap.LastError)
			}
			return nil
		}
	}
}

// localEngine builds the engine the config names. The bus engine needs a
// running narrator, so the CLI only drives local engines.
func localEngine(cfg config.Config) (speech.Engine, func(), error) {
	switch cfg.Engine.Mode {
	case "exec":
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		engine, err := speech.NewExecEngine(speech.ExecConfig{
			Command:       cfg.Engine.Command,
			VoicesCommand: cfg.Engine.VoicesCommand,
			VoicesDir:     cfg.Engine.VoicesDir,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return engine, func() { _ = engine.Close() }, nil
	case "mock":
		voices := make([]speech.Voice, 0, len(cfg.Engine.MockVoices))
		for _, v := range cfg.Engine.MockVoices {
			voices = append(voices, speech.Voice{Name: v.Name, Language: v.Language})
		}
		return speech.NewMockEngine(voices, time.Duration(cfg.Engine.MockDurationMS)*time.Millisecond), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("engine mode %q is not available from the CLI", cfg.Engine.Mode)
	}
}
