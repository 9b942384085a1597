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
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/tjfontaine/agent-launcher/internal/pkg/config"
	"github.com/tjfontaine/agent-launcher/internal/telemetry"
	"github.com/tjfontaine/agent-launcher/pkg/launcher"
)

var version = "dev"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code. Deferred cleanup, the tracer flush
// included, has completed by the time it returns.
func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("launcher", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	var (
		configPath    = flags.StringP("config", "c", "config.yaml", "path to the configuration file")
		roomURL       = flags.String("room-url", "", "room to join instead of provisioning one (same as ?room_url=)")
		port          = flags.IntP("port", "p", 0, "listen port (overrides listen.port)")
		autostart     = flags.Bool("autostart", false, "walk the setup flow and start a session immediately")
		scenario      = flags.String("scenario", "", "scenario to start with --autostart")
		redirect      = flags.Bool("redirect", false, "open the room instead of joining it with --autostart")
		startAudioOff = flags.Bool("start-audio-off", false, "join with the microphone muted")
		debug         = flags.Bool("debug", false, "enable debug logging")
		showVersion   = flags.Bool("version", false, "print the version and exit")
	)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion {
		fmt.Fprintln(stdout, version)
		return 0
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("agent-launcher", logger,
		telemetry.WithWriter(stderr),
		telemetry.WithServiceVersion(version))
	if err != nil {
		logger.Error("failed to initialize tracer", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	_, span := otel.Tracer("github.com/tjfontaine/agent-launcher/cmd/launcher").Start(context.Background(), "launcher.run")
	defer span.End()

	fail := func(msg string, err error) int {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		logger.Error(msg, slog.String("error", err.Error()))
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fail("failed to load config", err)
	}
	if *roomURL != "" {
		cfg.Room.URL = *roomURL
	}
	if *port != 0 {
		cfg.Listen.Port = *port
	}

	l, err := launcher.New(
		launcher.WithConfig(cfg),
		launcher.WithLogger(logger),
	)
	if err != nil {
		return fail("failed to create launcher", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := l.Start(ctx); err != nil {
		return fail("failed to start launcher", err)
	}

	if *autostart {
		err := l.Autostart(ctx, launcher.AutostartOptions{
			Scenario:      *scenario,
			Redirect:      *redirect,
			StartAudioOff: *startAudioOff,
		})
		if err != nil {
			logger.Error("autostart failed", slog.String("error", err.Error()))
		}
	}

	exitCode := 0
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping launcher")
	case err := <-l.Err():
		fail("server stopped", err)
		exitCode = 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := l.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		fail("shutdown error", err)
		exitCode = 1
	}
	return exitCode
}
