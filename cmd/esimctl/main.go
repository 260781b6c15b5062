// Command esimctl drives the storefront client from a terminal: sign in,
// browse packages and inspect installed eSIMs.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	esim "github.com/iscanabdulhalik/go-esim"
	"github.com/iscanabdulhalik/go-esim/adapters/gocommand"
	"github.com/iscanabdulhalik/go-esim/adapters/gologrus"
	"github.com/iscanabdulhalik/go-esim/core"
)

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("esimctl"),
		kong.Description("Command line client for the eSIM storefront API."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, kctx, &cli, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "esimctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, kctx *kong.Context, cli *CLI, stdout io.Writer, stderr io.Writer) error {
	logger, err := gologrus.New(gologrus.Config{
		Level:     cli.LogLevel,
		Format:    gologrus.FormatText,
		File:      cli.LogFile,
		MaxSizeMB: 10,
	}, logOutput(cli, stderr)...)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	handlers := gocommand.NewSessionHandlers()
	defer handlers.Close()
	if err := handlers.HandleFunc(func(_ context.Context, msg gocommand.SessionEndedMessage) error {
		logger.Info("session ended", "reason", string(msg.Reason), "path", msg.Path)
		if msg.Reason == core.SessionEndLogout {
			return nil
		}
		fmt.Fprintln(stderr, "session expired, run `esimctl login` again")
		return nil
	}); err != nil {
		return err
	}
	if err := handlers.Initialize(); err != nil {
		return err
	}

	runtime, err := esim.Setup(ctx,
		esim.WithConfigLoader(cli.configLoader()),
		esim.WithRuntimeConfig(cli.overrides()),
		esim.WithLoggerProvider(logger),
		esim.WithLogger(logger),
		esim.WithSessionObserver(gocommand.NewSessionObserver()),
	)
	if err != nil {
		return err
	}
	defer func() { _ = runtime.Close() }()

	return kctx.Run(&app{
		ctx:     ctx,
		runtime: runtime,
		out:     stdout,
		json:    cli.JSON,
	})
}

func logOutput(cli *CLI, stderr io.Writer) []gologrus.Option {
	if cli.LogFile != "" {
		return nil
	}
	return []gologrus.Option{gologrus.WithOutput(stderr)}
}
