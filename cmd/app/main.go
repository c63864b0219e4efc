package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/quackstagram/internal"
	pkgconfig "github.com/starford/quackstagram/pkg/config"
)

// openApp loads the config named by the --config flag and opens the backend.
func openApp(cmd *cli.Command) (*internal.App, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithLogOutput(cmd.Root().ErrWriter),
	}

	app, err := internal.Open(opts...)
	if err != nil {
		return nil, fmt.Errorf("app open error: %w", err)
	}
	return app, nil
}

// withApp adapts an action that needs an opened app.
func withApp(fn func(ctx context.Context, cmd *cli.Command, app *internal.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(ctx, cmd, app)
	}
}

func main() {
	cmd := &cli.Command{
		Name:      "quackstagram",
		Usage:     "Photo sharing records kept in flat files or SQLite",
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: commands(),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
