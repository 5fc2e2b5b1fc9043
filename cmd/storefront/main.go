// Command storefront is the terminal front end of the flower shop client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/itsneelabh/storefront"
	"github.com/itsneelabh/storefront/core"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, errorLine(err))
		os.Exit(1)
	}
}

// errorLine formats err for the terminal, marking failures that a later
// retry may clear.
func errorLine(err error) string {
	if core.IsTransient(err) {
		return fmt.Sprintf("error: %v (backend unreachable, try again)", err)
	}
	return fmt.Sprintf("error: %v", err)
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "storefront",
		Usage:   "browse flower shops, manage the cart and place orders",
		Version: storefront.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "configuration file (JSON or YAML)",
				EnvVars: []string{"STOREFRONT_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "backend base URL",
			},
			&cli.StringFlag{
				Name:  "storage",
				Usage: "local storage: inmemory, sqlite or redis",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "error, warn, info or debug",
			},
		},
		Commands: []*cli.Command{
			sessionCommand(),
			shopsCommand(),
			flowersCommand(),
			cartCommand(),
			checkoutCommand(),
			orderCommand(),
			favoriteCommand(),
			shellCommand(),
		},
	}
}

// openRuntime builds the runtime from the global flags.
func openRuntime(c *cli.Context) (*storefront.Runtime, error) {
	var opts []storefront.Option
	if v := c.String("base-url"); v != "" {
		opts = append(opts, storefront.WithBaseURL(v))
	}
	if v := c.String("storage"); v != "" {
		opts = append(opts, storefront.WithStorage(v))
	}
	if v := c.String("log-level"); v != "" {
		opts = append(opts, storefront.WithLogLevel(v))
	}

	cfg, err := storefront.NewConfig(c.String("config"), opts...)
	if err != nil {
		return nil, err
	}
	return storefront.Open(c.Context, cfg, nil)
}

// withRuntime opens the runtime, starts the app and runs fn.
func withRuntime(fn func(c *cli.Context, rt *storefront.Runtime) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		rt, err := openRuntime(c)
		if err != nil {
			return err
		}
		defer func() {
			if err := rt.Close(context.Background()); err != nil {
				rt.Logger.Warn("Shutdown incomplete", map[string]interface{}{"error": err.Error()})
			}
		}()

		if err := rt.App.Start(c.Context); err != nil {
			return fmt.Errorf("start: %w", err)
		}
		return fn(c, rt)
	}
}
