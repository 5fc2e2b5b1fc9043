// Command mock-backend serves the in-memory flower shop backend for local
// development of the storefront client.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/itsneelabh/storefront/core"
	"github.com/itsneelabh/storefront/internal/mockbackend"
)

func main() {
	app := &cli.App{
		Name:  "mock-backend",
		Usage: "in-memory flower shop backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":3000",
				EnvVars: []string{"PORT_ADDR"},
			},
			&cli.StringFlag{
				Name:  "catalog-shape",
				Value: mockbackend.ShapeEnvelope,
				Usage: "flower listing shape: envelope or list",
			},
			&cli.StringFlag{
				Name:  "order-id",
				Value: mockbackend.IDInBody,
				Usage: "where created orders report their id: body, order, data, location or none",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
			},
		},
		Action: serve,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	switch c.String("catalog-shape") {
	case mockbackend.ShapeEnvelope, mockbackend.ShapeList:
	default:
		return fmt.Errorf("unknown catalog shape %q", c.String("catalog-shape"))
	}
	switch c.String("order-id") {
	case mockbackend.IDInBody, mockbackend.IDInOrder, mockbackend.IDInData, mockbackend.IDInLocation, mockbackend.IDNone:
	default:
		return fmt.Errorf("unknown order id style %q", c.String("order-id"))
	}

	logger := core.NewProductionLogger(
		core.LoggingConfig{Level: c.String("log-level"), Format: "json", Output: "stdout"},
		core.DevelopmentConfig{},
		"mock-backend",
	)

	store := mockbackend.NewStore()
	store.Seed()
	handler := mockbackend.New(store, mockbackend.Options{
		CatalogShape: c.String("catalog-shape"),
		OrderIDStyle: c.String("order-id"),
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              c.String("addr"),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Mock backend listening", map[string]interface{}{
			"addr":          srv.Addr,
			"catalog_shape": c.String("catalog-shape"),
			"order_id":      c.String("order-id"),
		})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("Mock backend shutting down", nil)
	return srv.Shutdown(shutdownCtx)
}
