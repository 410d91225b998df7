package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobmcallan/aether/internal/app"
	"github.com/bobmcallan/aether/internal/common"
	"github.com/bobmcallan/aether/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to aether.toml (default: $AETHER_CONFIG, then next to the binary)")
	importPath := flag.String("import", "", "replace the ledger with this workspace file before serving")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		common.LoadVersionFromFile()
		fmt.Println(common.GetFullVersion())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApp(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	common.PrintBanner(os.Stdout, a.Config, a.Logger)

	if *importPath != "" {
		if _, err := a.ImportWorkspaceFromFile(*importPath); err != nil {
			a.Logger.Error().Err(err).Msg("Workspace import failed")
			a.Close()
			os.Exit(1)
		}
	}

	// Start background services
	a.StartScheduler(ctx)

	srv := server.NewServer(a)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	a.Logger.Info().
		Str("url", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)).
		Msg("Server ready")

	<-ctx.Done()
	a.Logger.Info().Msg("Shutdown signal received")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	a.Close()
	common.PrintShutdownBanner(os.Stdout, a.Logger)
}
