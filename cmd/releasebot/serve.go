package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amaumene/releasebot/internal/api"
	"github.com/amaumene/releasebot/internal/bot"
	"github.com/amaumene/releasebot/internal/controllers"
	"github.com/sourcegraph/conc"
)

func runServe(parent context.Context) error {
	// 1. Load configuration, logger and store
	a, err := newApp(parent)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.logger.Info("Starting releasebot")

	// 2. Initialize services
	tmdbClient, err := a.newTMDB()
	if err != nil {
		return err
	}
	a.logger.Info("TMDB client initialized")

	tg, err := a.newTelegram()
	if err != nil {
		return err
	}

	// 3. Initialize controllers
	registry := controllers.NewRegistry(a.store, a.metrics, a.logger)
	b := bot.NewBot(a.store, registry, tmdbClient, tg, a.logger)
	a.logger.Info("Controllers initialized")

	// 4. Initialize scheduler
	sched, err := a.newScheduler(tmdbClient, tg)
	if err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()
	a.logger.WithField("next_sweep", sched.Next()).Info("Next release sweep scheduled")

	// 5. Initialize HTTP server
	server := api.NewServer(a.cfg.ServerPort, api.Deps{
		Store:     a.store,
		Sweeps:    sched,
		NextSweep: sched.Next,
		Gatherer:  a.registry,
	}, a.logger)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var wg conc.WaitGroup
	serverErrChan := make(chan error, 1)
	wg.Go(func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	})

	// 6. Start polling Telegram
	updates := tg.Updates()
	wg.Go(func() {
		b.Run(ctx, updates)
	})

	// 7. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	a.logger.WithField("username", tg.Username()).Info("releasebot is running")

	var runErr error
	select {
	case err := <-serverErrChan:
		runErr = fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		a.logger.WithField("signal", sig).Info("Received shutdown signal")
	case <-parent.Done():
	}

	cancel()
	tg.Stop()
	wg.Wait()

	a.logger.Info("releasebot stopped")
	return runErr
}
