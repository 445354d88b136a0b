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

	"github.com/luki/smoker/internal/bridge"
	"github.com/luki/smoker/internal/config"
	"github.com/luki/smoker/internal/logging"
	"github.com/luki/smoker/internal/notify"
	"github.com/luki/smoker/internal/rules"
	"github.com/luki/smoker/internal/server"
	"github.com/luki/smoker/internal/state"
	"github.com/luki/smoker/internal/store"
	"github.com/luki/smoker/internal/ws"
)

const shutdownTimeout = 5 * time.Second

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to YAML config file")
	fs.Parse(args)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	st, err := store.New(cfg.Data.Dir)
	if err != nil {
		logging.Error().Err(err).Msg("open store")
		os.Exit(1)
	}
	defer st.Close()

	if cfg.Push.VapidPublic == "" || cfg.Push.VapidPrivate == "" {
		logging.Warn().Msg("VAPID keys not configured, push deliveries will fail")
	}

	states := state.NewFile(cfg.Data.Dir)
	hub := ws.NewHub()
	sender := notify.NewWebPush(cfg.Push.VapidPublic, cfg.Push.VapidPrivate, cfg.Push.Subscriber)
	dispatcher := notify.NewDispatcher(sender, cfg.Push.Icon)

	br := bridge.New(hub, st, states, dispatcher,
		rules.NewEvaluator(cfg.Bridge.Cooldown),
		bridge.Options{Decimation: cfg.Bridge.Decimation})
	hub.SetHandler(br)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(st, states, hub).Router(),
	}

	go func() {
		<-ctx.Done()
		logging.Info().Msg("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutCtx); err != nil {
			logging.Error().Err(err).Msg("shutdown")
		}
	}()

	logging.Info().
		Str("addr", cfg.Server.Addr).
		Str("data_dir", cfg.Data.Dir).
		Int("decimation", cfg.Bridge.Decimation).
		Msg("smoker backend listening")

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error().Err(err).Msg("server")
		os.Exit(1)
	}
}
