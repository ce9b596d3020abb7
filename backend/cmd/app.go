package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/adwski/interest-chat/backend/config"
	httpServer "github.com/adwski/interest-chat/backend/server/http"
	websocketServer "github.com/adwski/interest-chat/backend/server/websocket"
	"github.com/adwski/interest-chat/backend/service"
	sw "github.com/adwski/interest-chat/backend/switch"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	svc := service.NewService(service.Config{
		Switch:        sw.NewSwitch(&logger),
		Logger:        &logger,
		WaitTTL:       cfg.WaitTTL,
		SweepInterval: cfg.SweepInterval,
	})
	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger:        &logger,
		StatsService:  svc,
		ListenAddr:    cfg.APIListenAddr,
		AllowedOrigin: cfg.AllowedOrigin,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:         &logger,
		SessionService: svc,
		ListenAddr:     cfg.WSListenAddr,
		AllowedOrigin:  cfg.AllowedOrigin,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(3)
	go httpSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)
	go svc.Run(ctx, wg)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}
