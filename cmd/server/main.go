package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lemunozm/asciiarena-sub000/internal/config"
	"github.com/lemunozm/asciiarena-sub000/internal/httpapi"
	"github.com/lemunozm/asciiarena-sub000/internal/server"
	"github.com/lemunozm/asciiarena-sub000/internal/transport"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		os.Exit(1)
	}

	// The process signal layer only writes to the loop's cancellation
	// token; the loop itself decides when to stop.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	netEvents := make(chan transport.Event, 256)
	network, err := transport.Listen(cfg.TcpAddr, cfg.UdpAddr, netEvents, logger)
	if err != nil {
		// Binding failure on either port is fatal to startup.
		logger.Error("startup failed", zap.Error(err))
		os.Exit(1)
	}
	defer network.Shutdown()

	srv := server.New(cfg, network, logger)
	go srv.Pump(netEvents)

	go func() {
		logger.Info("http status api listening", zap.String("addr", cfg.HttpAddr))
		if err := http.ListenAndServe(cfg.HttpAddr, httpapi.SetupRoutes(srv, logger)); err != nil {
			logger.Error("http api stopped", zap.Error(err))
		}
	}()

	logger.Info("listening",
		zap.Int("tcp_port", network.TcpPort()),
		zap.Int("udp_port", network.UdpPort()))
	srv.Run(ctx)
}
