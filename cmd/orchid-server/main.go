package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/blutspende/orchid"
	"github.com/blutspende/orchid/internal/logging"
	"github.com/blutspende/orchid/protocol"
	"github.com/rs/zerolog/log"
)

// echoHandler sends every message back on the connection it came from.
type echoHandler struct {
	protocol protocol.Implementation
}

func (h *echoHandler) DataReceived(conn *orchid.Connection, data []byte, receiveTimestamp time.Time) {
	conn.Logger().Info().Int("bytes", len(data)).Time("received", receiveTimestamp).Msg("message")
	if _, err := h.protocol.Send(conn, data); err != nil {
		conn.Logger().Warn().Err(err).Msg("echo failed")
	}
}

func (h *echoHandler) Error(conn *orchid.Connection, typeOfError orchid.ErrorType, err error) {
	conn.Logger().Warn().Err(err).Stringer("type", typeOfError).Msg("connection failed")
}

func (h *echoHandler) Disconnected(conn *orchid.Connection) {
	conn.Logger().Info().Msg("disconnected")
}

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	listen := flag.String("listen", "", "listen address, overrides the config file")
	protocolName := flag.String("protocol", "", "framing protocol, overrides the config file")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg := orchid.DefaultServerConfiguration()
	if *configPath != "" {
		loaded, err := orchid.LoadServerConfiguration(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("failed to load config")
		}
		cfg = loaded
		log.Info().Str("path", *configPath).Msg("loaded config")
	}
	if *listen != "" {
		cfg.ListenAddress = *listen
	}
	if *protocolName != "" {
		cfg.Protocol = strings.ToLower(strings.TrimSpace(*protocolName))
	}

	handler := &echoHandler{}
	strategy, err := protocol.ByName(cfg.Protocol, handler)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid protocol")
	}
	handler.protocol = strategy

	server := orchid.CreateNewTCPServerInstance(cfg.ListenAddress, strategy, cfg.Proxy, cfg.MaxConnections, cfg.Timing)
	if cfg.Protocol == "websocket" {
		server.WithUpgrade(protocol.UpgradeWebSocket)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
	log.Info().Str("protocol", cfg.Protocol).Int("max_connections", cfg.MaxConnections).Msg("orchid server started")

	<-ctx.Done()
	if err := server.Stop(); err != nil {
		log.Error().Err(err).Msg("stop")
	}
	log.Info().Msg("orchid server stopped")
}
