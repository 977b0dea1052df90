package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/intelbras/alarm-bridge/internal/bridge"
	"github.com/intelbras/alarm-bridge/internal/config"
	"github.com/intelbras/alarm-bridge/internal/diag"
	"github.com/intelbras/alarm-bridge/internal/eventlog"
)

var Version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "Path to an addon-style YAML options file (optional; env vars always apply)")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		os.Exit(1)
	}

	log.Infof("Starting intelbras-alarm-bridge v%s", Version)
	log.Infof("  protocol: %s", cfg.Protocol)
	log.Infof("  mqtt broker: %s:%d", cfg.MQTTBroker, cfg.MQTTPort)
	log.Infof("  diagnostics: %s:%d", cfg.DiagBindHost, cfg.DiagBindPort)

	zoneIDs, err := cfg.ZoneIDs()
	if err != nil {
		log.Errorf("failed to resolve zone configuration: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutdown signal received")
		cancel()
	}()

	eventLogWriter := eventlog.New(cfg.EventLogPath, cfg.EventLogRetentionDays, log.StandardLogger())
	defer eventLogWriter.Close()

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				eventLogWriter.Cleanup()
			}
		}
	}()

	protocol := bridge.ProtocolISECNet
	if cfg.Protocol == config.ProtocolAMT8000 {
		protocol = bridge.ProtocolLegacy
	}

	br := bridge.New(bridge.Config{
		Protocol: protocol,
		MQTT: bridge.MQTTConfig{
			Broker:    cfg.MQTTBroker,
			Port:      cfg.MQTTPort,
			User:      cfg.MQTTUser,
			Password:  cfg.MQTTPassword,
			ClientID:  "intelbras-alarm-bridge",
			TopicBase: "intelbras/alarm",
		},
		BindHost:          cfg.BindHost,
		BindPort:          cfg.BindPort,
		Password:          cfg.AlarmPassword,
		ZoneIDs:           zoneIDs,
		PartitionsEnabled: cfg.PartitionsEnabled,
		AlarmAddr:         formatAddr(cfg.AlarmIP, cfg.AlarmPort),
		SidecarBinaryPath: cfg.SidecarBinaryPath,
		SidecarConfigPath: cfg.SidecarConfigPath,
		PollInterval:      cfg.PollingInterval,
	}, log.StandardLogger())
	br.SetEventLog(eventLogWriter)

	diagServer := diag.New(cfg.DiagBindHost, cfg.DiagBindPort, br, log.StandardLogger())

	diagErrCh := make(chan error, 1)
	go func() { diagErrCh <- diagServer.Run(ctx) }()

	bridgeErrCh := make(chan error, 1)
	go func() { bridgeErrCh <- br.Run(ctx) }()

	select {
	case err := <-bridgeErrCh:
		if err != nil {
			log.Errorf("bridge error: %v", err)
			cancel()
			<-diagErrCh
			os.Exit(1)
		}
	case err := <-diagErrCh:
		if err != nil {
			log.Errorf("diagnostics server error: %v", err)
		}
	}

	<-ctx.Done()
	log.Info("shutdown complete")
}

func formatAddr(host string, port int) string {
	if host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", host, port)
}
