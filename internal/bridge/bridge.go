package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/intelbras/alarm-bridge/internal/diag"
	"github.com/intelbras/alarm-bridge/internal/handler"
	"github.com/intelbras/alarm-bridge/internal/legacy"
	"github.com/intelbras/alarm-bridge/internal/server"
)

// Protocol selects which panel dialect the bridge drives.
type Protocol int

const (
	ProtocolISECNet Protocol = iota
	ProtocolLegacy
)

// Config is the full bridge wiring configuration, assembled in cmd/bridge
// from the settings internal/config resolves from the environment and/or an
// addon options file.
type Config struct {
	Protocol Protocol

	MQTT MQTTConfig

	// ISECNet-mode fields.
	BindHost          string
	BindPort          int
	Password          string
	ZoneIDs           []int
	PartitionsEnabled bool

	// Legacy-mode fields.
	AlarmAddr         string
	SidecarBinaryPath string
	SidecarConfigPath string

	PollInterval time.Duration
}

// Bridge is the top-level runtime: it owns the MQTT connection, the poll
// ticker, and graceful shutdown. Panel access is serialized by the
// handler's lock in ISECNet mode and by the legacy client's socket lock in
// legacy mode; this struct's own pollMu guards only the diagnostics fields. Corresponds to addon_main.py's module-level wiring collapsed
// into one struct per component.
type Bridge struct {
	cfg Config
	log *logrus.Entry
	pub *mqttPublisher

	isecHandler *handler.Handler
	isecServer  *server.Server

	legacyClient  *legacy.Client
	legacySidecar *legacy.Sidecar

	pollMu      sync.Mutex
	lastPollAt  time.Time
	lastPollErr error

	eventLog handler.EventLogger
}

// DiagStatus implements diag.StatusProvider.
func (b *Bridge) DiagStatus() diag.Status {
	b.pollMu.Lock()
	defer b.pollMu.Unlock()

	connected := false
	if b.cfg.Protocol == ProtocolLegacy {
		connected = b.legacyClient != nil
	} else if b.isecServer != nil {
		connected = b.isecServer.Manager.Count() > 0
	}

	st := diag.Status{
		Protocol:       protocolName(b.cfg.Protocol),
		PanelConnected: connected,
		Zones:          len(b.cfg.ZoneIDs),
		LastPollAt:     b.lastPollAt,
	}
	if b.lastPollErr != nil {
		st.LastPollError = b.lastPollErr.Error()
	}
	return st
}

func (b *Bridge) recordPoll(err error) {
	b.pollMu.Lock()
	defer b.pollMu.Unlock()
	b.lastPollAt = time.Now()
	b.lastPollErr = err
}

func protocolName(p Protocol) string {
	if p == ProtocolLegacy {
		return "amt8000"
	}
	return "isecnet"
}

// New constructs a Bridge. Call Run to start it.
func New(cfg Config, log *logrus.Logger) *Bridge {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Minute
	}
	if cfg.MQTT.TopicBase == "" {
		cfg.MQTT.TopicBase = "intelbras/alarm"
	}
	return &Bridge{cfg: cfg, log: log.WithField("component", "bridge")}
}

// SetEventLog wires an optional sidecar audit log into the ISECNet
// handler. Must be called before Run.
func (b *Bridge) SetEventLog(w handler.EventLogger) {
	b.eventLog = w
}

// Run blocks until ctx is canceled, driving either the ISECNet or legacy
// dialect per cfg.Protocol.
func (b *Bridge) Run(ctx context.Context) error {
	b.pub = newMQTTPublisher(b.cfg.MQTT, b.log.Logger)
	if err := b.pub.connect(); err != nil {
		return fmt.Errorf("bridge: mqtt connect: %w", err)
	}
	defer b.pub.disconnect()

	if err := b.pub.Publish(b.cfg.MQTT.TopicBase+"/availability", "online", true); err != nil {
		b.log.WithError(err).Warn("failed to publish initial availability")
	}

	var runErr error
	switch b.cfg.Protocol {
	case ProtocolLegacy:
		runErr = b.runLegacy(ctx)
	default:
		runErr = b.runISECNet(ctx)
	}

	b.pub.Publish(b.cfg.MQTT.TopicBase+"/availability", "offline", true)
	return runErr
}

func (b *Bridge) runISECNet(ctx context.Context) error {
	b.isecHandler = handler.New(handler.Config{
		Password:          b.cfg.Password,
		ZoneIDs:           b.cfg.ZoneIDs,
		PartitionsEnabled: b.cfg.PartitionsEnabled,
		TopicBase:         b.cfg.MQTT.TopicBase,
		Logger:            b.log.Logger,
	}, b.pub)
	if b.eventLog != nil {
		b.isecHandler.SetEventLog(b.eventLog)
	}

	b.isecServer = server.New(server.Config{
		BindHost:              b.cfg.BindHost,
		BindPort:              b.cfg.BindPort,
		AutoAckHeartbeat:      true,
		AutoAckIdentification: true,
		OnConnect:             b.isecHandler.OnConnect,
		OnDisconnect:          b.isecHandler.OnDisconnect,
		OnFrame:               b.isecHandler.OnFrame,
		Logger:                b.log.Logger,
	})
	b.isecHandler.Attach(b.isecServer)

	commandTopic := b.cfg.MQTT.TopicBase + "/command"
	if err := b.pub.subscribe(commandTopic, func(_ mqtt.Client, msg mqtt.Message) {
		if err := b.isecHandler.HandleCommand(context.Background(), string(msg.Payload())); err != nil {
			b.log.WithError(err).WithField("command", string(msg.Payload())).Warn("command failed")
		}
	}); err != nil {
		return fmt.Errorf("bridge: subscribe command topic: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() { serverErrCh <- b.isecServer.Run(ctx) }()

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.isecServer.Stop()
			return nil
		case err := <-serverErrCh:
			return err
		case <-ticker.C:
			pollCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := b.isecHandler.PollStatus(pollCtx)
			if err != nil {
				b.log.WithError(err).Debug("status poll failed")
			}
			b.recordPoll(err)
			cancel()
		}
	}
}

func (b *Bridge) runLegacy(ctx context.Context) error {
	b.legacyClient = legacy.New(b.cfg.AlarmAddr, b.cfg.Password, b.log.Logger)

	if _, err := b.legacyClient.Authenticate(); err != nil {
		return fmt.Errorf("bridge: legacy auth: %w", err)
	}

	commandTopic := b.cfg.MQTT.TopicBase + "/command"
	if err := b.pub.subscribe(commandTopic, func(_ mqtt.Client, msg mqtt.Message) {
		b.handleLegacyCommand(string(msg.Payload()))
	}); err != nil {
		return fmt.Errorf("bridge: subscribe command topic: %w", err)
	}

	var sidecarEvents <-chan legacy.Event
	if b.cfg.SidecarBinaryPath != "" {
		b.legacySidecar = legacy.NewSidecar(b.cfg.SidecarBinaryPath, b.cfg.SidecarConfigPath, b.log.Logger)
		events, err := b.legacySidecar.Run(ctx)
		if err != nil {
			b.legacyClient.Close()
			return fmt.Errorf("bridge: legacy sidecar: %w", err)
		}
		sidecarEvents = events
	}

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.legacyClient.Close()
			return nil
		case ev, ok := <-sidecarEvents:
			if !ok {
				sidecarEvents = nil
				continue
			}
			b.publishLegacyEvent(ev)
		case <-ticker.C:
			b.pollLegacyStatus()
		}
	}
}

func (b *Bridge) handleLegacyCommand(raw string) {
	token := handler.NormalizeCommand(raw)
	var err error
	switch token {
	case "ARM_AWAY":
		_, err = b.legacyClient.Arm(legacy.PartitionAll)
	case "DISARM":
		err = b.legacyClient.Disarm(legacy.PartitionAll)
	case "PANIC":
		err = b.legacyClient.Panic(0x01)
		if err == nil {
			b.pub.Publish(b.cfg.MQTT.TopicBase+"/panic", "on", false)
			time.AfterFunc(30*time.Second, func() {
				b.pub.Publish(b.cfg.MQTT.TopicBase+"/panic", "off", false)
			})
		}
	default:
		b.log.WithField("command", token).Warn("unrecognized legacy command, ignoring")
		return
	}
	if err != nil {
		b.log.WithError(err).WithField("command", token).Warn("legacy command failed")
	}
}

func (b *Bridge) pollLegacyStatus() {
	status, err := b.legacyClient.Status()
	b.recordPoll(err)
	if err != nil {
		b.log.WithError(err).Debug("legacy status poll failed")
		return
	}
	base := b.cfg.MQTT.TopicBase
	b.pub.Publish(base+"/model", fmt.Sprintf("0x%02X", status.Model), true)
	b.pub.Publish(base+"/version", status.FirmwareVersion, true)
	b.pub.Publish(base+"/tamper", onOff(status.Tamper), true)
	if status.BatteryPercent < 0 {
		b.pub.Publish(base+"/battery_percentage", "unknown", true)
	} else {
		b.pub.Publish(base+"/battery_percentage", fmt.Sprintf("%d", status.BatteryPercent), true)
	}
	b.pub.Publish(base+"/state", legacyStateLabel(status), true)
}

func (b *Bridge) publishLegacyEvent(ev legacy.Event) {
	base := b.cfg.MQTT.TopicBase
	switch ev.Kind {
	case legacy.EventArmed:
		b.pub.Publish(base+"/state", "Armada", true)
	case legacy.EventDisarmed:
		b.pub.Publish(base+"/state", "Desarmada", true)
	case legacy.EventPanic:
		b.pub.Publish(base+"/panic", "on", false)
		time.AfterFunc(30*time.Second, func() { b.pub.Publish(base+"/panic", "off", false) })
	case legacy.EventACPowerLost:
		b.pub.Publish(base+"/ac_power", "off", true)
	case legacy.EventACPowerRestored:
		b.pub.Publish(base+"/ac_power", "on", true)
	case legacy.EventSystemBatteryLow:
		b.pub.Publish(base+"/system_battery", "on", true)
	case legacy.EventSystemBatteryRestored:
		b.pub.Publish(base+"/system_battery", "off", true)
	case legacy.EventZoneTriggered:
		b.pub.Publish(base+"/state", "Disparada", true)
		if ev.ZoneID > 0 {
			b.pub.Publish(fmt.Sprintf("%s/zone_%d", base, ev.ZoneID), "Disparada", true)
		}
	case legacy.EventZoneRestored:
		if ev.ZoneID > 0 {
			b.pub.Publish(fmt.Sprintf("%s/zone_%d", base, ev.ZoneID), "Cerrada", true)
		}
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func legacyStateLabel(s *legacy.Status) string {
	switch {
	case s.ZonesFiring:
		return "Disparada"
	case s.ArmedPartial:
		return "Armada Parcial"
	case s.ArmedAway:
		return "Armada"
	default:
		return "Desarmada"
	}
}
