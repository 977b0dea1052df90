// Package handler implements the ISECNet-side protocol handler (C8): command
// dispatch with the panel's alias table, status polling with sticky
// triggered-zone tracking, PANIC's deferred siren shutoff, and translation of
// decoded panel status into the MQTT topic tree under intelbras/alarm.
// Grounded on protocol_handlers/isecnet.py.
package handler

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/intelbras/alarm-bridge/internal/isecnet"
	"github.com/intelbras/alarm-bridge/internal/server"
)

// Publisher is the minimal MQTT surface the handler needs. internal/bridge
// supplies an implementation backed by paho.mqtt.golang; tests can supply
// an in-memory fake.
type Publisher interface {
	Publish(topic string, payload string, retain bool) error
}

// EventLogger is the minimal sidecar-audit-log surface the handler needs.
// internal/eventlog supplies the concrete implementation.
type EventLogger interface {
	Append(line string) error
}

// canonical command tokens, matching §5's accepted command set.
const (
	cmdArmAway     = "ARM_AWAY"
	cmdArmHome     = "ARM_HOME"
	cmdArmNight    = "ARM_NIGHT"
	cmdArmVacation = "ARM_VACATION"
	cmdArmCustom   = "ARM_CUSTOM_BYPASS"
	cmdDisarm      = "DISARM"
	cmdPanic       = "PANIC"
)

// aliasTable maps every accepted command token, including the
// ARM_PART_x/ARM_PARTITION_x and DISARM_PART_x/DISARM_PARTITION_x aliases,
// to a canonical action. Built once at package init from the fixed base
// plus the generated partition aliases.
var aliasTable = buildAliasTable()

func buildAliasTable() map[string]string {
	t := map[string]string{
		cmdArmAway:     cmdArmAway,
		cmdArmHome:     cmdArmHome,
		"ARM_PART_A":   cmdArmHome,
		cmdArmNight:    cmdArmNight,
		"ARM_PART_B":   cmdArmNight,
		cmdArmVacation: cmdArmVacation,
		"ARM_PART_C":   cmdArmVacation,
		cmdArmCustom:   cmdArmCustom,
		"ARM_PART_D":   cmdArmCustom,
		cmdDisarm:      cmdDisarm,
		cmdPanic:       cmdPanic,
	}
	for _, p := range []string{"A", "B", "C", "D"} {
		t["DISARM_PART_"+p] = "DISARM_PART_" + p
	}
	// "_PARTITION_" aliases are equivalent to "_PART_".
	for k, v := range map[string]string{
		"ARM_PARTITION_A": "ARM_PART_A", "ARM_PARTITION_B": "ARM_PART_B",
		"ARM_PARTITION_C": "ARM_PART_C", "ARM_PARTITION_D": "ARM_PART_D",
		"DISARM_PARTITION_A": "DISARM_PART_A", "DISARM_PARTITION_B": "DISARM_PART_B",
		"DISARM_PARTITION_C": "DISARM_PART_C", "DISARM_PARTITION_D": "DISARM_PART_D",
	} {
		t[k] = t[v]
	}
	return t
}

// ZoneState tracks one zone's live open/violated flags and its sticky
// "Triggered" memory: once a zone has tripped, Triggered stays set across
// subsequent polls (mirroring the panel's own alarm-memory behavior) until
// ClearMemory is called — normally on a successful disarm.
type ZoneState struct {
	Open      bool
	Triggered bool
}

// Config configures a Handler.
type Config struct {
	Password          string
	ZoneIDs           []int // zones to surface as /zone_{n} topics, in ascending order
	PartitionsEnabled bool
	SirenAutoOffDelay time.Duration // PANIC's deferred siren-off; default 30s
	TopicBase         string        // default "intelbras/alarm"
	Logger            *logrus.Logger
}

// Handler owns the panel-facing command/poll/publish cycle for a single
// tracked connection. It corresponds to the original's module-level
// AMTServer + polling thread + MQTT publish routine, collapsed into one
// struct bound to a single serializing mutex, per §5.
type Handler struct {
	cfg Config
	log *logrus.Entry

	mu       sync.Mutex // the single serializing lock referenced by §5
	conn     *server.Connection
	zones    map[int]*ZoneState
	armed    bool
	sirenOn  bool

	sirenTimer *time.Timer

	pub      Publisher
	eventLog EventLogger
	srv      *server.Server
}

// New constructs a Handler. Call Attach to wire it to a running Server.
func New(cfg Config, pub Publisher) *Handler {
	if cfg.SirenAutoOffDelay == 0 {
		cfg.SirenAutoOffDelay = 30 * time.Second
	}
	if cfg.TopicBase == "" {
		cfg.TopicBase = "intelbras/alarm"
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	zones := make(map[int]*ZoneState, len(cfg.ZoneIDs))
	for _, id := range cfg.ZoneIDs {
		zones[id] = &ZoneState{}
	}
	return &Handler{
		cfg:   cfg,
		log:   cfg.Logger.WithField("component", "isecnet-handler"),
		zones: zones,
		pub:   pub,
	}
}

// Attach records srv as the server the handler dispatches commands through.
// The handler's OnConnect/OnDisconnect/OnFrame callbacks are not registered
// here; they are passed in the server's Config.
func (h *Handler) Attach(srv *server.Server) {
	h.srv = srv
}

// SetEventLog wires an optional sidecar audit log; every significant
// command and connection transition is appended to it in addition to being
// published over MQTT.
func (h *Handler) SetEventLog(w EventLogger) {
	h.eventLog = w
}

func (h *Handler) logEvent(format string, args ...any) {
	if h.eventLog == nil {
		return
	}
	if err := h.eventLog.Append(fmt.Sprintf(format, args...)); err != nil {
		h.log.WithError(err).Debug("event log append failed")
	}
}

// OnConnect records the panel's connection as the single tracked session,
// matching §9's single-panel resolution of the multi-connection question:
// last writer wins.
func (h *Handler) OnConnect(conn *server.Connection) {
	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()
	h.publishAvailability(true)
	h.logEvent("panel connected from %s", conn.ID)
}

// OnDisconnect clears the tracked session if it matches, and flips
// availability offline.
func (h *Handler) OnDisconnect(conn *server.Connection) {
	h.mu.Lock()
	if h.conn == conn {
		h.conn = nil
	}
	h.mu.Unlock()
	h.publishAvailability(false)
	h.logEvent("panel disconnected (%s)", conn.ID)
}

// OnFrame handles any inbound frame the server's auto-ack and
// pending-response paths did not already consume. Unsolicited status
// pushes are not part of this protocol's repertoire, so this is mostly a
// diagnostic log point.
func (h *Handler) OnFrame(conn *server.Connection, frame *isecnet.Frame) {
	h.log.WithFields(logrus.Fields{
		"command": fmt.Sprintf("0x%02X", frame.Command),
		"len":     len(frame.Content),
	}).Debug("unsolicited frame")
}

func (h *Handler) publishAvailability(online bool) {
	payload := "offline"
	if online {
		payload = "online"
	}
	h.publish("availability", payload)
}

func (h *Handler) publish(topic, payload string) {
	h.publishRetain(topic, payload, true)
}

// publishRetain is publish with an explicit retain flag. /panic is the one
// topic that must go out non-retained: it's a pulse, and a retained "on"
// would replay a false alarm to every subscriber that reconnects later.
func (h *Handler) publishRetain(topic, payload string, retain bool) {
	if h.pub == nil {
		return
	}
	if err := h.pub.Publish(h.cfg.TopicBase+"/"+topic, payload, retain); err != nil {
		h.log.WithError(err).WithField("topic", topic).Warn("publish failed")
	}
}

// NormalizeCommand uppercases and trims a raw MQTT command payload. Alias
// resolution ("_PARTITION_" and the rest) is done by aliasTable, not here.
func NormalizeCommand(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// HandleCommand dispatches a command token received on the bridge command
// topic. Unknown tokens are logged and ignored, matching the original's
// tolerant command handling.
func (h *Handler) HandleCommand(ctx context.Context, raw string) error {
	token := NormalizeCommand(raw)
	canonical, ok := aliasTable[token]
	if !ok {
		h.log.WithField("command", token).Warn("unrecognized command, ignoring")
		return nil
	}
	h.logEvent("command %s received", canonical)

	h.mu.Lock()
	defer h.mu.Unlock()

	conn := h.conn
	if conn == nil {
		return fmt.Errorf("isecnet handler: no panel connection")
	}

	switch {
	case canonical == cmdArmAway:
		return h.dispatch(ctx, conn, isecnet.ArmAll(h.cfg.Password))
	case canonical == cmdArmHome:
		return h.dispatch(ctx, conn, isecnet.ArmPartitionA(h.cfg.Password))
	case canonical == cmdArmNight:
		return h.dispatch(ctx, conn, isecnet.ArmPartitionB(h.cfg.Password))
	case canonical == cmdArmVacation:
		return h.dispatch(ctx, conn, isecnet.ArmPartitionC(h.cfg.Password))
	case canonical == cmdArmCustom:
		return h.dispatch(ctx, conn, isecnet.ArmPartitionD(h.cfg.Password))
	case canonical == cmdDisarm:
		if err := h.dispatch(ctx, conn, isecnet.DisarmAll(h.cfg.Password)); err != nil {
			return err
		}
		h.clearMemoryLocked()
		return nil
	case strings.HasPrefix(canonical, "DISARM_PART_"):
		return h.dispatchDisarmPartition(ctx, conn, canonical)
	case canonical == cmdPanic:
		return h.handlePanicLocked(ctx, conn)
	default:
		h.log.WithField("command", canonical).Warn("unhandled canonical command")
		return nil
	}
}

func (h *Handler) dispatchDisarmPartition(ctx context.Context, conn *server.Connection, canonical string) error {
	var cmd isecnet.Command
	switch canonical[len(canonical)-1] {
	case 'A':
		cmd = isecnet.DisarmPartitionA(h.cfg.Password)
	case 'B':
		cmd = isecnet.DisarmPartitionB(h.cfg.Password)
	case 'C':
		cmd = isecnet.DisarmPartitionC(h.cfg.Password)
	case 'D':
		cmd = isecnet.DisarmPartitionD(h.cfg.Password)
	default:
		return fmt.Errorf("isecnet handler: bad partition command %q", canonical)
	}
	if err := h.dispatch(ctx, conn, cmd); err != nil {
		return err
	}
	h.clearMemoryLocked()
	return nil
}

// handlePanicLocked turns the siren on, then schedules a deferred siren-off
// 30 seconds later. The timer callback re-acquires the lock and silently
// no-ops if the panel has since disconnected, matching §5's deferred-action
// semantics exactly.
func (h *Handler) handlePanicLocked(ctx context.Context, conn *server.Connection) error {
	if err := h.dispatch(ctx, conn, isecnet.SirenOn(h.cfg.Password)); err != nil {
		return err
	}
	h.publishRetain("panic", "on", false)

	if h.sirenTimer != nil {
		h.sirenTimer.Stop()
	}
	h.sirenTimer = time.AfterFunc(h.cfg.SirenAutoOffDelay, h.deferredSirenOff)
	return nil
}

func (h *Handler) deferredSirenOff() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return
	}
	if err := h.dispatch(context.Background(), h.conn, isecnet.SirenOff(h.cfg.Password)); err != nil {
		h.log.WithError(err).Warn("deferred siren-off failed")
		return
	}
	h.publishRetain("panic", "off", false)
}

func (h *Handler) dispatch(ctx context.Context, conn *server.Connection, cmd isecnet.Command) error {
	resp, err := h.srv.SendCommand(ctx, conn, cmd)
	if err != nil {
		return fmt.Errorf("isecnet handler: dispatch: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("isecnet handler: panel rejected command: %s", resp.Message())
	}
	return nil
}

func (h *Handler) clearMemoryLocked() {
	for _, z := range h.zones {
		z.Triggered = false
	}
}

// PollStatus requests a full status dump from the tracked connection and
// republishes the derived MQTT state tree. Intended to be driven by a
// ticker in internal/bridge.
func (h *Handler) PollStatus(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn := h.conn
	if conn == nil {
		return fmt.Errorf("isecnet handler: no panel connection")
	}

	resp, err := h.srv.SendCommand(ctx, conn, isecnet.FullStatusRequest(h.cfg.Password))
	if err != nil {
		return fmt.Errorf("isecnet handler: poll: %w", err)
	}

	// A solicited status reply may arrive ACK-prefixed: strip a leading ACK
	// byte before attempting to parse the status payload, matching the
	// original's poll_status stripping step.
	payload := resp.Data
	if len(payload) > 0 && payload[0] == isecnet.ResponseAck {
		payload = payload[1:]
	}

	status := isecnet.ParseStatus(payload)
	if status == nil {
		return fmt.Errorf("isecnet handler: poll: unparseable status payload (%d bytes)", len(payload))
	}

	h.updateZoneStateLocked(status)
	h.armed = status.Armed
	h.sirenOn = status.SirenOn
	h.publishStatusLocked(status)
	return nil
}

func (h *Handler) updateZoneStateLocked(status *isecnet.CentralStatus) {
	for id, z := range h.zones {
		z.Open = status.Zones.IsOpen(id)
		if status.Zones.IsViolated(id) {
			z.Triggered = true
		}
	}
}

// publishStatusLocked republishes the full MQTT topic tree (§6) derived
// from status. Grounded on protocol_handlers/isecnet.py::_publish_status.
func (h *Handler) publishStatusLocked(status *isecnet.CentralStatus) {
	h.publish("model", modelName(status.Model))
	h.publish("version", status.FirmwareVersion)

	h.publish("ac_power", onOff(!status.Problems.ACFailure))
	h.publish("system_battery", onOff(status.Problems.LowBattery))
	h.publish("battery_percentage", batteryPercentage(status.Problems))
	h.publish("tamper", onOff(status.Problems.KeyboardTamper || len(status.Zones.TamperZones) > 0))
	h.publish("alarm_memory", onOff(h.anyTriggeredLocked()))

	h.publish("state", stateLabel(status))

	if status.Partitions.Enabled {
		h.publish("partition_a_state", onOff(status.Partitions.A))
		h.publish("partition_b_state", onOff(status.Partitions.B))
		h.publish("partition_c_state", onOff(status.Partitions.C))
		h.publish("partition_d_state", onOff(status.Partitions.D))
	} else {
		// With partitioning disabled the per-partition topics fall back to
		// the single global armed flag, matching the original's behavior
		// when the panel has no partitions configured.
		global := onOff(status.Armed)
		h.publish("partition_a_state", global)
		h.publish("partition_b_state", global)
		h.publish("partition_c_state", global)
		h.publish("partition_d_state", global)
	}

	h.publish("triggered_zones", triggeredZonesList(status.Zones.ViolatedZones))

	for _, id := range h.sortedZoneIDsLocked() {
		h.publish(fmt.Sprintf("zone_%d", id), zoneLabel(h.zones[id]))
	}
}

func (h *Handler) sortedZoneIDsLocked() []int {
	ids := make([]int, 0, len(h.zones))
	for id := range h.zones {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (h *Handler) anyTriggeredLocked() bool {
	for _, z := range h.zones {
		if z.Triggered {
			return true
		}
	}
	return false
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func modelName(code byte) string {
	switch code {
	case 0x01:
		return "AMT 2018"
	case 0x02:
		return "AMT 2018 E"
	case 0x03:
		return "AMT 4010"
	case 0x04:
		return "AMT 4010 Smart"
	default:
		return fmt.Sprintf("unknown (0x%02X)", code)
	}
}

func batteryPercentage(p isecnet.SystemProblems) string {
	switch {
	case p.BatteryAbsent:
		return "unknown"
	case p.BatteryShort:
		return "0"
	case p.LowBattery:
		return "25"
	case p.AuxOverload:
		return "75"
	default:
		return "100"
	}
}

func stateLabel(s *isecnet.CentralStatus) string {
	switch {
	case s.Triggered:
		return "Disparada"
	case s.Armed && s.Partitions.Enabled && !s.Partitions.AllArmed():
		return "Armada Parcial"
	case s.Armed:
		return "Armada"
	default:
		return "Desarmada"
	}
}

func triggeredZonesList(zones []int) string {
	if len(zones) == 0 {
		return "Ninguna"
	}
	strs := make([]string, len(zones))
	for i, z := range zones {
		strs[i] = strconv.Itoa(z)
	}
	return strings.Join(strs, ",")
}

func zoneLabel(z *ZoneState) string {
	switch {
	case z == nil:
		return "Desconocido"
	case z.Triggered:
		return "Disparada"
	case z.Open:
		return "Abierta"
	default:
		return "Cerrada"
	}
}
