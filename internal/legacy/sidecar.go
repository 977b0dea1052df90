package legacy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// EventKind enumerates the state transitions the receptorip sidecar's text
// log can produce.
type EventKind int

const (
	EventArmed EventKind = iota
	EventDisarmed
	EventPanic
	EventACPowerLost
	EventACPowerRestored
	EventSystemBatteryLow
	EventSystemBatteryRestored
	EventZoneTriggered
	EventZoneRestored
)

// Event is a single translated sidecar log line.
type Event struct {
	Kind   EventKind
	ZoneID int // only set for EventZoneTriggered/EventZoneRestored
	Raw    string
}

// substringRules pairs a literal substring match against a raw log line
// with the event it produces when matched; checked in order, first match
// wins. Exact strings transcribed from the sidecar's Portuguese event log.
var substringRules = []struct {
	substr string
	kind   EventKind
}{
	{"Ativacao remota app", EventArmed},
	{"Desativacao remota app", EventDisarmed},
	{"Panico", EventPanic},
	{"Falta de energia AC", EventACPowerLost},
	{"Retorno de energia AC", EventACPowerRestored},
	{"Bateria do sistema baixa", EventSystemBatteryLow},
	{"Recuperacao bateria do sistema baixa", EventSystemBatteryRestored},
	{"Disparo de zona", EventZoneTriggered},
	{"Restauracao de zona", EventZoneRestored},
}

// ParseLine translates one sidecar log line into an Event. It returns
// (nil, false) for lines that match no known substring. For the two
// zone-scoped events, the zone ID is the last whitespace-delimited token;
// a missing or non-numeric token still yields the event with ZoneID 0.
func ParseLine(line string) (*Event, bool) {
	for _, rule := range substringRules {
		if strings.Contains(line, rule.substr) {
			ev := &Event{Kind: rule.kind, Raw: line}
			if rule.kind == EventZoneTriggered || rule.kind == EventZoneRestored {
				fields := strings.Fields(line)
				if len(fields) > 0 {
					if id, err := strconv.Atoi(fields[len(fields)-1]); err == nil {
						ev.ZoneID = id
					}
				}
			}
			return ev, true
		}
	}
	return nil, false
}

// Sidecar spawns the external receptorip binary and streams translated
// Events from its stdout. It is strictly optional: callers that can't find
// the binary should treat that as a non-fatal startup condition unless the
// legacy dialect was explicitly selected, per §4.9.
type Sidecar struct {
	binaryPath string
	configPath string
	log        *logrus.Entry
}

// NewSidecar constructs a Sidecar that will run binaryPath configPath.
func NewSidecar(binaryPath, configPath string, log *logrus.Logger) *Sidecar {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sidecar{binaryPath: binaryPath, configPath: configPath, log: log.WithField("component", "legacy-sidecar")}
}

// Run starts the sidecar process and returns at once; translated events are
// sent on the returned channel until ctx is canceled or the process's output
// ends, and the channel is then closed.
func (s *Sidecar) Run(ctx context.Context) (<-chan Event, error) {
	cmd := exec.CommandContext(ctx, s.binaryPath, s.configPath)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("legacy: sidecar stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout // text=True, stderr=STDOUT in the original

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("legacy: sidecar start: %w", err)
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			s.log.WithField("line", line).Debug("sidecar event line")
			if ev, ok := ParseLine(line); ok {
				select {
				case events <- *ev:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := scanner.Err(); err != nil && err != io.EOF {
			s.log.WithError(err).Warn("sidecar stdout scan error")
		}
		cmd.Wait()
		s.log.Warn("sidecar process terminated")
	}()

	return events, nil
}
