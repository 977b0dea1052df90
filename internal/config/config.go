// Package config loads the bridge's configuration from an optional
// addon-style YAML options file layered under environment variables, the
// way the teacher's config package loads its YAML file — generalized to
// add the env-var layer the alarm bridge's deployment model requires.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Protocol selects the panel dialect.
type Protocol string

const (
	ProtocolISECNet Protocol = "isecnet"
	ProtocolAMT8000 Protocol = "amt8000"
	protocolLegacyAlias Protocol = "legacy"
)

// Config is the fully resolved bridge configuration.
type Config struct {
	AlarmIP       string   `yaml:"alarm_ip"`
	AlarmPort     int      `yaml:"alarm_port"`
	AlarmPassword string   `yaml:"alarm_pass"`
	Protocol      Protocol `yaml:"alarm_protocol"`

	PasswordLength int `yaml:"password_length"`

	PollingInterval time.Duration `yaml:"-"`

	ZoneRange string `yaml:"zone_range"`
	ZoneCount int     `yaml:"zone_count"`

	PartitionsEnabled bool `yaml:"partitions_enabled"`

	BindHost string `yaml:"bind_host"`
	BindPort int     `yaml:"bind_port"`

	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTPort     int    `yaml:"mqtt_port"`
	MQTTUser     string `yaml:"mqtt_user"`
	MQTTPassword string `yaml:"mqtt_pass"`

	SidecarBinaryPath string `yaml:"sidecar_binary_path"`
	SidecarConfigPath string `yaml:"sidecar_config_path"`

	DiagBindHost string `yaml:"diag_bind_host"`
	DiagBindPort int     `yaml:"diag_bind_port"`

	EventLogPath          string `yaml:"event_log_path"`
	EventLogRetentionDays int    `yaml:"event_log_retention_days"`

	PollingIntervalMinutes int `yaml:"polling_interval_minutes"`
}

// defaults returns a Config pre-populated with every documented default.
func defaults() *Config {
	return &Config{
		AlarmPort:             9009,
		Protocol:              ProtocolISECNet,
		PasswordLength:        4,
		PollingIntervalMinutes: 5,
		BindHost:              "0.0.0.0",
		BindPort:              9009,
		MQTTPort:              1883,
		DiagBindHost:          "0.0.0.0",
		DiagBindPort:          8090,
		EventLogPath:          "/data/logs/events.log",
		EventLogRetentionDays: 30,
	}
}

// defaultOptionsPath is where the Home-Assistant-addon deployment target
// writes its options file when ALARM_CONFIG_FILE isn't set.
const defaultOptionsPath = "/data/options.yaml"

// Load reads an optional YAML options file, then overlays environment
// variables, then validates and normalizes the result. Mirrors the
// teacher's Load(path) shape; the env overlay is added because this
// project's deployment model (add-on + container) recognizes environment
// variables as the primary surface. If path is empty, ALARM_CONFIG_FILE is
// used, falling back to defaultOptionsPath; the file is optional either way.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = os.Getenv("ALARM_CONFIG_FILE")
	}
	if path == "" {
		path = defaultOptionsPath
	}

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	overlayEnv(cfg)

	cfg.PollingInterval = time.Duration(cfg.PollingIntervalMinutes) * time.Minute

	if err := cfg.normalizePassword(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overlayEnv(cfg *Config) {
	str(&cfg.AlarmIP, "ALARM_IP")
	integer(&cfg.AlarmPort, "ALARM_PORT")
	str(&cfg.AlarmPassword, "ALARM_PASS")
	if v := os.Getenv("ALARM_PROTOCOL"); v != "" {
		p := Protocol(strings.ToLower(v))
		if p == protocolLegacyAlias {
			p = ProtocolAMT8000
		}
		cfg.Protocol = p
	}
	integer(&cfg.PasswordLength, "PASSWORD_LENGTH")
	integer(&cfg.PollingIntervalMinutes, "POLLING_INTERVAL_MINUTES")
	str(&cfg.ZoneRange, "ZONE_RANGE")
	integer(&cfg.ZoneCount, "ZONE_COUNT")
	str(&cfg.MQTTBroker, "MQTT_BROKER")
	integer(&cfg.MQTTPort, "MQTT_PORT")
	str(&cfg.MQTTUser, "MQTT_USER")
	str(&cfg.MQTTPassword, "MQTT_PASS")
	str(&cfg.SidecarBinaryPath, "RECEPTORIP_BIN")
	str(&cfg.SidecarConfigPath, "RECEPTORIP_CONFIG")
	str(&cfg.BindHost, "ISECNET_BIND_HOST")
	integer(&cfg.BindPort, "ISECNET_BIND_PORT")
}

func str(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func integer(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// normalizePassword left-zero-pads a shorter, purely numeric password to
// PasswordLength, per §5's startup validation note.
func (cfg *Config) normalizePassword() error {
	if cfg.AlarmPassword == "" {
		return nil
	}
	if !isAllDigits(cfg.AlarmPassword) {
		return fmt.Errorf("config: ALARM_PASS must be numeric")
	}
	if len(cfg.AlarmPassword) < cfg.PasswordLength {
		cfg.AlarmPassword = strings.Repeat("0", cfg.PasswordLength-len(cfg.AlarmPassword)) + cfg.AlarmPassword
	}
	return nil
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (cfg *Config) validate() error {
	if len(cfg.AlarmPassword) < 4 || len(cfg.AlarmPassword) > 6 {
		return fmt.Errorf("config: password must be 4-6 digits, got length %d", len(cfg.AlarmPassword))
	}
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("config: MQTT_BROKER is required")
	}
	if cfg.Protocol == ProtocolAMT8000 && cfg.AlarmIP == "" {
		return fmt.Errorf("config: ALARM_IP is required for the amt8000 protocol")
	}
	if cfg.PollingIntervalMinutes < 1 {
		return fmt.Errorf("config: POLLING_INTERVAL_MINUTES must be >= 1")
	}
	return nil
}

// ZoneIDs resolves ZoneRange (taking precedence) or ZoneCount into an
// ascending, deduplicated slice of zone IDs.
func (cfg *Config) ZoneIDs() ([]int, error) {
	if cfg.ZoneRange != "" {
		return ParseZoneRange(cfg.ZoneRange)
	}
	if cfg.ZoneCount > 0 {
		ids := make([]int, cfg.ZoneCount)
		for i := range ids {
			ids[i] = i + 1
		}
		return ids, nil
	}
	return nil, nil
}

// ParseZoneRange parses a comma list of integers or "a-b" ranges (e.g.
// "1-16,20,33-40") into an ascending, deduplicated slice of zone IDs.
func ParseZoneRange(spec string) ([]int, error) {
	seen := make(map[int]bool)
	var ids []int
	for _, field := range strings.Split(spec, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(field, "-"); ok {
			loN, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("config: bad zone range %q: %w", field, err)
			}
			hiN, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("config: bad zone range %q: %w", field, err)
			}
			if hiN < loN {
				return nil, fmt.Errorf("config: bad zone range %q: end before start", field)
			}
			for n := loN; n <= hiN; n++ {
				if !seen[n] {
					seen[n] = true
					ids = append(ids, n)
				}
			}
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("config: bad zone id %q: %w", field, err)
		}
		if !seen[n] {
			seen[n] = true
			ids = append(ids, n)
		}
	}
	sortInts(ids)
	return ids, nil
}

func sortInts(ids []int) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
