// Package bridge wires the ISECNet protocol handler or the AMT8000 legacy
// client to an MQTT broker via paho.mqtt.golang (C10): connection lifecycle,
// the status poll ticker, and command-topic subscription. The serializing
// lock itself lives in the handler and in the legacy client. Grounded on mqtt_runtime.py and
// addon_main.py's top-level wiring.
package bridge

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker   string // host
	Port     int
	User     string
	Password string
	ClientID string
	TopicBase string
}

// mqttPublisher adapts a paho client to the handler.Publisher interface.
type mqttPublisher struct {
	client mqtt.Client
	log    *logrus.Entry
}

func newMQTTPublisher(cfg MQTTConfig, log *logrus.Logger) *mqttPublisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	if cfg.User != "" {
		opts.SetUsername(cfg.User)
		opts.SetPassword(cfg.Password)
	}
	opts.SetWill(cfg.TopicBase+"/availability", "offline", 1, true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)

	client := mqtt.NewClient(opts)
	return &mqttPublisher{client: client, log: log.WithField("component", "mqtt")}
}

func (p *mqttPublisher) connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("bridge: mqtt connect timed out")
	}
	return token.Error()
}

func (p *mqttPublisher) disconnect() {
	p.client.Disconnect(250)
}

// Publish implements handler.Publisher and legacy event publication.
func (p *mqttPublisher) Publish(topic, payload string, retain bool) error {
	token := p.client.Publish(topic, 1, retain, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("bridge: publish %s timed out", topic)
	}
	return token.Error()
}

// subscribe registers a callback for the command topic.
func (p *mqttPublisher) subscribe(topic string, onMessage mqtt.MessageHandler) error {
	token := p.client.Subscribe(topic, 1, onMessage)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("bridge: subscribe %s timed out", topic)
	}
	return token.Error()
}
