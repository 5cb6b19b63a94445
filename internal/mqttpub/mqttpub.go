// Package mqttpub publishes emitted events to an MQTT broker as a live
// feed for external consumers.
package mqttpub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/projectsentinel/sentinel-go/internal/conf"
	"github.com/projectsentinel/sentinel-go/internal/emitter"
	"github.com/projectsentinel/sentinel-go/internal/errors"
	"github.com/projectsentinel/sentinel-go/internal/logging"
)

const (
	connectTimeout = 30 * time.Second
	publishTimeout = 10 * time.Second
)

// Sink publishes every event envelope to a single topic, one JSON
// object per message.
type Sink struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
}

// Connect dials the broker and returns a ready sink.
func Connect(settings conf.MQTTSettings) (*Sink, error) {
	logger := logging.ForService("mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(settings.Broker)
	opts.SetClientID("sentinel-" + uuid.NewString()[:8])
	opts.SetUsername(settings.Username)
	opts.SetPassword(settings.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("broker connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("connected to broker", "broker", settings.Broker)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errors.Newf("timeout connecting to broker %s", settings.Broker).
			Category(errors.CategoryMQTT).
			Component("mqttpub").
			Build()
	}
	if err := token.Error(); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryMQTT).
			Component("mqttpub").
			Context("broker", settings.Broker).
			Build()
	}

	return &Sink{client: client, topic: settings.Topic, logger: logger}, nil
}

func (s *Sink) Name() string { return "mqtt" }

func (s *Sink) Write(e *emitter.Event) error {
	if !s.client.IsConnected() {
		return errors.Newf("not connected to broker").
			Category(errors.CategoryMQTT).
			Component("mqttpub").
			Build()
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}

	token := s.client.Publish(s.topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout on topic %s", s.topic)
	}
	return token.Error()
}

func (s *Sink) Close() error {
	s.client.Disconnect(250)
	return nil
}
