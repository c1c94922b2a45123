// v0
// internal/publish/mqtt.go
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttSinkName       = "mqtt"
	mqttPublishTimeout = 5 * time.Second
)

// DialMQTT connects a paho client to broker.
func DialMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttPublishTimeout)
	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(mqttPublishTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return c, nil
}

// MQTTSink publishes each envelope as JSON on <prefix>/<runId>/snapshot
// with QoS 0 and no retention.
type MQTTSink struct {
	client mqtt.Client
	topic  string
	rec    Recorder
	log    *slog.Logger
}

// NewMQTTSink binds client to the snapshot topic of runID.
func NewMQTTSink(client mqtt.Client, prefix, runID string, rec Recorder, log *slog.Logger) (*MQTTSink, error) {
	if client == nil {
		return nil, errors.New("mqtt sink requires a client")
	}
	if log == nil {
		return nil, errPublisherNilLogger
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	topic := fmt.Sprintf("%s/%s/snapshot", strings.Trim(prefix, "/"), runID)
	return &MQTTSink{
		client: client,
		topic:  topic,
		rec:    rec,
		log:    log.With(slog.String("component", "mqtt_sink"), slog.String("topic", topic)),
	}, nil
}

func (s *MQTTSink) Name() string  { return mqttSinkName }
func (s *MQTTSink) Topic() string { return s.topic }

func (s *MQTTSink) Send(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		s.rec.Publish(mqttSinkName, resultFail)
		return fmt.Errorf("encode envelope: %w", err)
	}
	token := s.client.Publish(s.topic, 0, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		s.rec.Publish(mqttSinkName, resultFail)
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		s.rec.Publish(mqttSinkName, resultFail)
		s.log.Error("mqtt_publish_err", slog.Any("err", err), slog.Uint64("seq", env.Seq))
		return err
	}
	s.rec.Publish(mqttSinkName, resultOK)
	return nil
}

// Close disconnects the client, waiting up to 250ms for in-flight work.
func (s *MQTTSink) Close() {
	s.client.Disconnect(250)
}
