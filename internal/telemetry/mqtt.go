package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

const (
	publishTimeout = 5 * time.Second
	breakerFails   = 3
	breakerOpen    = time.Minute
)

var errPublishTimeout = errors.New("mqtt publish timed out")

// publishClient is the part of mqtt.Client the publisher needs.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher sends status documents to a broker topic. A breaker stops
// us waiting on a broker that is down; publishes fail fast until it resets.
type MQTTPublisher struct {
	client  publishClient
	topic   string
	breaker *gobreaker.CircuitBreaker
}

var connect = func(opts *mqtt.ClientOptions) (publishClient, error) {
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return client, nil
}

func ConnectMQTT(broker, clientID, topic string, maxRetries int) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	var client publishClient
	err := backoff.Retry(func() error {
		c, err := connect(opts)
		if err != nil {
			log.Warn().Err(err).Str("broker", broker).Msg("Failed to connect to MQTT broker")
			return err
		}
		client = c
		return nil
	}, backoff.WithMaxRetries(bo, uint64(maxRetries)))
	if err != nil {
		return nil, fmt.Errorf("could not connect to MQTT broker %s: %w", broker, err)
	}

	log.Info().Str("broker", broker).Str("topic", topic).Msg("Connected to MQTT broker")
	return newPublisher(client, topic), nil
}

func newPublisher(client publishClient, topic string) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		topic:  topic,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "mqtt-status",
			Timeout: breakerOpen,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= breakerFails
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state change")
			},
		}),
	}
}

// Publish sends payload as a retained message so new subscribers get the
// latest status straight away.
func (p *MQTTPublisher) Publish(payload []byte) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		token := p.client.Publish(p.topic, 0, true, payload)
		if !token.WaitTimeout(publishTimeout) {
			return nil, errPublishTimeout
		}
		return nil, token.Error()
	})
	if err != nil {
		return fmt.Errorf("publish status to %s: %w", p.topic, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
	log.Info().Msg("MQTT client disconnected")
}
