package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/silen72/night-light/internal/logic"
)

// bufferCapacity is the number of messages kept while disconnected.
const bufferCapacity = 100

var errNotConnected = errors.New("not connected, message buffered")

// client is the part of paho.Client the publisher uses.
type client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and sent after reconnecting.
type RealPublisher struct {
	client client
	topics Topics
	log    zerolog.Logger
	now    func() time.Time

	mu            sync.Mutex
	buffer        *ringBuffer
	connectedOnce bool
}

// ClientID returns a unique client id for this process.
func ClientID() string {
	return "night-light-" + uuid.NewString()[:8]
}

// NewRealPublisher creates a publisher for the given broker. An unreachable
// broker is not an error: the client keeps retrying and messages are
// buffered meanwhile.
func NewRealPublisher(broker, clientID string, topics Topics, log zerolog.Logger) (*RealPublisher, error) {
	p := newPublisher(nil, topics, log)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(topics.System, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Msg("mqtt connection lost")
		})

	c := paho.NewClient(opts)
	p.client = c

	token := c.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Warn().Str("broker", broker).Msg("mqtt broker not reachable yet, buffering messages")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func newPublisher(c client, topics Topics, log zerolog.Logger) *RealPublisher {
	return &RealPublisher{
		client: c,
		topics: topics,
		log:    log,
		now:    time.Now,
		buffer: newRingBuffer(bufferCapacity),
	}
}

// Publish sends a lamp event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: p.topics.Events, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once), lifecycle events should arrive
	return p.publish(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buffer.push(msg)
		p.mu.Unlock()
		return errNotConnected
	}
	if err := p.send(msg); err != nil {
		p.mu.Lock()
		p.buffer.push(msg)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// onConnect replays buffered messages. On reconnects a RECONNECTED event is
// sent after the replay.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	pending := p.buffer.drainAll()
	reconnect := p.connectedOnce
	p.connectedOnce = true
	p.mu.Unlock()

	for i, msg := range pending {
		if err := p.send(msg); err != nil {
			p.log.Warn().Err(err).Int("remaining", len(pending)-i).Msg("mqtt replay failed")
			p.mu.Lock()
			for _, m := range pending[i:] {
				p.buffer.push(m)
			}
			p.mu.Unlock()
			return
		}
	}
	if len(pending) > 0 {
		p.log.Info().Int("messages", len(pending)).Msg("mqtt buffered messages replayed")
	}

	if reconnect {
		if err := p.PublishSystem(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"}); err != nil {
			p.log.Warn().Err(err).Msg("failed to publish reconnect event")
		}
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
