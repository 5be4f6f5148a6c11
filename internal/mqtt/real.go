package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/freetarget/target-core/internal/acquire"
)

// bufferCapacity bounds the messages held while the broker is unreachable.
const bufferCapacity = 256

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	logger *zap.SugaredLogger

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher for the given broker. If the broker is
// not reachable within the connect timeout the publisher keeps retrying in
// the background and buffers until it connects.
func NewRealPublisher(broker, clientID string, logger *zap.SugaredLogger) (*RealPublisher, error) {
	p := &RealPublisher{
		logger: logger,
		buf:    newRingBuffer(bufferCapacity),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, errors.Wrap(err, "format will payload")
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warnw("mqtt connection lost", "error", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		logger.Warnw("mqtt broker not reachable yet, buffering", "broker", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrap(err, "connect to broker")
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	msgs := p.buf.drainAll()
	dropped := p.buf.dropped
	p.mu.Unlock()

	for _, m := range msgs {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
	p.logger.Infow("mqtt connected", "replayed", len(msgs), "dropped_total", dropped)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		lost := p.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		if lost {
			p.logger.Warnw("mqtt buffer full, dropping oldest messages", "capacity", bufferCapacity)
		}
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return errors.Errorf("publish to %s timeout", topic)
	}
	return errors.Wrapf(token.Error(), "publish to %s", topic)
}

// PublishShot sends a completed acquisition to the MQTT broker.
func (p *RealPublisher) PublishShot(shot acquire.Shot) error {
	payload, err := FormatShotPayload(shot)
	if err != nil {
		return errors.Wrap(err, "format shot payload")
	}
	// QoS 1, shots must not be lost
	return p.publish(TopicShots, 1, false, payload)
}

// PublishGesture sends a decoded gesture to the MQTT broker.
func (p *RealPublisher) PublishGesture(event GestureEvent) error {
	payload, err := FormatGesturePayload(event)
	if err != nil {
		return errors.Wrap(err, "format gesture payload")
	}
	return p.publish(TopicMFS, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return errors.Wrap(err, "format system payload")
	}
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for reconnection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	if n := p.Buffered(); n > 0 {
		p.logger.Warnw("closing with unsent messages", "buffered", n)
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
