package okex

import (
	"bytes"
	"compress/flate"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/recws-org/recws"
	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/go-marketfeed/domain"
)

const (
	okexDefaultWebsocketEndpoint = "wss://real.okex.com:8443/ws/v3"
	pingInterval                 = time.Second * 25
)

var logger = logrus.WithField("component", "okex")

type wsRequestModel struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

type messageEnvelope struct {
	Table  string            `json:"table"`
	Action string            `json:"action"`
	Event  string            `json:"event"`
	Data   []json.RawMessage `json:"data"`
}

type instrumentRef struct {
	InstrumentId string `json:"instrument_id"`
}

type subscriptionEntry struct {
	ch              chan []byte
	subscriberCount int
}

// OkexStreamClient multiplexes the v3 websocket. Frames arrive raw-deflate
// compressed and are inflated before routing; routing key is
// "<table>:<instrument_id>", which matches the subscribe topic syntax.
type OkexStreamClient struct {
	conn          *recws.RecConn
	subscriptions map[string]*subscriptionEntry
	mu            sync.Mutex
	done          chan struct{}
}

func NewOkexStreamClient() *OkexStreamClient {
	return &OkexStreamClient{
		subscriptions: make(map[string]*subscriptionEntry),
		done:          make(chan struct{}),
	}
}

func (c *OkexStreamClient) Connect() error {
	conn := &recws.RecConn{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 5 * time.Second,
		NonVerbose:       true,
	}

	conn.Dial(okexDefaultWebsocketEndpoint, nil)
	c.conn = conn

	go c.read()
	go c.keepAlive()
	return nil
}

func (c *OkexStreamClient) Subscribe(topic string) (*domain.Subscription[[]byte], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.subscriptions[topic]
	if ok {
		entry.subscriberCount++
		return c.subscription(topic, entry.ch), nil
	}

	ch := make(chan []byte)
	c.subscriptions[topic] = &subscriptionEntry{ch: ch, subscriberCount: 1}

	logger.Infof("subscribing to %s", topic)
	if err := c.conn.WriteJSON(wsRequestModel{Op: "subscribe", Args: []string{topic}}); err != nil {
		delete(c.subscriptions, topic)
		return nil, fmt.Errorf("failed to send subscribe msg for topic=%s: %w", topic, err)
	}

	return c.subscription(topic, ch), nil
}

func (c *OkexStreamClient) subscription(topic string, ch chan []byte) *domain.Subscription[[]byte] {
	return &domain.Subscription[[]byte]{
		Stream:      ch,
		Topic:       topic,
		Unsubscribe: func() { c.unsubscribe(topic) },
	}
}

func (c *OkexStreamClient) unsubscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.subscriptions[topic]
	if !ok {
		return
	}

	if entry.subscriberCount > 1 {
		entry.subscriberCount--
		return
	}

	close(entry.ch)
	delete(c.subscriptions, topic)

	logger.Infof("unsubscribing from %s", topic)
	if err := c.conn.WriteJSON(wsRequestModel{Op: "unsubscribe", Args: []string{topic}}); err != nil {
		logger.WithError(err).Errorf("failed to send unsubscribe msg for topic=%s", topic)
	}
}

func (c *OkexStreamClient) Close() error {
	close(c.done)
	c.conn.Close()
	return nil
}

func (c *OkexStreamClient) read() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			logger.WithError(err).Error("error while reading from connection")
			continue
		}

		msg, err := inflate(frame)
		if err != nil {
			logger.WithError(err).Error("failed to inflate frame")
			continue
		}

		if bytes.Equal(msg, []byte("pong")) {
			continue
		}

		var envelope messageEnvelope
		if err := json.Unmarshal(msg, &envelope); err != nil {
			logger.WithError(err).Errorf("undecodable message: %s", string(msg))
			continue
		}

		if envelope.Event != "" {
			logger.Debugf("event: %s", string(msg))
			continue
		}
		if envelope.Table == "" || len(envelope.Data) == 0 {
			continue
		}

		var ref instrumentRef
		if err := json.Unmarshal(envelope.Data[0], &ref); err != nil {
			continue
		}
		topic := fmt.Sprintf("%s:%s", envelope.Table, ref.InstrumentId)

		c.mu.Lock()
		if entry, ok := c.subscriptions[topic]; ok {
			entry.ch <- msg
		}
		c.mu.Unlock()
	}
}

// the server drops connections that stay silent for 30s
func (c *OkexStreamClient) keepAlive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
				logger.WithError(err).Error("failed to send ping")
			}
		}
	}
}

// frames use raw deflate without zlib headers
func inflate(frame []byte) ([]byte, error) {
	reader := flate.NewReader(bytes.NewReader(frame))
	defer reader.Close()

	return io.ReadAll(reader)
}
