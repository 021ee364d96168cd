package huobi

import (
	"bytes"
	"compress/gzip"
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

const huobiDefaultWebsocketEndpoint = "wss://api-cloud.huobi.co.kr/ws"

var logger = logrus.WithField("component", "huobi")

type wsRequestModel struct {
	Sub string `json:"sub"`
	Id  string `json:"id"`
}

type wsUnsubRequestModel struct {
	Unsub string `json:"unsub"`
	Id    string `json:"id"`
}

type subscriptionEntry struct {
	ch              chan []byte
	subscriberCount int
}

// HuobiStreamClient multiplexes the websocket feed. Every frame is gzip
// compressed; server pings must be answered with a pong carrying the same
// value or the connection is dropped.
type HuobiStreamClient struct {
	conn          *recws.RecConn
	subscriptions map[string]*subscriptionEntry
	mu            sync.Mutex
}

func NewHuobiStreamClient() *HuobiStreamClient {
	return &HuobiStreamClient{
		subscriptions: make(map[string]*subscriptionEntry),
	}
}

func (c *HuobiStreamClient) Connect() error {
	conn := &recws.RecConn{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 5 * time.Second,
		NonVerbose:       true,
	}

	conn.Dial(huobiDefaultWebsocketEndpoint, nil)
	c.conn = conn

	go c.read()
	return nil
}

func (c *HuobiStreamClient) Subscribe(topic string) (*domain.Subscription[[]byte], error) {
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
	if err := c.conn.WriteJSON(wsRequestModel{Sub: topic, Id: topic}); err != nil {
		delete(c.subscriptions, topic)
		return nil, fmt.Errorf("failed to send subscribe msg for topic=%s: %w", topic, err)
	}

	return c.subscription(topic, ch), nil
}

func (c *HuobiStreamClient) subscription(topic string, ch chan []byte) *domain.Subscription[[]byte] {
	return &domain.Subscription[[]byte]{
		Stream:      ch,
		Topic:       topic,
		Unsubscribe: func() { c.unsubscribe(topic) },
	}
}

func (c *HuobiStreamClient) unsubscribe(topic string) {
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
	if err := c.conn.WriteJSON(wsUnsubRequestModel{Unsub: topic, Id: topic}); err != nil {
		logger.WithError(err).Errorf("failed to send unsubscribe msg for topic=%s", topic)
	}
}

func (c *HuobiStreamClient) Close() error {
	c.conn.Close()
	return nil
}

func (c *HuobiStreamClient) read() {
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			logger.WithError(err).Error("error while reading from connection")
			continue
		}

		msg, err := gunzip(frame)
		if err != nil {
			logger.WithError(err).Error("failed to gunzip frame")
			continue
		}

		var probe struct {
			Ping   int64  `json:"ping"`
			Ch     string `json:"ch"`
			Subbed string `json:"subbed"`
		}
		if err := json.Unmarshal(msg, &probe); err != nil {
			logger.WithError(err).Errorf("undecodable message: %s", string(msg))
			continue
		}

		if probe.Ping != 0 {
			c.pong(probe.Ping)
			continue
		}
		if probe.Subbed != "" {
			logger.Debugf("ack: %s", string(msg))
			continue
		}
		if probe.Ch == "" {
			continue
		}

		c.mu.Lock()
		if entry, ok := c.subscriptions[probe.Ch]; ok {
			entry.ch <- msg
		}
		c.mu.Unlock()
	}
}

func (c *HuobiStreamClient) pong(value int64) {
	payload, _ := json.Marshal(map[string]int64{"pong": value})
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		logger.WithError(err).Error("failed to send pong")
	}
}

func gunzip(frame []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(frame))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}
