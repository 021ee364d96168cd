package kucoin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Kucoin/kucoin-go-sdk"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/recws-org/recws"
	"github.com/spooky-finn/go-marketfeed/domain"
)

type wsRequestModel struct {
	Id             string `json:"id"`
	Type           string `json:"type"`
	Topic          string `json:"topic,omitempty"`
	PrivateChannel bool   `json:"privateChannel,omitempty"`
	Response       bool   `json:"response,omitempty"`
}

type wsMessageModel struct {
	Id      string          `json:"id"`
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Subject string          `json:"subject"`
	Data    json.RawMessage `json:"data"`
}

type subscriptionEntry struct {
	ch              chan *wsMessageModel
	subscriberCount int
}

// KucoinStreamClient multiplexes the token-authenticated websocket. The
// endpoint and ping cadence come from the bullet-public handshake.
type KucoinStreamClient struct {
	conn          *recws.RecConn
	connOpts      *kucoin.WebSocketTokenModel
	pingInterval  time.Duration
	subscriptions map[string]*subscriptionEntry
	mu            sync.Mutex
	done          chan struct{}
}

func NewKucoinStreamClient(connOpts *kucoin.WebSocketTokenModel) *KucoinStreamClient {
	return &KucoinStreamClient{
		connOpts:      connOpts,
		pingInterval:  time.Second * 30,
		subscriptions: make(map[string]*subscriptionEntry),
		done:          make(chan struct{}),
	}
}

func (c *KucoinStreamClient) Connect() error {
	if len(c.connOpts.Servers) == 0 {
		return fmt.Errorf("no websocket servers in connection options")
	}
	server := c.connOpts.Servers[0]
	if server.PingInterval > 0 {
		c.pingInterval = time.Duration(server.PingInterval) * time.Millisecond
	}

	endpoint := fmt.Sprintf("%s?token=%s&connectId=%s", server.Endpoint, c.connOpts.Token, uuid.NewString())

	conn := &recws.RecConn{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 5 * time.Second,
		NonVerbose:       true,
	}
	conn.Dial(endpoint, nil)
	c.conn = conn

	logger.Info("connected to the kucoin stream websocket")

	go c.read()
	go c.keepAlive()
	return nil
}

func (c *KucoinStreamClient) Subscribe(topic string) (*domain.Subscription[*wsMessageModel], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.subscriptions[topic]
	if ok {
		entry.subscriberCount++
		return c.subscription(topic, entry.ch), nil
	}

	ch := make(chan *wsMessageModel)
	c.subscriptions[topic] = &subscriptionEntry{ch: ch, subscriberCount: 1}

	logger.Infof("subscribing to %s", topic)
	if err := c.conn.WriteJSON(wsRequestModel{
		Id:       uuid.NewString(),
		Type:     "subscribe",
		Topic:    topic,
		Response: true,
	}); err != nil {
		delete(c.subscriptions, topic)
		return nil, fmt.Errorf("failed to send subscribe msg for topic=%s: %w", topic, err)
	}

	return c.subscription(topic, ch), nil
}

func (c *KucoinStreamClient) subscription(topic string, ch chan *wsMessageModel) *domain.Subscription[*wsMessageModel] {
	return &domain.Subscription[*wsMessageModel]{
		Stream:      ch,
		Topic:       topic,
		Unsubscribe: func() { c.unsubscribe(topic) },
	}
}

func (c *KucoinStreamClient) unsubscribe(topic string) {
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
	if err := c.conn.WriteJSON(wsRequestModel{
		Id:    uuid.NewString(),
		Type:  "unsubscribe",
		Topic: topic,
	}); err != nil {
		logger.WithError(err).Errorf("failed to send unsubscribe msg for topic=%s", topic)
	}
}

func (c *KucoinStreamClient) Close() error {
	close(c.done)
	c.conn.Close()
	return nil
}

func (c *KucoinStreamClient) read() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			logger.WithError(err).Error("error while reading from connection")
			continue
		}

		var message wsMessageModel
		if err := json.Unmarshal(msg, &message); err != nil {
			logger.WithError(err).Errorf("undecodable message: %s", string(msg))
			continue
		}

		if message.Type != "message" {
			logger.Debugf("control message: %s", message.Type)
			continue
		}

		c.mu.Lock()
		if entry, ok := c.subscriptions[message.Topic]; ok {
			entry.ch <- &message
		}
		c.mu.Unlock()
	}
}

func (c *KucoinStreamClient) keepAlive() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			payload, _ := json.Marshal(wsRequestModel{Id: uuid.NewString(), Type: "ping"})
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.WithError(err).Error("failed to send ping")
			}
		}
	}
}
