package binance

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/recws-org/recws"
	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/go-marketfeed/domain"
)

const (
	binanceDefaultWebsocketEndpoint = "wss://stream.binance.com:9443/stream"
	pingDelay                       = time.Minute * 9
)

var logger = logrus.WithField("component", "binance")

// Message is the combined-stream envelope: every payload arrives wrapped
// with the topic it belongs to.
type Message[T any] struct {
	Stream string `json:"stream"`
	Data   T      `json:"data"`
}

type subscriptionEntry struct {
	ch              chan []byte
	subscriberCount int
}

type wsRequestModel struct {
	ReqId  int      `json:"id"`
	Params []string `json:"params"`
	Method string   `json:"method"`
}

// BinanceStreamClient multiplexes one reconnecting websocket connection
// across topic subscriptions.
type BinanceStreamClient struct {
	conn          *recws.RecConn
	subscriptions map[string]*subscriptionEntry
	mu            sync.Mutex
}

func NewBinanceStreamClient() *BinanceStreamClient {
	return &BinanceStreamClient{
		subscriptions: make(map[string]*subscriptionEntry),
	}
}

func (c *BinanceStreamClient) Connect() error {
	conn := &recws.RecConn{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 5 * time.Second,
		KeepAliveTimeout: pingDelay,
		NonVerbose:       true,
	}

	conn.Dial(binanceDefaultWebsocketEndpoint, nil)
	c.conn = conn

	go c.read()
	return nil
}

func (c *BinanceStreamClient) Subscribe(topic string) (*domain.Subscription[[]byte], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.subscriptions[topic]
	if ok {
		entry.subscriberCount++
		return &domain.Subscription[[]byte]{
			Stream:      entry.ch,
			Topic:       topic,
			Unsubscribe: func() { c.unsubscribe(topic) },
		}, nil
	}

	ch := make(chan []byte)
	c.subscriptions[topic] = &subscriptionEntry{
		ch:              ch,
		subscriberCount: 1,
	}

	logger.Infof("subscribing to %s", topic)
	if err := c.conn.WriteJSON(wsRequestModel{
		Method: "SUBSCRIBE",
		ReqId:  getRandomReqID(),
		Params: []string{topic},
	}); err != nil {
		delete(c.subscriptions, topic)
		return nil, fmt.Errorf("failed to send subscribe msg for topic=%s: %w", topic, err)
	}

	return &domain.Subscription[[]byte]{
		Stream:      ch,
		Topic:       topic,
		Unsubscribe: func() { c.unsubscribe(topic) },
	}, nil
}

func (c *BinanceStreamClient) unsubscribe(topic string) {
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
		Method: "UNSUBSCRIBE",
		ReqId:  getRandomReqID(),
		Params: []string{topic},
	}); err != nil {
		logger.WithError(err).Errorf("failed to send unsubscribe msg for topic=%s", topic)
	}
}

func (c *BinanceStreamClient) Close() error {
	c.conn.Close()
	return nil
}

func (c *BinanceStreamClient) read() {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			logger.WithError(err).Error("error while reading from connection")
			continue
		}

		var envelope struct {
			Stream string `json:"stream"`
			ID     *int   `json:"id"`
		}
		if err := json.Unmarshal(msg, &envelope); err != nil {
			logger.WithError(err).Errorf("undecodable message: %s", string(msg))
			continue
		}

		// subscribe/unsubscribe acks carry an id and no stream
		if envelope.Stream == "" {
			logger.Debugf("ack: %s", string(msg))
			continue
		}

		// the send happens under the lock so an unsubscribe cannot close
		// the channel mid-delivery
		c.mu.Lock()
		if entry, ok := c.subscriptions[envelope.Stream]; ok {
			entry.ch <- msg
		}
		c.mu.Unlock()
	}
}

func getRandomReqID() int {
	min := 10000
	max := 9999999
	return min + rand.Intn(max-min)
}
