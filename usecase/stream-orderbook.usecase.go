package usecase

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	promclient "github.com/spooky-finn/go-marketfeed/infrastructure/prometheus"

	"github.com/spooky-finn/go-marketfeed/domain"
)

var orderBookLogger = logrus.WithField("component", "stream-orderbook-usecase")

// StreamOrderBookUseCase maintains one materialized order book per requested
// instrument and multiplexes the per-instrument pipelines into a single
// stream. Every call starts from a fresh baseline: no state is shared
// between calls.
type StreamOrderBookUseCase struct {
	connManager domain.ConnManager
}

func NewStreamOrderBookUseCase(connManager domain.ConnManager) *StreamOrderBookUseCase {
	return &StreamOrderBookUseCase{
		connManager: connManager,
	}
}

// StreamOrderBook subscribes to the provider's depth feed for each symbol
// and emits one materialized book per consumed update. Unsubscribe stops
// every pipeline and discards their books; the returned stream closes once
// all pipelines have drained.
func (uc *StreamOrderBookUseCase) StreamOrderBook(
	provider string, symbols []*domain.MarketSymbol,
) (*domain.Subscription[*domain.OrderBook], error) {
	streamAPI, err := uc.connManager.StreamAPI(provider)
	if err != nil {
		return nil, err
	}

	storage := domain.NewBookStorage()
	pipelines := make([]*domain.BookPipeline, 0, len(symbols))
	streams := make([]*domain.Subscription[*domain.OrderBook], 0, len(symbols))

	for _, symbol := range symbols {
		updates, err := streamAPI.DepthStream(symbol)
		if err != nil {
			for _, p := range pipelines {
				p.Stop()
			}
			return nil, fmt.Errorf("failed to open depth stream for %s on %s: %w", symbol, provider, err)
		}

		pipeline := domain.NewBookPipeline(provider, symbol, storage, updates)
		pipelines = append(pipelines, pipeline)
		streams = append(streams, pipeline.Run())
	}

	promclient.OpenOrderBookGauge.WithLabelValues(provider).Add(float64(len(pipelines)))

	out := make(chan *domain.OrderBook)
	done := make(chan struct{})
	var wg sync.WaitGroup

	for _, stream := range streams {
		wg.Add(1)
		go func(s *domain.Subscription[*domain.OrderBook]) {
			defer wg.Done()
			for book := range s.Stream {
				promclient.AppliedBookUpdatesCounter.WithLabelValues(provider).Inc()
				select {
				case out <- book:
				case <-done:
					return
				}
			}
		}(stream)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(done)
			for _, p := range pipelines {
				p.Stop()
			}
			promclient.OpenOrderBookGauge.WithLabelValues(provider).Sub(float64(len(pipelines)))
			orderBookLogger.Infof("stopped %d order book pipelines on %s", len(pipelines), provider)
		})
	}

	return &domain.Subscription[*domain.OrderBook]{
		Stream:      out,
		Topic:       fmt.Sprintf("orderbook@%s", provider),
		Unsubscribe: unsubscribe,
	}, nil
}
