package usecase

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	promclient "github.com/spooky-finn/go-marketfeed/infrastructure/prometheus"

	"github.com/spooky-finn/go-marketfeed/domain"
)

var tradesLogger = logrus.WithField("component", "stream-trades-usecase")

// StreamTradesUseCase fans a provider's per-symbol trade feeds into one
// normalized tick stream. Batched vendor messages arrive already expanded
// by the provider layer, so ticks pass through untouched.
type StreamTradesUseCase struct {
	connManager domain.ConnManager
}

func NewStreamTradesUseCase(connManager domain.ConnManager) *StreamTradesUseCase {
	return &StreamTradesUseCase{
		connManager: connManager,
	}
}

func (uc *StreamTradesUseCase) StreamTrades(
	provider string, symbols []*domain.MarketSymbol,
) (*domain.Subscription[*domain.TickData], error) {
	streamAPI, err := uc.connManager.StreamAPI(provider)
	if err != nil {
		return nil, err
	}

	subs := make([]*domain.Subscription[*domain.TickData], 0, len(symbols))
	for _, symbol := range symbols {
		sub, err := streamAPI.TradeStream(symbol)
		if err != nil {
			for _, s := range subs {
				s.Unsubscribe()
			}
			return nil, fmt.Errorf("failed to open trade stream for %s on %s: %w", symbol, provider, err)
		}
		subs = append(subs, sub)
	}

	out := make(chan *domain.TickData)
	done := make(chan struct{})
	var wg sync.WaitGroup

	for _, sub := range subs {
		wg.Add(1)
		go func(s *domain.Subscription[*domain.TickData]) {
			defer wg.Done()
			for tick := range s.Stream {
				promclient.NormalizedTradesCounter.WithLabelValues(provider).Inc()
				select {
				case out <- tick:
				case <-done:
					return
				}
			}
		}(sub)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(done)
			for _, s := range subs {
				s.Unsubscribe()
			}
			tradesLogger.Infof("stopped %d trade streams on %s", len(subs), provider)
		})
	}

	return &domain.Subscription[*domain.TickData]{
		Stream:      out,
		Topic:       fmt.Sprintf("trades@%s", provider),
		Unsubscribe: unsubscribe,
	}, nil
}
