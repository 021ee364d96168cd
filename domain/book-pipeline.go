package domain

import (
	"sync"

	"github.com/gammazero/deque"
	"github.com/sirupsen/logrus"
)

var pipelineLogger = logrus.WithField("component", "book-pipeline")

// BookPipeline turns one instrument's decoded update stream into a stream of
// materialized books: exactly one emitted book per consumed update, in
// receipt order. Updates are buffered in a queue drained by a single
// goroutine, so there is at most one in-flight merge per instrument at any
// time.
type BookPipeline struct {
	provider string
	symbol   *MarketSymbol
	storage  *BookStorage
	updates  *Subscription[*BookUpdate]

	queue deque.Deque[*BookUpdate]
	mu    sync.Mutex
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
	out   chan *OrderBook
}

func NewBookPipeline(provider string, symbol *MarketSymbol, storage *BookStorage, updates *Subscription[*BookUpdate]) *BookPipeline {
	return &BookPipeline{
		provider: provider,
		symbol:   symbol,
		storage:  storage,
		updates:  updates,

		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(chan *OrderBook),
	}
}

// Run starts consuming updates and returns the materialized book stream.
// The stream closes after Stop, or when the upstream subscription ends.
func (p *BookPipeline) Run() *Subscription[*OrderBook] {
	go p.enqueueLoop()
	go p.drainLoop()

	return &Subscription[*OrderBook]{
		Stream:      p.out,
		Topic:       p.updates.Topic,
		Unsubscribe: p.Stop,
	}
}

// Stop halts emission promptly and discards the instrument's storage entry.
// Pipelines for other instruments are unaffected.
func (p *BookPipeline) Stop() {
	p.once.Do(func() {
		close(p.done)
		p.updates.Unsubscribe()
		p.storage.Drop(p.symbol)
	})
}

func (p *BookPipeline) enqueueLoop() {
	for {
		select {
		case <-p.done:
			// drain until the producer observes the unsubscribe, so it is
			// never left blocked on a send
			for range p.updates.Stream {
			}
			return
		case update, ok := <-p.updates.Stream:
			if !ok {
				pipelineLogger.Infof("upstream closed for %s on %s, stopping pipeline", p.symbol, p.provider)
				p.Stop()
				return
			}

			p.mu.Lock()
			p.queue.PushBack(update)
			p.mu.Unlock()

			select {
			case p.wake <- struct{}{}:
			default:
			}
		}
	}
}

func (p *BookPipeline) drainLoop() {
	defer close(p.out)

	for {
		select {
		case <-p.done:
			return
		case <-p.wake:
		}

		for {
			p.mu.Lock()
			if p.queue.Len() == 0 {
				p.mu.Unlock()
				break
			}
			update := p.queue.PopFront()
			p.mu.Unlock()

			book := p.storage.Apply(update.Symbol, func(prev *OrderBook) *OrderBook {
				return MergeBookUpdate(p.provider, prev, update)
			})

			select {
			case p.out <- book:
			case <-p.done:
				return
			}
		}
	}
}
