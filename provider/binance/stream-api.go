package binance

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/go-marketfeed/domain"
	"github.com/spooky-finn/go-marketfeed/helpers"
)

const (
	// give the diff stream a moment to accumulate before the snapshot is
	// pulled, so the first diffs after it can be sequence-checked
	snapshotWarmup = time.Second

	diffBufferSize = 512
)

type BinanceStreamAPI struct {
	streamClient *BinanceStreamClient
	syncAPI      *BinanceSyncAPI
}

type DepthUpdateData struct {
	Event         string     `json:"e"`
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateId int64      `json:"U"`
	FinalUpdateId int64      `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

type TradeData struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	TradeId   int64  `json:"t"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
}

func NewBinanceStreamAPI(client *BinanceStreamClient, syncAPI *BinanceSyncAPI) *BinanceStreamAPI {
	return &BinanceStreamAPI{
		streamClient: client,
		syncAPI:      syncAPI,
	}
}

// DepthStream emits a REST snapshot baseline followed by sequence-checked
// incremental updates.
func (bs *BinanceStreamAPI) DepthStream(symbol *domain.MarketSymbol) (*domain.Subscription[*domain.BookUpdate], error) {
	topic := fmt.Sprintf("%s@depth", symbol.Join(""))
	sub, err := bs.streamClient.Subscribe(topic)
	if err != nil {
		return nil, err
	}

	diffs := make(chan *DepthUpdateData, diffBufferSize)
	firstDiff := make(chan struct{}, 1)
	out := make(chan *domain.BookUpdate)

	go bs.decodeDiffs(sub, diffs, firstDiff)
	go bs.emitUpdates(symbol, diffs, firstDiff, out, sub.Unsubscribe)

	return &domain.Subscription[*domain.BookUpdate]{
		Stream:      out,
		Topic:       topic,
		Unsubscribe: sub.Unsubscribe,
	}, nil
}

func (bs *BinanceStreamAPI) decodeDiffs(sub *domain.Subscription[[]byte], diffs chan<- *DepthUpdateData, firstDiff chan<- struct{}) {
	defer close(diffs)

	notified := false
	for msg := range sub.Stream {
		var message Message[DepthUpdateData]
		if err := json.Unmarshal(msg, &message); err != nil {
			logger.WithError(err).Error("failed to decode depth message")
			continue
		}
		if message.Data.Event != "depthUpdate" {
			continue
		}

		diffs <- &message.Data

		if !notified {
			firstDiff <- struct{}{}
			notified = true
		}
	}
}

func (bs *BinanceStreamAPI) emitUpdates(
	symbol *domain.MarketSymbol,
	diffs <-chan *DepthUpdateData,
	firstDiff <-chan struct{},
	out chan<- *domain.BookUpdate,
	unsubscribe func(),
) {
	defer close(out)

	ready := helpers.WithLatestFrom(firstDiff, helpers.TimeToEmptyChan(time.After(snapshotWarmup)))
	<-ready

	raw, err := bs.syncAPI.depthSnapshot(symbol)
	if err != nil {
		logger.WithError(err).Errorf("failed to fetch snapshot for %s", symbol)
		unsubscribe()
		return
	}

	snapshot, err := rawSnapshotToBookUpdate(symbol, raw)
	if err != nil {
		logger.WithError(err).Errorf("malformed snapshot for %s", symbol)
		unsubscribe()
		return
	}
	out <- snapshot

	validator := &DepthUpdateValidator{}
	lastUpdateID := raw.LastUpdateId

	for diff := range diffs {
		if err := validator.IsValidUpd(diff, lastUpdateID); err != nil {
			if err == ErrDepthUpdateOutOfSequence {
				logger.Warnf("out of sequence depth update for %s: U=%d, have %d",
					symbol, diff.FirstUpdateId, lastUpdateID)
			}
			continue
		}
		lastUpdateID = diff.FinalUpdateId

		update, err := diffToBookUpdate(symbol, diff)
		if err != nil {
			logger.WithError(err).Errorf("malformed depth update for %s", symbol)
			continue
		}
		out <- update
	}
}

func diffToBookUpdate(symbol *domain.MarketSymbol, diff *DepthUpdateData) (*domain.BookUpdate, error) {
	bids, err := domain.ParseRawLevels(diff.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := domain.ParseRawLevels(diff.Asks)
	if err != nil {
		return nil, err
	}

	return domain.NewBookUpdate(
		symbol,
		time.UnixMilli(diff.EventTime),
		domain.UpdateKind_Incremental,
		bids, asks,
	), nil
}

// TradeStream emits one normalized tick per trade event.
func (bs *BinanceStreamAPI) TradeStream(symbol *domain.MarketSymbol) (*domain.Subscription[*domain.TickData], error) {
	topic := fmt.Sprintf("%s@trade", symbol.Join(""))
	sub, err := bs.streamClient.Subscribe(topic)
	if err != nil {
		return nil, err
	}

	out := make(chan *domain.TickData)

	go func() {
		defer close(out)

		for msg := range sub.Stream {
			var message Message[TradeData]
			if err := json.Unmarshal(msg, &message); err != nil {
				logger.WithError(err).Error("failed to decode trade message")
				continue
			}
			if message.Data.Event != "trade" {
				continue
			}

			tick, err := tradeToTickData(symbol, &message.Data)
			if err != nil {
				logger.WithError(err).Error("malformed trade message")
				continue
			}
			out <- tick
		}
	}()

	return &domain.Subscription[*domain.TickData]{
		Stream:      out,
		Topic:       topic,
		Unsubscribe: sub.Unsubscribe,
	}, nil
}

func tradeToTickData(symbol *domain.MarketSymbol, trade *TradeData) (*domain.TickData, error) {
	price, err := decimal.NewFromString(trade.Price)
	if err != nil {
		return nil, fmt.Errorf("malformed price %q: %w", trade.Price, err)
	}
	quantity, err := decimal.NewFromString(trade.Quantity)
	if err != nil {
		return nil, fmt.Errorf("malformed quantity %q: %w", trade.Quantity, err)
	}

	return domain.NewTickData(
		helpers.IntToString(trade.TradeId),
		time.UnixMilli(trade.TradeTime),
		price, quantity, symbol, "binance",
	), nil
}
