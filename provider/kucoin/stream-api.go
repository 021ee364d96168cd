package kucoin

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/go-marketfeed/domain"
	"github.com/spooky-finn/go-marketfeed/helpers"
)

const (
	snapshotWarmup = time.Second
	diffBufferSize = 512
)

type KucoinStreamAPI struct {
	streamClient *KucoinStreamClient
	syncAPI      *KucoinSyncAPI
}

type DepthUpdateModel struct {
	Changes       orderBookChanges `json:"changes"`
	SequenceEnd   int64            `json:"sequenceEnd"`
	SequenceStart int64            `json:"sequenceStart"`
	Symbol        string           `json:"symbol"`
	Time          int64            `json:"time"`
}

// change rows are [price, size, sequence] triples
type orderBookChanges struct {
	Asks [][]string `json:"asks"`
	Bids [][]string `json:"bids"`
}

type matchModel struct {
	TradeId string `json:"tradeId"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Side    string `json:"side"`
	Time    string `json:"time"`
}

func NewKucoinStreamAPI(client *KucoinStreamClient, syncAPI *KucoinSyncAPI) *KucoinStreamAPI {
	return &KucoinStreamAPI{
		streamClient: client,
		syncAPI:      syncAPI,
	}
}

// DepthStream emits a REST snapshot baseline followed by sequence-checked
// level2 changes. Change rows already applied by the snapshot are filtered
// out of the first accepted update.
func (s *KucoinStreamAPI) DepthStream(symbol *domain.MarketSymbol) (*domain.Subscription[*domain.BookUpdate], error) {
	topic := fmt.Sprintf("/market/level2:%s", strings.ToUpper(symbol.Join("-")))
	sub, err := s.streamClient.Subscribe(topic)
	if err != nil {
		return nil, err
	}

	diffs := make(chan *DepthUpdateModel, diffBufferSize)
	firstDiff := make(chan struct{}, 1)
	out := make(chan *domain.BookUpdate)

	go s.decodeDiffs(sub, diffs, firstDiff)
	go s.emitUpdates(symbol, diffs, firstDiff, out, sub.Unsubscribe)

	return &domain.Subscription[*domain.BookUpdate]{
		Stream:      out,
		Topic:       topic,
		Unsubscribe: sub.Unsubscribe,
	}, nil
}

func (s *KucoinStreamAPI) decodeDiffs(sub *domain.Subscription[*wsMessageModel], diffs chan<- *DepthUpdateModel, firstDiff chan<- struct{}) {
	defer close(diffs)

	notified := false
	for msg := range sub.Stream {
		update := &DepthUpdateModel{}
		if err := json.Unmarshal(msg.Data, update); err != nil {
			logger.WithError(err).Error("failed to decode depth message")
			continue
		}

		diffs <- update

		if !notified {
			firstDiff <- struct{}{}
			notified = true
		}
	}
}

func (s *KucoinStreamAPI) emitUpdates(
	symbol *domain.MarketSymbol,
	diffs <-chan *DepthUpdateModel,
	firstDiff <-chan struct{},
	out chan<- *domain.BookUpdate,
	unsubscribe func(),
) {
	defer close(out)

	ready := helpers.WithLatestFrom(firstDiff, helpers.TimeToEmptyChan(time.After(snapshotWarmup)))
	<-ready

	raw, err := s.syncAPI.bookSnapshot(symbol)
	if err != nil {
		logger.WithError(err).Errorf("failed to fetch snapshot for %s", symbol)
		unsubscribe()
		return
	}

	snapshot, lastSequence, err := rawSnapshotToBookUpdate(symbol, raw)
	if err != nil {
		logger.WithError(err).Errorf("malformed snapshot for %s", symbol)
		unsubscribe()
		return
	}
	out <- snapshot

	validator := &DepthUpdateValidator{}
	firstUpdateApplied := false

	for diff := range diffs {
		if err := validator.IsValidUpd(diff, lastSequence); err != nil {
			if err == ErrDepthUpdateOutOfSequence {
				logger.Warnf("out of sequence depth update for %s: start=%d, have %d",
					symbol, diff.SequenceStart, lastSequence)
			}
			continue
		}

		// rows the snapshot already reflects must not be re-applied
		minSequence := int64(0)
		if !firstUpdateApplied {
			minSequence = lastSequence
			firstUpdateApplied = true
		}
		lastSequence = diff.SequenceEnd

		update, err := diffToBookUpdate(symbol, diff, minSequence)
		if err != nil {
			logger.WithError(err).Errorf("malformed depth update for %s", symbol)
			continue
		}
		out <- update
	}
}

func diffToBookUpdate(symbol *domain.MarketSymbol, diff *DepthUpdateModel, minSequence int64) (*domain.BookUpdate, error) {
	bids, err := parseChangeRows(diff.Changes.Bids, minSequence)
	if err != nil {
		return nil, err
	}
	asks, err := parseChangeRows(diff.Changes.Asks, minSequence)
	if err != nil {
		return nil, err
	}

	ts := time.Now()
	if diff.Time > 0 {
		ts = time.UnixMilli(diff.Time)
	}

	return domain.NewBookUpdate(symbol, ts, domain.UpdateKind_Incremental, bids, asks), nil
}

func parseChangeRows(rows [][]string, minSequence int64) ([]domain.BookLevel, error) {
	selected := make([][]string, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("malformed change row: %v", row)
		}
		sequence, err := strconv.ParseInt(row[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed change sequence %q: %w", row[2], err)
		}
		if sequence > minSequence {
			selected = append(selected, row)
		}
	}

	return domain.ParseRawLevels(selected)
}

// TradeStream emits one normalized tick per match event.
func (s *KucoinStreamAPI) TradeStream(symbol *domain.MarketSymbol) (*domain.Subscription[*domain.TickData], error) {
	topic := fmt.Sprintf("/market/match:%s", strings.ToUpper(symbol.Join("-")))
	sub, err := s.streamClient.Subscribe(topic)
	if err != nil {
		return nil, err
	}

	out := make(chan *domain.TickData)

	go func() {
		defer close(out)

		for msg := range sub.Stream {
			match := &matchModel{}
			if err := json.Unmarshal(msg.Data, match); err != nil {
				logger.WithError(err).Error("failed to decode match message")
				continue
			}

			tick, err := matchToTickData(symbol, match)
			if err != nil {
				logger.WithError(err).Errorf("malformed match for %s", symbol)
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

func matchToTickData(symbol *domain.MarketSymbol, match *matchModel) (*domain.TickData, error) {
	price, err := decimal.NewFromString(match.Price)
	if err != nil {
		return nil, fmt.Errorf("malformed price %q: %w", match.Price, err)
	}
	size, err := decimal.NewFromString(match.Size)
	if err != nil {
		return nil, fmt.Errorf("malformed size %q: %w", match.Size, err)
	}

	// match times are nanosecond epoch strings
	nanos, err := strconv.ParseInt(match.Time, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed time %q: %w", match.Time, err)
	}

	return domain.NewTickData(match.TradeId, time.Unix(0, nanos), price, size, symbol, "kucoin"), nil
}
