package kucoin

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Kucoin/kucoin-go-sdk"
	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/go-marketfeed/config"
	"github.com/spooky-finn/go-marketfeed/domain"
)

var logger = logrus.WithField("component", "kucoin")

type KucoinSyncAPI struct {
	apiService *kucoin.ApiService
}

type orderBookSnapshotModel struct {
	Sequence string     `json:"sequence"`
	Time     int64      `json:"time"`
	Bids     [][]string `json:"bids"`
	Asks     [][]string `json:"asks"`
}

func NewKucoinSyncAPI(conf *config.Config) *KucoinSyncAPI {
	return &KucoinSyncAPI{
		apiService: kucoin.NewApiService(
			kucoin.ApiBaseURIOption(conf.KucoinBaseURL),
			kucoin.ApiKeyOption(conf.KucoinAPIKey),
			kucoin.ApiSecretOption(conf.KucoinSecretKey),
			kucoin.ApiPassPhraseOption(conf.KucoinPassphrase),
		),
	}
}

func (api *KucoinSyncAPI) WsConnOpts() (*kucoin.WebSocketTokenModel, error) {
	resp, err := api.apiService.WebSocketPublicToken()
	if err != nil {
		return nil, fmt.Errorf("failed to get ws connection options: %w", err)
	}

	data := &kucoin.WebSocketTokenModel{}
	if err = json.Unmarshal(resp.RawData, data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response body: %w, response: %s", err, resp.Message)
	}

	return data, nil
}

// BookSnapshot fetches the full aggregated book over REST. The payload's
// time field is used when present; receipt time otherwise.
func (api *KucoinSyncAPI) BookSnapshot(symbol *domain.MarketSymbol) (*domain.BookUpdate, error) {
	raw, err := api.bookSnapshot(symbol)
	if err != nil {
		return nil, err
	}

	update, _, err := rawSnapshotToBookUpdate(symbol, raw)
	return update, err
}

func (api *KucoinSyncAPI) bookSnapshot(symbol *domain.MarketSymbol) (*orderBookSnapshotModel, error) {
	s := strings.ToUpper(symbol.Join("-"))
	resp, err := api.apiService.AggregatedFullOrderBookV3(s)
	if err != nil {
		return nil, fmt.Errorf("failed to get order book snapshot: %w", err)
	}

	data := &orderBookSnapshotModel{}
	if err = json.Unmarshal(resp.RawData, data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response body: %w, response: %s", err, resp.RawData)
	}

	return data, nil
}

func rawSnapshotToBookUpdate(symbol *domain.MarketSymbol, raw *orderBookSnapshotModel) (*domain.BookUpdate, int64, error) {
	sequence, err := strconv.ParseInt(raw.Sequence, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse snapshot sequence %q: %w", raw.Sequence, err)
	}

	bids, err := domain.ParseRawLevels(raw.Bids)
	if err != nil {
		return nil, 0, err
	}
	asks, err := domain.ParseRawLevels(raw.Asks)
	if err != nil {
		return nil, 0, err
	}

	ts := time.Now()
	if raw.Time > 0 {
		ts = time.UnixMilli(raw.Time)
	}

	return domain.NewBookUpdate(symbol, ts, domain.UpdateKind_Snapshot, bids, asks), sequence, nil
}
