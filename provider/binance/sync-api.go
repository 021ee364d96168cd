package binance

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spooky-finn/go-marketfeed/domain"
)

const (
	binanceRestEndpoint = "https://api.binance.com"
	snapshotDepthLimit  = 1000
)

type BinanceSyncAPI struct {
	endpoint string
	client   *http.Client
}

type depthSnapshotModel struct {
	LastUpdateId int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

func NewBinanceSyncAPI() *BinanceSyncAPI {
	return &BinanceSyncAPI{
		endpoint: binanceRestEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// BookSnapshot fetches the current depth over REST. Binance snapshots carry
// no event time, so receipt time stands in for the observation timestamp.
func (api *BinanceSyncAPI) BookSnapshot(symbol *domain.MarketSymbol) (*domain.BookUpdate, error) {
	raw, err := api.depthSnapshot(symbol)
	if err != nil {
		return nil, err
	}

	return rawSnapshotToBookUpdate(symbol, raw)
}

func (api *BinanceSyncAPI) depthSnapshot(symbol *domain.MarketSymbol) (*depthSnapshotModel, error) {
	url := fmt.Sprintf("%s/api/v3/depth?symbol=%s&limit=%d",
		api.endpoint, strings.ToUpper(symbol.Join("")), snapshotDepthLimit)

	res, err := api.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to get order book snapshot: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	data := &depthSnapshotModel{}
	if err = json.Unmarshal(body, data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response body: %w, data: %s", err, body)
	}

	return data, nil
}

func rawSnapshotToBookUpdate(symbol *domain.MarketSymbol, raw *depthSnapshotModel) (*domain.BookUpdate, error) {
	bids, err := domain.ParseRawLevels(raw.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := domain.ParseRawLevels(raw.Asks)
	if err != nil {
		return nil, err
	}

	return domain.NewBookUpdate(symbol, time.Now(), domain.UpdateKind_Snapshot, bids, asks), nil
}
