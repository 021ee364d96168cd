package upbit

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/go-marketfeed/config"
	"github.com/spooky-finn/go-marketfeed/domain"
)

const upbitRestEndpoint = "https://api.upbit.com"

var logger = logrus.WithField("component", "upbit")

// UpbitRestAPI signs private calls with a per-request JWT: HS256 over the
// secret key, with access_key, a uuid nonce and the request's query string
// as claims. Public market data calls go unsigned.
type UpbitRestAPI struct {
	endpoint  string
	accessKey string
	secretKey string
	client    *http.Client
}

type balanceModel struct {
	Currency     string          `json:"currency"`
	Balance      decimal.Decimal `json:"balance"`
	Locked       decimal.Decimal `json:"locked"`
	AvgBuyPrice  decimal.Decimal `json:"avg_buy_price"`
	UnitCurrency string          `json:"unit_currency"`
}

type Balance struct {
	Currency string
	Amount   decimal.Decimal
	Locked   decimal.Decimal
}

type orderbookModel struct {
	Market    string `json:"market"`
	Timestamp int64  `json:"timestamp"`
	Units     []struct {
		AskPrice decimal.Decimal `json:"ask_price"`
		BidPrice decimal.Decimal `json:"bid_price"`
		AskSize  decimal.Decimal `json:"ask_size"`
		BidSize  decimal.Decimal `json:"bid_size"`
	} `json:"orderbook_units"`
}

func NewUpbitRestAPI(conf *config.Config) *UpbitRestAPI {
	return &UpbitRestAPI{
		endpoint:  upbitRestEndpoint,
		accessKey: conf.UpbitAccessKey,
		secretKey: conf.UpbitSecretKey,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// BookSnapshot fetches the current book. Upbit restates full depth on every
// request, so the result is always a Snapshot update.
func (api *UpbitRestAPI) BookSnapshot(symbol *domain.MarketSymbol) (*domain.BookUpdate, error) {
	url := fmt.Sprintf("%s/v1/orderbook?markets=%s", api.endpoint, marketCode(symbol))

	res, err := api.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to get order book snapshot: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	var books []orderbookModel
	if err = json.Unmarshal(body, &books); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response body: %w, data: %s", err, body)
	}
	if len(books) == 0 {
		return nil, fmt.Errorf("empty orderbook response for %s", marketCode(symbol))
	}

	return orderbookToBookUpdate(symbol, &books[0]), nil
}

func (api *UpbitRestAPI) Balances() ([]Balance, error) {
	token, err := api.signedToken("")
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodGet, api.endpoint+"/v1/accounts", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := api.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get balances: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("balances request failed: status=%d, body=%s", res.StatusCode, body)
	}

	var models []balanceModel
	if err = json.Unmarshal(body, &models); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response body: %w, data: %s", err, body)
	}

	balances := make([]Balance, 0, len(models))
	for _, m := range models {
		balances = append(balances, Balance{
			Currency: strings.ToLower(m.Currency),
			Amount:   m.Balance,
			Locked:   m.Locked,
		})
	}

	return balances, nil
}

func (api *UpbitRestAPI) signedToken(query string) (string, error) {
	claims := jwt.MapClaims{
		"access_key": api.accessKey,
		"nonce":      uuid.NewString(),
	}
	if query != "" {
		claims["query"] = query
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(api.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign request token: %w", err)
	}

	return signed, nil
}

func orderbookToBookUpdate(symbol *domain.MarketSymbol, book *orderbookModel) *domain.BookUpdate {
	bids := make([]domain.BookLevel, 0, len(book.Units))
	asks := make([]domain.BookLevel, 0, len(book.Units))
	for _, unit := range book.Units {
		bids = append(bids, domain.NewBookLevel(unit.BidPrice, unit.BidSize))
		asks = append(asks, domain.NewBookLevel(unit.AskPrice, unit.AskSize))
	}

	return domain.NewBookUpdate(symbol, time.UnixMilli(book.Timestamp), domain.UpdateKind_Snapshot, bids, asks)
}

// upbit market codes put the quote currency first: btc_usdt -> USDT-BTC
func marketCode(symbol *domain.MarketSymbol) string {
	return strings.ToUpper(fmt.Sprintf("%s-%s", symbol.QuoteAsset, symbol.BaseAsset))
}
