package provider

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/go-marketfeed/config"
	"github.com/spooky-finn/go-marketfeed/domain"
	"github.com/spooky-finn/go-marketfeed/provider/binance"
	"github.com/spooky-finn/go-marketfeed/provider/huobi"
	"github.com/spooky-finn/go-marketfeed/provider/kucoin"
	"github.com/spooky-finn/go-marketfeed/provider/okex"
	"github.com/spooky-finn/go-marketfeed/provider/upbit"
)

var logger = logrus.WithField("component", "connection-manager")

var ErrUnknownProvider = fmt.Errorf("unknown provider")

// ConnectionManager owns one client per exchange and resolves provider
// names to their stream/sync APIs.
type ConnectionManager struct {
	conf *config.Config

	BinanceWS        *binance.BinanceStreamClient
	BinanceSyncAPI   *binance.BinanceSyncAPI
	BinanceStreamAPI *binance.BinanceStreamAPI

	KucoinSyncAPI   *kucoin.KucoinSyncAPI
	KucoinStreamAPI *kucoin.KucoinStreamAPI

	OkexWS        *okex.OkexStreamClient
	OkexStreamAPI *okex.OkexStreamAPI

	HuobiWS        *huobi.HuobiStreamClient
	HuobiStreamAPI *huobi.HuobiStreamAPI

	UpbitRestAPI *upbit.UpbitRestAPI
}

func NewConnectionManager(conf *config.Config) *ConnectionManager {
	binanceStreamClient := binance.NewBinanceStreamClient()
	binanceSyncAPI := binance.NewBinanceSyncAPI()

	okexStreamClient := okex.NewOkexStreamClient()
	huobiStreamClient := huobi.NewHuobiStreamClient()

	return &ConnectionManager{
		conf: conf,

		BinanceWS:        binanceStreamClient,
		BinanceSyncAPI:   binanceSyncAPI,
		BinanceStreamAPI: binance.NewBinanceStreamAPI(binanceStreamClient, binanceSyncAPI),

		KucoinSyncAPI: kucoin.NewKucoinSyncAPI(conf),

		OkexWS:        okexStreamClient,
		OkexStreamAPI: okex.NewOkexStreamAPI(okexStreamClient),

		HuobiWS:        huobiStreamClient,
		HuobiStreamAPI: huobi.NewHuobiStreamAPI(huobiStreamClient),

		UpbitRestAPI: upbit.NewUpbitRestAPI(conf),
	}
}

// Init dials every stream endpoint concurrently. The kucoin connection
// needs a token handshake first, so it is established inside its own
// goroutine as well.
func (cm *ConnectionManager) Init() error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	dial := func(name string, connect func() error) {
		defer wg.Done()
		if err := connect(); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			mu.Unlock()
		}
	}

	wg.Add(4)
	go dial("binance", cm.BinanceWS.Connect)
	go dial("okex", cm.OkexWS.Connect)
	go dial("huobi", cm.HuobiWS.Connect)
	go dial("kucoin", cm.dialKucoin)
	wg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("failed to init connections: %v", errs)
	}

	logger.Info("all provider connections established")
	return nil
}

func (cm *ConnectionManager) dialKucoin() error {
	connOpts, err := cm.KucoinSyncAPI.WsConnOpts()
	if err != nil {
		return fmt.Errorf("failed to get ws connection options: %w", err)
	}

	streamClient := kucoin.NewKucoinStreamClient(connOpts)
	if err := streamClient.Connect(); err != nil {
		return err
	}

	cm.KucoinStreamAPI = kucoin.NewKucoinStreamAPI(streamClient, cm.KucoinSyncAPI)
	return nil
}

func (cm *ConnectionManager) StreamAPI(provider string) (domain.ProviderStreamAPI, error) {
	switch provider {
	case "binance":
		return cm.BinanceStreamAPI, nil
	case "kucoin":
		if cm.KucoinStreamAPI == nil {
			return nil, fmt.Errorf("kucoin stream api is not initialized")
		}
		return cm.KucoinStreamAPI, nil
	case "okex":
		return cm.OkexStreamAPI, nil
	case "huobi":
		return cm.HuobiStreamAPI, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
}

func (cm *ConnectionManager) SyncAPI(provider string) (domain.ProviderSyncAPI, error) {
	switch provider {
	case "binance":
		return cm.BinanceSyncAPI, nil
	case "kucoin":
		return cm.KucoinSyncAPI, nil
	case "upbit":
		return cm.UpbitRestAPI, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
}
