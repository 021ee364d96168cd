package main

import (
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/spooky-finn/go-marketfeed/config"
	"github.com/spooky-finn/go-marketfeed/domain"
	promclient "github.com/spooky-finn/go-marketfeed/infrastructure/prometheus"
	"github.com/spooky-finn/go-marketfeed/provider"
	"github.com/spooky-finn/go-marketfeed/usecase"
)

var (
	providerName = flag.String("provider", "binance", "exchange to stream from (binance, kucoin, okex, huobi)")
	symbolsFlag  = flag.String("symbols", "BTC_USDT", "comma-separated symbols, e.g. BTC_USDT,ETH_USDT")
	depthLimit   = flag.Int("depth", 5, "levels per side to print")
	withTrades   = flag.Bool("trades", false, "also print the normalized trade stream")
)

func main() {
	flag.Parse()
	conf := config.Load()

	go promclient.StartPromClientServer(conf.MetricsAddr)

	symbols, err := parseSymbols(*symbolsFlag)
	if err != nil {
		logrus.Fatalf("invalid symbols: %v", err)
	}

	connManager := provider.NewConnectionManager(conf)
	if err := connManager.Init(); err != nil {
		logrus.Fatalf("failed to init provider connections: %v", err)
	}

	orderBookUseCase := usecase.NewStreamOrderBookUseCase(connManager)
	bookSub, err := orderBookUseCase.StreamOrderBook(*providerName, symbols)
	if err != nil {
		logrus.Fatalf("failed to stream order book: %v", err)
	}
	defer bookSub.Unsubscribe()

	if *withTrades {
		tradesUseCase := usecase.NewStreamTradesUseCase(connManager)
		tradeSub, err := tradesUseCase.StreamTrades(*providerName, symbols)
		if err != nil {
			logrus.Fatalf("failed to stream trades: %v", err)
		}
		defer tradeSub.Unsubscribe()

		go func() {
			for tick := range tradeSub.Stream {
				logrus.Infof("trade %s %s price=%s qty=%s", tick.Provider, tick.Symbol, tick.Price, tick.Quantity)
			}
		}()
	}

	go func() {
		for book := range bookSub.Stream {
			top := book.Top(*depthLimit)
			logrus.Infof("book %s %s bids=%v asks=%v", top.Provider, top.Symbol, top.Bids, top.Asks)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logrus.Info("shutting down")
}

func parseSymbols(raw string) ([]*domain.MarketSymbol, error) {
	var symbols []*domain.MarketSymbol
	for _, s := range strings.Split(raw, ",") {
		symbol, err := domain.NewMarketSymbolFromString(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, symbol)
	}

	return symbols, nil
}
