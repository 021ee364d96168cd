package domain

// ProviderStreamAPI is the decoded, vendor-normalized message surface that a
// provider exposes to the core. Decompression, keep-alive handling and
// vendor JSON mapping all happen behind it.
type ProviderStreamAPI interface {
	// DepthStream emits one BookUpdate per vendor depth event, in receipt
	// order. Providers with incremental feeds prepend a Snapshot baseline.
	DepthStream(symbol *MarketSymbol) (*Subscription[*BookUpdate], error)
	// TradeStream emits normalized ticks; batched vendor messages are
	// expanded in vendor order.
	TradeStream(symbol *MarketSymbol) (*Subscription[*TickData], error)
}

// ProviderSyncAPI serves point-in-time REST snapshots, used by providers
// whose stream feed is incremental-only.
type ProviderSyncAPI interface {
	BookSnapshot(symbol *MarketSymbol) (*BookUpdate, error)
}

type ConnManager interface {
	StreamAPI(provider string) (ProviderStreamAPI, error)
	SyncAPI(provider string) (ProviderSyncAPI, error)
}
