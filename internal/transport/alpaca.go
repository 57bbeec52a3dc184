package transport

// MarketDataAuth builds the Alpaca market-data stream authentication
// frame, sent immediately after the socket opens.
func MarketDataAuth(apiKey, apiSecret string) AuthPayload {
	return func() interface{} {
		return map[string]string{
			"action": "auth",
			"key":    apiKey,
			"secret": apiSecret,
		}
	}
}

// MarketDataSubscribe builds the Alpaca market-data subscribe frame for
// trades, quotes, and minute bars on the given symbols.
func MarketDataSubscribe() SubscribePayload {
	return func(symbols []string) interface{} {
		return map[string]interface{}{
			"action": "subscribe",
			"trades": symbols,
			"quotes": symbols,
			"bars":   symbols,
		}
	}
}

// TradeUpdatesAuth builds the Alpaca trading-account stream authentication
// frame used for order/account update streams.
func TradeUpdatesAuth(apiKey, apiSecret string) AuthPayload {
	return func() interface{} {
		return map[string]interface{}{
			"action": "auth",
			"key":    apiKey,
			"secret": apiSecret,
		}
	}
}

// TradeUpdatesListen builds the Alpaca trading-account stream's "listen"
// frame. symbols is unused (the stream has no symbol filter) but kept so
// the function satisfies SubscribePayload.
func TradeUpdatesListen() SubscribePayload {
	return func(symbols []string) interface{} {
		return map[string]interface{}{
			"action": "listen",
			"data":   map[string][]string{"streams": {"trade_updates"}},
		}
	}
}
