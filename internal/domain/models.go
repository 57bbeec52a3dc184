// Package domain holds the core value types shared across every subsystem
// of the CORE trading engine. Nothing in this package talks to the network
// or the filesystem — it is the vocabulary the rest of the module shares.
package domain

import "time"

// Currency is an ISO-4217-ish currency code as returned by the broker.
type Currency string

const (
	CurrencyUSD Currency = "USD"
)

// DataSource identifies where a MarketSnapshot's fields came from.
type DataSource string

const (
	SourceQuote DataSource = "quote"
	SourceTrade DataSource = "trade"
	SourceBar   DataSource = "bar"
	SourceREST  DataSource = "rest"
)

// MarketSnapshot is the last-known state for a symbol. The Snapshot Store
// (C4) is the only writer; every other component takes a read-view.
//
// Invariant: Low <= Price <= High whenever all three are present.
// Invariant: Timestamp is monotonic per symbol across updates of the same
// Source (a later REST poll is allowed to carry an older Timestamp than a
// live trade print of the same symbol — monotonicity is per-kind, not
// global).
type MarketSnapshot struct {
	Symbol      string     `json:"symbol"`
	Price       float64    `json:"price"`
	Open        float64    `json:"open"`
	High        float64    `json:"high"`
	Low         float64    `json:"low"`
	Volume      int64      `json:"volume"`
	Timestamp   time.Time  `json:"timestamp"`
	Source      DataSource `json:"source"`
	Exchange    string     `json:"exchange,omitempty"`
	Greeks      *Greeks    `json:"greeks,omitempty"`
	News        *NewsItem  `json:"news,omitempty"`
}

// Valid reports whether the low/price/high ordering invariant holds.
func (s MarketSnapshot) Valid() bool {
	if s.Low == 0 || s.High == 0 {
		return true
	}
	return s.Low <= s.Price && s.Price <= s.High
}

// Greeks carries options pricing sensitivities, present only for option
// symbols.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	IV    float64 `json:"iv"`
}

// NewsItem is a headline attached opportunistically to a snapshot.
type NewsItem struct {
	Headline string    `json:"headline"`
	Source   string    `json:"source"`
	URL      string    `json:"url,omitempty"`
	At       time.Time `json:"at"`
}

// OHLCVBar is one time bucket of aggregated trading activity, produced
// by bar messages; bars are not derived from trades.
type OHLCVBar struct {
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
	NTrades   int64     `json:"n_trades"`
	VWAP      float64   `json:"vwap"`
}

// AccountState mirrors the broker account endpoint. Monetary fields arrive
// over the wire as decimal strings; ingress parses them to float64 with
// strconv.ParseFloat and applies no further rounding — see
// internal/alpaca for the conversion.
type AccountState struct {
	Cash                   float64 `json:"cash"`
	Equity                 float64 `json:"equity"`
	BuyingPower            float64 `json:"buying_power"`
	PortfolioValue         float64 `json:"portfolio_value"`
	StartingPortfolioValue float64 `json:"starting_portfolio_value"`
	MarginMultiplier       float64 `json:"margin_multiplier"`
	ShortingEnabled        bool    `json:"shorting_enabled"`
	PatternDayTrader       bool    `json:"pattern_day_trader"`
	DaytradeCount          int     `json:"daytrade_count"`
}

// Position is a current holding. Sign of Qty encodes direction: positive is
// long, negative is short.
//
// Invariant: a Position is present iff Qty != 0. Deleting a symbol from the
// store requires both that the broker no longer reports it AND that Qty has
// settled to zero.
type Position struct {
	Symbol         string  `json:"symbol"`
	Qty            float64 `json:"qty"`
	AvgEntryPrice  float64 `json:"avg_entry_price"`
	MarketValue    float64 `json:"market_value"`
	UnrealizedPL   float64 `json:"unrealized_pl"`
}

// IsLong reports whether the position is a long holding.
func (p Position) IsLong() bool { return p.Qty > 0 }

// IsShort reports whether the position is a short holding.
func (p Position) IsShort() bool { return p.Qty < 0 }

// MarketStatus mirrors the broker's market clock endpoint, cached by the
// universe refresher alongside the account and position pulls.
type MarketStatus struct {
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

// AssetInfo is one entry of the tradable asset universe, as reported by the
// broker's asset list endpoint.
type AssetInfo struct {
	Symbol       string `json:"symbol"`
	Exchange     string `json:"exchange"`
	Class        string `json:"class"`
	Status       string `json:"status"`
	Tradable     bool   `json:"tradable"`
	Marginable   bool   `json:"marginable"`
	Shortable    bool   `json:"shortable"`
	Fractionable bool   `json:"fractionable"`
}

// RiskParameters is the Liquidation Monitor's effective thresholds, carried
// in the consolidated export for out-of-process observability.
type RiskParameters struct {
	StopLossPct     float64 `json:"stop_loss_pct"`
	ProfitTargetPct float64 `json:"profit_target_pct"`
}

// AccountTier is the broker-derived capability class.
type AccountTier string

const (
	TierBasic      AccountTier = "Basic"
	TierFull       AccountTier = "Full"
	TierPremium    AccountTier = "Premium"
	TierEnterprise AccountTier = "Enterprise"
)

// Feed is the market-data channel assigned to the account.
type Feed string

const (
	FeedTest       Feed = "test"
	FeedIEX        Feed = "iex"
	FeedSIP        Feed = "sip"
	FeedOPRA       Feed = "opra"
	FeedIndicative Feed = "indicative"
)

// AccountCapability is derived by the Capability Negotiator (C1) at startup
// and again when a broker 401/403 triggers re-negotiation; each negotiation
// replaces the value wholesale, it is never modified in place.
type AccountCapability struct {
	Tier             AccountTier `json:"tier"`
	CanTradeStocks   bool        `json:"can_trade_stocks"`
	CanTradeCrypto   bool        `json:"can_trade_crypto"`
	CanTradeOptions  bool        `json:"can_trade_options"`
	CanTradeForex    bool        `json:"can_trade_forex"`
	CanTradeFutures  bool        `json:"can_trade_futures"`
	CanShort         bool        `json:"can_short"`
	CanMargin        bool        `json:"can_margin"`
	CanAfterHours    bool        `json:"can_after_hours"`
	CanPreMarket     bool        `json:"can_pre_market"`
	Feed             Feed        `json:"feed"`
	DataFlags        []string    `json:"data_flags"`
	NegotiatedAt     time.Time   `json:"negotiated_at"`
}

// StreamKind enumerates the broker streams this core can subscribe to.
type StreamKind string

const (
	StreamMarketData    StreamKind = "MarketData"
	StreamTradeUpdates  StreamKind = "TradeUpdates"
	StreamAccountUpdates StreamKind = "AccountUpdates"
	StreamOrderUpdates  StreamKind = "OrderUpdates"
)

// SessionStatus is the Stream Transport (C2) connection state machine.
type SessionStatus string

const (
	StatusConnecting    SessionStatus = "Connecting"
	StatusAuthenticating SessionStatus = "Authenticating"
	StatusSubscribed    SessionStatus = "Subscribed"
	StatusReconnecting  SessionStatus = "Reconnecting"
	StatusClosed        SessionStatus = "Closed"
	// StatusFailed is terminal: reconnection was abandoned after
	// max_reconnect_attempts was exceeded. The session will not retry again.
	StatusFailed        SessionStatus = "Failed"
)

// StreamSubscription describes one accepted stream and its transport state.
type StreamSubscription struct {
	Kind        StreamKind    `json:"kind"`
	Symbols     []string      `json:"symbols"`
	EndpointURL string        `json:"endpoint_url"`
	Status      SessionStatus `json:"status"`
}

// SignalClass is the discrete classification an indicator attaches to its
// scalar output.
type SignalClass string

const (
	SignalStrongBuy     SignalClass = "StrongBuy"
	SignalBuy           SignalClass = "Buy"
	SignalNeutral       SignalClass = "Neutral"
	SignalSell          SignalClass = "Sell"
	SignalStrongSell    SignalClass = "StrongSell"
	SignalAccumulation  SignalClass = "Accumulation"
	SignalDistribution  SignalClass = "Distribution"
	SignalBreakout      SignalClass = "Breakout"
	SignalBreakdown     SignalClass = "Breakdown"
	SignalConsolidation SignalClass = "Consolidation"
)

// IndicatorResult is the uniform output shape of every function in
// internal/indicators: a scalar (or tuple, carried in Extra), a signal
// classification, and a strength in [0,1].
type IndicatorResult struct {
	Value    float64
	Extra    map[string]float64
	Signal   SignalClass
	Strength float64
}

// RegimeKind is the discrete market-regime classification.
type RegimeKind string

const (
	RegimeBull            RegimeKind = "Bull"
	RegimeBear            RegimeKind = "Bear"
	RegimeSideways        RegimeKind = "Sideways"
	RegimeHighVolatility  RegimeKind = "HighVolatility"
	RegimeLowVolatility   RegimeKind = "LowVolatility"
	RegimeCrisis          RegimeKind = "Crisis"
	RegimeRecovery        RegimeKind = "Recovery"
	RegimeConsolidation   RegimeKind = "Consolidation"
	RegimeMomentum        RegimeKind = "Momentum"
	RegimeMeanReversion   RegimeKind = "MeanReversion"
	RegimeUnknown         RegimeKind = "Unknown"
)

// MarketRegime is the output of the Regime Classifier (C7).
type MarketRegime struct {
	Kind            RegimeKind         `json:"kind"`
	Confidence      float64            `json:"confidence"`
	DurationDays    int                `json:"duration_days"`
	Indicators      map[string]float64 `json:"indicators"`
	RecommendedMix  map[string]float64 `json:"recommended_mix"`
}

// AdvisorRole is the perspective an LLM advisor invocation is anchored to.
type AdvisorRole string

const (
	RoleTechnicalAnalysis AdvisorRole = "TechnicalAnalysis"
	RoleSentimentAnalysis AdvisorRole = "SentimentAnalysis"
	RoleRiskManagement    AdvisorRole = "RiskManagement"
	RoleMarketRegime      AdvisorRole = "MarketRegime"
	RoleMomentumAnalysis  AdvisorRole = "MomentumAnalysis"
	RoleGeneralPurpose    AdvisorRole = "GeneralPurpose"
)

// AdvisorDecision is the normalized buy/sell/hold call extracted from an
// advisor's free-text response.
type AdvisorDecision string

const (
	AdvisorBuy  AdvisorDecision = "BUY"
	AdvisorSell AdvisorDecision = "SELL"
	AdvisorHold AdvisorDecision = "HOLD"
)

// AdvisorResponse is the parsed, calibrated output of one LLM Advisor
// Gateway (C9) call.
//
// Invariant: Confidence is always in [0,1]; Decision is always one of
// BUY/SELL/HOLD.
type AdvisorResponse struct {
	Decision   AdvisorDecision `json:"decision"`
	Confidence float64         `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
	Weight     float64         `json:"weight"`
	Role       AdvisorRole     `json:"role"`
	TimedOut   bool            `json:"timed_out,omitempty"`
}

// AnalysisType is the kind of question a Consensus Engine (C10) request
// is asking about a symbol or portfolio.
type AnalysisType string

const (
	AnalysisBuySignal       AnalysisType = "BuySignal"
	AnalysisSellSignal      AnalysisType = "SellSignal"
	AnalysisHoldSignal      AnalysisType = "HoldSignal"
	AnalysisRiskAssessment  AnalysisType = "RiskAssessment"
	AnalysisMarketRegime    AnalysisType = "MarketRegime"
	AnalysisPositionSizing  AnalysisType = "PositionSizing"
	AnalysisPortfolioReview AnalysisType = "PortfolioReview"
)

// UrgencyLevel controls how many advisor models the Consensus Engine
// consults before returning a result.
type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "Low"
	UrgencyMedium   UrgencyLevel = "Medium"
	UrgencyHigh     UrgencyLevel = "High"
	UrgencyCritical UrgencyLevel = "Critical"
)

// DecisionAction is the directional instruction a TradingDecision carries.
type DecisionAction string

const (
	ActionOpenLong   DecisionAction = "OpenLong"
	ActionOpenShort  DecisionAction = "OpenShort"
	ActionCloseLong  DecisionAction = "CloseLong"
	ActionCloseShort DecisionAction = "CloseShort"
	ActionHold       DecisionAction = "Hold"
)

// ActionSign returns the sign §3 requires for PositionValueSigned given an
// action: +1 for OpenLong/CloseShort, -1 for OpenShort/CloseLong, 0 for
// Hold.
func ActionSign(a DecisionAction) int {
	switch a {
	case ActionOpenLong, ActionCloseShort:
		return 1
	case ActionOpenShort, ActionCloseLong:
		return -1
	default:
		return 0
	}
}

// TradingDecision is a ranked, actionable recommendation produced by the
// Decision Assembler (C11).
//
// Invariant: sign(PositionValueSigned) == ActionSign(Action).
type TradingDecision struct {
	Symbol              string         `json:"symbol"`
	Action              DecisionAction `json:"action"`
	PositionValueSigned float64        `json:"position_value_signed"`
	ExpectedReturn      float64        `json:"expected_return"`
	Confidence          float64        `json:"confidence"`
	StopLossPrice       float64        `json:"stop_loss_price"`
	TakeProfitPrice     float64        `json:"take_profit_price"`
	Reasoning           string         `json:"reasoning"`
	Regime              RegimeKind     `json:"regime"`
	VolatilityRegime    string         `json:"volatility_regime"`
}

// LiquidationKind discriminates why a LiquidationTrigger fired.
type LiquidationKind string

const (
	LiquidationProfitTarget    LiquidationKind = "ProfitTarget"
	LiquidationStopLoss        LiquidationKind = "StopLoss"
	LiquidationRiskManagement  LiquidationKind = "RiskManagement"
	LiquidationStrategySignal  LiquidationKind = "StrategySignal"
)

// LiquidationTrigger is a condition whose satisfaction implies closing a
// position immediately, independent of strategy rank.
type LiquidationTrigger struct {
	Symbol     string          `json:"symbol"`
	Kind       LiquidationKind `json:"kind"`
	CurrentPrice float64       `json:"current_price"`
	ProfitPct  float64         `json:"profit_pct"`
	Reason     string          `json:"reason"`
}

// OrderSide is the buy/sell direction of an OrderRequest.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderType enumerates the broker order types this core can emit.
type OrderType string

const (
	OrderMarket       OrderType = "market"
	OrderLimit        OrderType = "limit"
	OrderStop         OrderType = "stop"
	OrderStopLimit    OrderType = "stop_limit"
	OrderTrailingStop OrderType = "trailing_stop"
)

// TimeInForce enumerates order lifetime policies.
type TimeInForce string

const (
	TIFDay TimeInForce = "day"
	TIFGTC TimeInForce = "gtc"
	TIFIOC TimeInForce = "ioc"
	TIFFOK TimeInForce = "fok"
)

// OrderRequest is the fully-formed payload the Order Gateway (C13) submits
// to the broker.
//
// Invariant: exactly one of Qty or Notional is non-zero.
// Invariant: ClientOrderID is unique within the process lifetime.
type OrderRequest struct {
	Symbol        string      `json:"symbol"`
	Side          OrderSide   `json:"side"`
	Qty           float64     `json:"qty,omitempty"`
	Notional      float64     `json:"notional,omitempty"`
	Type          OrderType   `json:"type"`
	TIF           TimeInForce `json:"time_in_force"`
	LimitPrice    *float64    `json:"limit_price,omitempty"`
	StopPrice     *float64    `json:"stop_price,omitempty"`
	ClientOrderID string      `json:"client_order_id"`
	ExtendedHours bool        `json:"extended_hours,omitempty"`
}

// OrderResult is the outcome of submitting an OrderRequest.
type OrderResult struct {
	Success        bool      `json:"success"`
	OrderID        string    `json:"order_id,omitempty"`
	Error          string    `json:"error,omitempty"`
	BrokerResponse string    `json:"broker_response,omitempty"`
	SubmittedAt    time.Time `json:"submitted_at"`
}
