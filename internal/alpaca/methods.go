package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// accountDTO mirrors the Alpaca /v2/account response. Money fields arrive
// as decimal strings and are parsed to float64 at this boundary; the
// rounding this introduces is documented and accepted (spec §3 note).
type accountDTO struct {
	ID                 string  `json:"id"`
	AccountNumber      string  `json:"account_number"`
	Status             string  `json:"status"`
	CryptoStatus       *string `json:"crypto_status"`
	Currency           string  `json:"currency"`
	BuyingPower        string  `json:"buying_power"`
	Cash               string  `json:"cash"`
	PortfolioValue     string  `json:"portfolio_value"`
	PatternDayTrader   bool    `json:"pattern_day_trader"`
	TradingBlocked     bool    `json:"trading_blocked"`
	TransfersBlocked   bool    `json:"transfers_blocked"`
	AccountBlocked     bool    `json:"account_blocked"`
	Multiplier         string  `json:"multiplier"`
	ShortingEnabled    bool    `json:"shorting_enabled"`
	Equity             string  `json:"equity"`
	LastEquity         string  `json:"last_equity"`
	DaytradeCount      int     `json:"daytrade_count"`
	OptionsApprovedLvl *int    `json:"options_approved_level"`
	OptionsTradingLvl  *int    `json:"options_trading_level"`
	AccountType        *string `json:"account_type"`
}

// Account is the parsed, float-valued account snapshot this client
// returns to callers.
type Account struct {
	ID                 string
	AccountNumber      string
	Status             string
	CryptoStatus       *string
	Cash               float64
	BuyingPower        float64
	PortfolioValue     float64
	StartingEquity     float64
	Equity             float64
	Multiplier         float64
	PatternDayTrader   bool
	TradingBlocked     bool
	TransfersBlocked   bool
	AccountBlocked     bool
	ShortingEnabled    bool
	DaytradeCount      int
	OptionsApprovedLvl *int
	OptionsTradingLvl  *int
	AccountType        *string
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// GetAccount fetches the account's current state.
func (c *Client) GetAccount(ctx context.Context) (*Account, error) {
	body, status, err := c.call(ctx, "GET", "/v2/account", nil)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if err := checkStatus(status, body); err != nil {
		return nil, err
	}
	var dto accountDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return &Account{
		ID:                 dto.ID,
		AccountNumber:      dto.AccountNumber,
		Status:             dto.Status,
		CryptoStatus:       dto.CryptoStatus,
		Cash:               parseFloat(dto.Cash),
		BuyingPower:        parseFloat(dto.BuyingPower),
		PortfolioValue:     parseFloat(dto.PortfolioValue),
		StartingEquity:     parseFloat(dto.LastEquity),
		Equity:             parseFloat(dto.Equity),
		Multiplier:         parseFloat(dto.Multiplier),
		PatternDayTrader:   dto.PatternDayTrader,
		TradingBlocked:     dto.TradingBlocked,
		TransfersBlocked:   dto.TransfersBlocked,
		AccountBlocked:     dto.AccountBlocked,
		ShortingEnabled:    dto.ShortingEnabled,
		DaytradeCount:      dto.DaytradeCount,
		OptionsApprovedLvl: dto.OptionsApprovedLvl,
		OptionsTradingLvl:  dto.OptionsTradingLvl,
		AccountType:        dto.AccountType,
	}, nil
}

// Asset is a tradable instrument as returned by /v2/assets.
type Asset struct {
	ID           string `json:"id"`
	Symbol       string `json:"symbol"`
	Exchange     string `json:"exchange"`
	Class        string `json:"class"`
	Status       string `json:"status"`
	Tradable     bool   `json:"tradable"`
	Marginable   bool   `json:"marginable"`
	Shortable    bool   `json:"shortable"`
	EasyToBorrow bool   `json:"easy_to_borrow"`
	Fractionable bool   `json:"fractionable"`
}

// ListAssets fetches the tradable asset universe, optionally filtered by
// status (e.g. "active").
func (c *Client) ListAssets(ctx context.Context, status string) ([]Asset, error) {
	path := "/v2/assets"
	if status != "" {
		path += "?status=" + status
	}
	body, statusCode, err := c.call(ctx, "GET", path, nil)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	if err := checkStatus(statusCode, body); err != nil {
		return nil, err
	}
	var assets []Asset
	if err := json.Unmarshal(body, &assets); err != nil {
		return nil, fmt.Errorf("decode assets: %w", err)
	}
	return assets, nil
}

// Position is a broker position as returned by GET /v2/positions. Money
// fields remain decimal strings here; callers parse them at the point
// they build a domain.Position.
type Position struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	AvgEntryPrice string `json:"avg_entry_price"`
	MarketValue   string `json:"market_value"`
	UnrealizedPL  string `json:"unrealized_pl"`
}

// ListPositions fetches every open position.
func (c *Client) ListPositions(ctx context.Context) ([]Position, error) {
	body, status, err := c.call(ctx, "GET", "/v2/positions", nil)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	if err := checkStatus(status, body); err != nil {
		return nil, err
	}
	var positions []Position
	if err := json.Unmarshal(body, &positions); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	return positions, nil
}

// Clock is the market clock response from /v2/clock.
type Clock struct {
	Timestamp string `json:"timestamp"`
	IsOpen    bool   `json:"is_open"`
	NextOpen  string `json:"next_open"`
	NextClose string `json:"next_close"`
}

// GetClock fetches the current market clock state.
func (c *Client) GetClock(ctx context.Context) (*Clock, error) {
	body, status, err := c.call(ctx, "GET", "/v2/clock", nil)
	if err != nil {
		return nil, fmt.Errorf("get clock: %w", err)
	}
	if err := checkStatus(status, body); err != nil {
		return nil, err
	}
	var clock Clock
	if err := json.Unmarshal(body, &clock); err != nil {
		return nil, fmt.Errorf("decode clock: %w", err)
	}
	return &clock, nil
}

type orderRequestDTO struct {
	Symbol        string  `json:"symbol"`
	Qty           string  `json:"qty,omitempty"`
	Notional      string  `json:"notional,omitempty"`
	Side          string  `json:"side"`
	Type          string  `json:"type"`
	TimeInForce   string  `json:"time_in_force"`
	LimitPrice    *string `json:"limit_price,omitempty"`
	StopPrice     *string `json:"stop_price,omitempty"`
	ClientOrderID string  `json:"client_order_id,omitempty"`
	ExtendedHours bool    `json:"extended_hours,omitempty"`
}

// OrderResponse is the broker's acknowledgement of a submitted order.
type OrderResponse struct {
	ID            string `json:"id"`
	ClientOrderID string `json:"client_order_id"`
	Status        string `json:"status"`
	SubmittedAt   string `json:"submitted_at"`
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// SubmitOrderParams is the broker-facing order payload.
type SubmitOrderParams struct {
	Symbol        string
	Qty           *float64
	Notional      *float64
	Side          string
	Type          string
	TimeInForce   string
	LimitPrice    *float64
	StopPrice     *float64
	ClientOrderID string
	ExtendedHours bool
}

// SubmitOrder places an order via POST /v2/orders.
func (c *Client) SubmitOrder(ctx context.Context, p SubmitOrderParams) (*OrderResponse, error) {
	dto := orderRequestDTO{
		Symbol:        p.Symbol,
		Side:          p.Side,
		Type:          p.Type,
		TimeInForce:   p.TimeInForce,
		ClientOrderID: p.ClientOrderID,
		ExtendedHours: p.ExtendedHours,
	}
	if p.Qty != nil {
		dto.Qty = fmtFloat(*p.Qty)
	}
	if p.Notional != nil {
		dto.Notional = fmtFloat(*p.Notional)
	}
	if p.LimitPrice != nil {
		s := fmtFloat(*p.LimitPrice)
		dto.LimitPrice = &s
	}
	if p.StopPrice != nil {
		s := fmtFloat(*p.StopPrice)
		dto.StopPrice = &s
	}

	body, status, err := c.call(ctx, "POST", "/v2/orders", dto)
	if err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}
	if err := checkStatus(status, body); err != nil {
		return nil, err
	}
	var resp OrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	return &resp, nil
}
