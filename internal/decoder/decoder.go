// Package decoder turns raw Alpaca WebSocket frames into domain types. Each
// frame is a JSON array of tagged objects; the "T" field on each object
// selects its shape (spec §4.3).
package decoder

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/kinggekko/core/internal/domain"
)

// MessageTag is the Alpaca "T" discriminator.
type MessageTag string

const (
	TagQuote        MessageTag = "q"
	TagTrade        MessageTag = "t"
	TagBar          MessageTag = "b"
	TagNews         MessageTag = "n"
	TagTradeUpdate  MessageTag = "trade_updates"
	TagSuccess      MessageTag = "success"
	TagError        MessageTag = "error"
	TagSubscription MessageTag = "subscription"
	TagListening    MessageTag = "listening"
)

type envelope struct {
	T MessageTag `json:"T"`
}

// Quote is a top-of-book quote print.
type Quote struct {
	Symbol    string  `json:"S"`
	BidExch   string  `json:"bx"`
	BidPrice  float64 `json:"bp"`
	BidSize   int64   `json:"bs"`
	AskExch   string  `json:"ax"`
	AskPrice  float64 `json:"ap"`
	AskSize   int64   `json:"as"`
	Tape      string  `json:"z"`
	Timestamp string  `json:"t"`
}

// Trade is a last-sale trade print.
type Trade struct {
	Symbol    string  `json:"S"`
	Exchange  string  `json:"x"`
	Price     float64 `json:"p"`
	Size      int64   `json:"s"`
	Timestamp string  `json:"t"`
}

// Bar is an aggregated OHLCV bar.
type Bar struct {
	Symbol    string  `json:"S"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    int64   `json:"v"`
	Timestamp string  `json:"t"`
	NTrades   int64   `json:"n"`
	VWAP      float64 `json:"vw"`
}

// News is a news headline, optionally tagged with affected symbols.
type News struct {
	ID          string   `json:"id"`
	Headline    string   `json:"headline"`
	Summary     string   `json:"summary,omitempty"`
	URL         string   `json:"url,omitempty"`
	Source      string   `json:"source"`
	PublishedAt string   `json:"published_at"`
	Symbols     []string `json:"symbols"`
}

// TradeUpdate is an order lifecycle event on the trade_updates stream.
type TradeUpdate struct {
	Event         string  `json:"event"`
	Price         *string `json:"price"`
	Qty           *string `json:"qty"`
	Side          string  `json:"side"`
	Symbol        string  `json:"symbol"`
	Timestamp     string  `json:"timestamp"`
	OrderID       string  `json:"order_id"`
	ClientOrderID string  `json:"client_order_id"`
	Status        string  `json:"status"`
}

// Decoded is the discriminated result of decoding one message. Exactly one
// field besides Tag is populated.
type Decoded struct {
	Tag          MessageTag
	Quote        *Quote
	Trade        *Trade
	Bar          *Bar
	News         *News
	TradeUpdate  *TradeUpdate
	SuccessMsg   string
	ErrorCode    int
	ErrorMsg     string
	Subscription json.RawMessage
}

// DecodeFrame parses one WebSocket text frame, which Alpaca always sends as
// a JSON array of tagged messages, and returns one Decoded per element that
// decoded successfully. A malformed or unrecognised element is skipped
// rather than failing the whole frame; skipped counts how many were
// dropped so the caller can log a warning. err is non-nil only when raw is
// not a JSON array at all, since there is nothing to salvage in that case.
func DecodeFrame(raw []byte) (decoded []Decoded, skipped int, err error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, 0, fmt.Errorf("decode frame as array: %w", err)
	}

	out := make([]Decoded, 0, len(items))
	for _, item := range items {
		d, itemErr := decodeOne(item)
		if itemErr != nil {
			skipped++
			continue
		}
		out = append(out, d)
	}
	return out, skipped, nil
}

func decodeOne(raw json.RawMessage) (Decoded, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Decoded{}, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.T {
	case TagQuote:
		var q Quote
		if err := json.Unmarshal(raw, &q); err != nil {
			return Decoded{}, err
		}
		return Decoded{Tag: TagQuote, Quote: &q}, nil
	case TagTrade:
		var t Trade
		if err := json.Unmarshal(raw, &t); err != nil {
			return Decoded{}, err
		}
		return Decoded{Tag: TagTrade, Trade: &t}, nil
	case TagBar:
		var b Bar
		if err := json.Unmarshal(raw, &b); err != nil {
			return Decoded{}, err
		}
		return Decoded{Tag: TagBar, Bar: &b}, nil
	case TagNews:
		var n News
		if err := json.Unmarshal(raw, &n); err != nil {
			return Decoded{}, err
		}
		return Decoded{Tag: TagNews, News: &n}, nil
	case TagTradeUpdate:
		var u TradeUpdate
		if err := json.Unmarshal(raw, &u); err != nil {
			return Decoded{}, err
		}
		return Decoded{Tag: TagTradeUpdate, TradeUpdate: &u}, nil
	case TagSuccess:
		var s struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(raw, &s); err != nil {
			return Decoded{}, err
		}
		return Decoded{Tag: TagSuccess, SuccessMsg: s.Msg}, nil
	case TagError:
		var e struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			return Decoded{}, err
		}
		return Decoded{Tag: TagError, ErrorCode: e.Code, ErrorMsg: e.Msg}, nil
	case TagSubscription, TagListening:
		return Decoded{Tag: env.T, Subscription: raw}, nil
	default:
		return Decoded{}, fmt.Errorf("unknown message tag %q", env.T)
	}
}

// ToSnapshot converts a Quote, Trade, or Bar into a MarketSnapshot. Callers
// pass the message that produced it; the exchange tape parsing of the
// RFC-3339-nanos timestamp Alpaca sends is shared here.
func (q Quote) ToSnapshot() (domain.MarketSnapshot, error) {
	ts, err := parseAlpacaTime(q.Timestamp)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	mid := (q.BidPrice + q.AskPrice) / 2
	return domain.MarketSnapshot{
		Symbol:    q.Symbol,
		Price:     mid,
		Timestamp: ts,
		Source:    domain.SourceQuote,
		Exchange:  q.BidExch,
	}, nil
}

// ToSnapshot converts a Trade print into a MarketSnapshot.
func (t Trade) ToSnapshot() (domain.MarketSnapshot, error) {
	ts, err := parseAlpacaTime(t.Timestamp)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	return domain.MarketSnapshot{
		Symbol:    t.Symbol,
		Price:     t.Price,
		Volume:    t.Size,
		Timestamp: ts,
		Source:    domain.SourceTrade,
		Exchange:  t.Exchange,
	}, nil
}

// ToSnapshot converts a Bar into a MarketSnapshot (the bar's close as the
// representative price) and a full OHLCVBar.
func (b Bar) ToSnapshot() (domain.MarketSnapshot, domain.OHLCVBar, error) {
	ts, err := parseAlpacaTime(b.Timestamp)
	if err != nil {
		return domain.MarketSnapshot{}, domain.OHLCVBar{}, err
	}
	snap := domain.MarketSnapshot{
		Symbol:    b.Symbol,
		Price:     b.Close,
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Volume:    b.Volume,
		Timestamp: ts,
		Source:    domain.SourceBar,
	}
	bar := domain.OHLCVBar{
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
		Timestamp: ts,
		NTrades:   b.NTrades,
		VWAP:      b.VWAP,
	}
	return snap, bar, nil
}

func parseAlpacaTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	// Fall back to an epoch-nanoseconds integer, which some REST responses use.
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(0, n), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp format: %q", s)
}
