// Package transport manages one WebSocket connection per Alpaca stream
// (market data, trade updates, account updates) — dialing, authenticating,
// subscribing, and reconnecting with exponential backoff on failure.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/kinggekko/core/internal/domain"
	"github.com/kinggekko/core/internal/events"
)

const (
	writeWait   = 10 * time.Second
	dialTimeout = 30 * time.Second

	baseReconnectDelay   = 1 * time.Second
	maxReconnectDelay    = 2 * time.Minute
	maxReconnectAttempts = 15
)

// MessageHandler receives each decoded raw frame read off the socket. It is
// invoked on the read loop's goroutine and must not block.
type MessageHandler func(raw []byte)

// AuthPayload builds the stream-specific authentication message sent
// immediately after the socket opens.
type AuthPayload func() interface{}

// SubscribePayload builds the stream-specific subscription message sent
// once authentication succeeds (and again on every reconnect).
type SubscribePayload func(symbols []string) interface{}

// Session owns one WebSocket connection for one stream kind.
type Session struct {
	kind        domain.StreamKind
	url         string
	symbols     []string
	authPayload AuthPayload
	subPayload  SubscribePayload
	onMessage   MessageHandler

	httpClient *http.Client
	bus        *events.Bus
	log        zerolog.Logger

	mu         sync.RWMutex
	conn       *websocket.Conn
	connCtx    context.Context
	cancelFunc context.CancelFunc
	status     domain.SessionStatus

	stopOnce sync.Once
	stopChan chan struct{}
	stopped  bool
}

// NewSession constructs a session for one stream kind. symbols may be empty
// for streams that don't take a symbol filter (trade/account updates).
func NewSession(kind domain.StreamKind, url string, symbols []string, auth AuthPayload, sub SubscribePayload, onMessage MessageHandler, bus *events.Bus, log zerolog.Logger) *Session {
	return &Session{
		kind:        kind,
		url:         url,
		symbols:     symbols,
		authPayload: auth,
		subPayload:  sub,
		onMessage:   onMessage,
		httpClient:  &http.Client{Transport: &http.Transport{DialContext: (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext}},
		bus:         bus,
		log:         log.With().Str("component", "transport").Str("stream", string(kind)).Logger(),
		stopChan:    make(chan struct{}),
		status:      domain.StatusConnecting,
	}
}

// Start dials the connection and begins the read loop. On initial failure
// it begins the reconnect loop in the background rather than returning a
// fatal error — a transient outage at startup should not prevent the
// process from coming up.
func (s *Session) Start() error {
	if err := s.Connect(); err != nil {
		s.log.Warn().Err(err).Msg("initial connection failed, entering reconnect loop")
		go s.reconnectLoop()
		return err
	}
	s.mu.RLock()
	ctx := s.connCtx
	s.mu.RUnlock()
	go s.readLoop(ctx)
	return nil
}

// Stop closes the connection and halts reconnection attempts permanently.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		close(s.stopChan)
	})
	return s.Disconnect()
}

func (s *Session) setStatus(status domain.SessionStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	if s.bus != nil {
		s.bus.Emit(events.SessionStatusChanged, "transport", map[string]interface{}{
			"stream": string(s.kind),
			"status": string(status),
		})
	}
}

// Status reports the session's current connection state.
func (s *Session) Status() domain.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Connect dials, authenticates, and subscribes.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = domain.StatusConnecting
	dialCtx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, s.url, &websocket.DialOptions{HTTPClient: s.httpClient})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	s.conn = conn
	s.connCtx = connCtx
	s.cancelFunc = connCancel

	if s.authPayload != nil {
		s.status = domain.StatusAuthenticating
		if err := s.send(connCtx, s.authPayload()); err != nil {
			s.teardownLocked()
			return fmt.Errorf("authenticate: %w", err)
		}
	}

	if s.subPayload != nil {
		if err := s.send(connCtx, s.subPayload(s.symbols)); err != nil {
			s.teardownLocked()
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	s.status = domain.StatusSubscribed
	return nil
}

func (s *Session) teardownLocked() {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	if s.conn != nil {
		s.conn.Close(websocket.StatusNormalClosure, "setup failed")
	}
	s.conn = nil
	s.connCtx = nil
	s.cancelFunc = nil
}

func (s *Session) send(ctx context.Context, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return s.conn.Write(writeCtx, websocket.MessageText, data)
}

// Disconnect closes the current connection without affecting the stop
// flag — used both by Stop and by the reconnect loop's teardown path.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}
	err := s.conn.Close(websocket.StatusNormalClosure, "")
	s.conn = nil
	s.connCtx = nil
	return err
}

func (s *Session) readLoop(ctx context.Context) {
	defer func() {
		s.mu.RLock()
		stopped := s.stopped
		s.mu.RUnlock()
		if !stopped {
			s.setStatus(domain.StatusReconnecting)
			go s.reconnectLoop()
		}
	}()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}

		msgType, message, err := conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			switch {
			case closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway:
				s.log.Info().Int("status", int(closeStatus)).Msg("closed normally")
			case ctx.Err() != nil:
				s.log.Debug().Msg("read cancelled")
			default:
				s.log.Error().Err(err).Msg("read error")
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}
		if s.onMessage != nil {
			s.onMessage(message)
		}
	}
}

func (s *Session) reconnectLoop() {
	attempt := 0
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		s.mu.RLock()
		stopped := s.stopped
		s.mu.RUnlock()
		if stopped {
			return
		}

		attempt++
		delay := backoff(attempt)
		s.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("reconnecting")

		select {
		case <-time.After(delay):
		case <-s.stopChan:
			return
		}

		if err := s.Connect(); err != nil {
			s.log.Error().Err(err).Int("attempt", attempt).Msg("reconnect failed")
			if attempt >= maxReconnectAttempts {
				s.fail(fmt.Errorf("reconnect abandoned after %d attempts: %w", attempt, err))
				return
			}
			continue
		}

		s.log.Info().Int("attempt", attempt).Msg("reconnected")
		s.mu.RLock()
		ctx := s.connCtx
		s.mu.RUnlock()
		go s.readLoop(ctx)
		return
	}
}

// fail marks the session permanently closed after exhausting
// maxReconnectAttempts (spec §4.2: "exceeding the cap terminates with fatal
// error"). It stops further reconnection attempts and surfaces the failure
// to the orchestrator over the event bus, since Session has no direct
// reference back to it.
func (s *Session) fail(err error) {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.setStatus(domain.StatusFailed)
	s.log.Error().Err(err).Msg("session terminated: max reconnect attempts exceeded")
	if s.bus != nil {
		s.bus.Emit(events.ErrorOccurred, "transport", map[string]interface{}{
			"stream": string(s.kind),
			"error":  err.Error(),
			"fatal":  true,
		})
	}
}

func backoff(attempt int) time.Duration {
	delay := float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxReconnectDelay) {
		delay = float64(maxReconnectDelay)
	}
	return time.Duration(delay)
}
