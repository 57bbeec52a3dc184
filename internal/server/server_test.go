package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinggekko/core/internal/domain"
)

func newTestServer(deps Dependencies) *Server {
	return New(Config{Port: 0, Log: zerolog.Nop(), Deps: deps, DevMode: true})
}

func TestHandleHealth_ReturnsOK(t *testing.T) {
	s := newTestServer(Dependencies{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleSnapshot_ReturnsWiredView(t *testing.T) {
	view := SnapshotView{
		Account:   domain.AccountState{Cash: 1000},
		Snapshots: map[string]domain.MarketSnapshot{"AAPL": {Symbol: "AAPL"}},
	}
	s := newTestServer(Dependencies{Snapshot: func() SnapshotView { return view }})

	req := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got SnapshotView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1000.0, got.Account.Cash)
}

func TestHandleSnapshot_NotWiredReturns501(t *testing.T) {
	s := newTestServer(Dependencies{})
	req := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHandleJournalStats_ReturnsWiredStats(t *testing.T) {
	stats := map[domain.JournalTag]domain.JournalStats{
		domain.TagTrade: {Tag: domain.TagTrade, Count: 3, FirstID: 1, LastID: 3},
	}
	s := newTestServer(Dependencies{
		JournalStats: func() (map[domain.JournalTag]domain.JournalStats, error) { return stats, nil },
	})

	req := httptest.NewRequest(http.MethodGet, "/api/journal/stats", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleJournalStats_PropagatesError(t *testing.T) {
	s := newTestServer(Dependencies{
		JournalStats: func() (map[domain.JournalTag]domain.JournalStats, error) {
			return nil, errors.New("boom")
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/journal/stats", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleJournalExport_ReturnsKey(t *testing.T) {
	s := newTestServer(Dependencies{
		ExportJournal: func(ctx context.Context) (string, error) { return "journal-export-x.tar.gz", nil },
	})

	req := httptest.NewRequest(http.MethodPost, "/api/journal/export", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "journal-export-x.tar.gz", resp["key"])
}

func TestHandleLatestDecisions_ReturnsWiredList(t *testing.T) {
	decisions := []domain.TradingDecision{{Symbol: "AAPL", Action: domain.ActionOpenLong}}
	s := newTestServer(Dependencies{
		LatestDecisions: func() []domain.TradingDecision { return decisions },
	})

	req := httptest.NewRequest(http.MethodGet, "/api/decisions/latest", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got []domain.TradingDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "AAPL", got[0].Symbol)
}

func TestHandleSetModel_UpdatesOverride(t *testing.T) {
	override := NewModelOverride()
	s := newTestServer(Dependencies{Models: override})

	body := `{"model":"llama3.1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/advisor/model", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "llama3.1", override.Current())
}

func TestHandleSetModel_RejectsEmptyModel(t *testing.T) {
	override := NewModelOverride()
	s := newTestServer(Dependencies{Models: override})

	req := httptest.NewRequest(http.MethodPost, "/api/advisor/model", strings.NewReader(`{"model":""}`))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModelOverride_DefaultsToEmpty(t *testing.T) {
	override := NewModelOverride()
	assert.Equal(t, "", override.Current())
}
