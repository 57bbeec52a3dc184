package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame_Quote(t *testing.T) {
	raw := []byte(`[{"T":"q","S":"AAPL","bx":"Q","bp":150.1,"bs":2,"ax":"Q","ap":150.2,"as":3,"z":"C","t":"2024-01-02T15:04:05.123456789Z"}]`)
	decoded, skipped, err := DecodeFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, decoded, 1)
	assert.Equal(t, TagQuote, decoded[0].Tag)
	require.NotNil(t, decoded[0].Quote)
	assert.Equal(t, "AAPL", decoded[0].Quote.Symbol)

	snap, err := decoded[0].Quote.ToSnapshot()
	require.NoError(t, err)
	assert.Equal(t, "AAPL", snap.Symbol)
	assert.InDelta(t, 150.15, snap.Price, 0.0001)
}

func TestDecodeFrame_MultipleMessages(t *testing.T) {
	raw := []byte(`[{"T":"success","msg":"authenticated"},{"T":"t","S":"MSFT","x":"N","p":300.5,"s":10,"t":"2024-01-02T15:04:05Z"}]`)
	decoded, skipped, err := DecodeFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, decoded, 2)
	assert.Equal(t, TagSuccess, decoded[0].Tag)
	assert.Equal(t, "authenticated", decoded[0].SuccessMsg)
	assert.Equal(t, TagTrade, decoded[1].Tag)
	assert.Equal(t, "MSFT", decoded[1].Trade.Symbol)
}

// TestDecodeFrame_UnknownTag asserts that a single unrecognised element is
// skipped rather than failing the whole frame (spec's "malformed entries
// are skipped with a warning, session continues").
func TestDecodeFrame_UnknownTag(t *testing.T) {
	raw := []byte(`[{"T":"bogus"}]`)
	decoded, skipped, err := DecodeFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Empty(t, decoded)
}

// TestDecodeFrame_SkipsBadSiblingOnly asserts that a malformed entry does
// not take down the valid entries decoded alongside it in the same frame.
func TestDecodeFrame_SkipsBadSiblingOnly(t *testing.T) {
	raw := []byte(`[{"T":"bogus"},{"T":"t","S":"MSFT","x":"N","p":300.5,"s":10,"t":"2024-01-02T15:04:05Z"}]`)
	decoded, skipped, err := DecodeFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, decoded, 1)
	assert.Equal(t, TagTrade, decoded[0].Tag)
	assert.Equal(t, "MSFT", decoded[0].Trade.Symbol)
}

func TestDecodeFrame_Bar(t *testing.T) {
	raw := []byte(`[{"T":"b","S":"TSLA","o":100,"h":110,"l":95,"c":105,"v":1000,"t":"2024-01-02T15:04:00Z","n":42,"vw":104.5}]`)
	decoded, skipped, err := DecodeFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, decoded, 1)
	snap, bar, err := decoded[0].Bar.ToSnapshot()
	require.NoError(t, err)
	assert.Equal(t, "TSLA", snap.Symbol)
	assert.Equal(t, 105.0, snap.Price)
	assert.Equal(t, int64(42), bar.NTrades)
}

func TestDecodeFrame_NotAnArray(t *testing.T) {
	raw := []byte(`{"T":"q"}`)
	_, _, err := DecodeFrame(raw)
	assert.Error(t, err)
}
