package journal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinggekko/core/internal/domain"
)

type sampleEntity struct {
	Symbol string  `msgpack:"symbol"`
	Price  float64 `msgpack:"price"`
}

func openTemp(t *testing.T) *Journal {
	t.Helper()
	dir := t.TempDir()
	j, err := Open(filepath.Join(dir, "journal.bin"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestAppend_AssignsMonotonicIDsPerTag(t *testing.T) {
	j := openTemp(t)

	r1, err := j.Append(domain.TagSnapshot, sampleEntity{Symbol: "AAPL", Price: 100})
	require.NoError(t, err)
	r2, err := j.Append(domain.TagSnapshot, sampleEntity{Symbol: "AAPL", Price: 101})
	require.NoError(t, err)
	r3, err := j.Append(domain.TagTrade, sampleEntity{Symbol: "AAPL", Price: 102})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), r1.ID)
	assert.Equal(t, uint64(2), r2.ID)
	assert.Equal(t, uint64(1), r3.ID) // independent counter per tag
}

func TestScan_ReturnsRecordsInAppendOrder(t *testing.T) {
	j := openTemp(t)

	for i := 0; i < 3; i++ {
		_, err := j.Append(domain.TagSignal, sampleEntity{Symbol: "MSFT"})
		require.NoError(t, err)
	}

	records, err := j.Scan(nil)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, uint64(1), records[0].ID)
	assert.Equal(t, uint64(2), records[1].ID)
	assert.Equal(t, uint64(3), records[2].ID)
}

func TestScan_FiltersByTag(t *testing.T) {
	j := openTemp(t)
	_, err := j.Append(domain.TagTrade, sampleEntity{Symbol: "AAPL"})
	require.NoError(t, err)
	_, err = j.Append(domain.TagSignal, sampleEntity{Symbol: "AAPL"})
	require.NoError(t, err)

	records, err := j.Scan(func(tag domain.JournalTag) bool { return tag == domain.TagTrade })
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.TagTrade, records[0].Tag)
}

func TestStats_CountsAndIDBoundsPerTag(t *testing.T) {
	j := openTemp(t)
	for i := 0; i < 5; i++ {
		_, err := j.Append(domain.TagSnapshot, sampleEntity{Symbol: "AAPL"})
		require.NoError(t, err)
	}

	stats, err := j.Stats()
	require.NoError(t, err)
	s := stats[domain.TagSnapshot]
	assert.Equal(t, uint64(5), s.Count)
	assert.Equal(t, uint64(1), s.FirstID)
	assert.Equal(t, uint64(5), s.LastID)
}

func TestOpen_ReopensAndContinuesIDSequence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.bin")

	j1, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	_, err = j1.Append(domain.TagAsset, sampleEntity{Symbol: "AAPL"})
	require.NoError(t, err)
	require.NoError(t, j1.Close())

	j2, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer j2.Close()

	rec, err := j2.Append(domain.TagAsset, sampleEntity{Symbol: "MSFT"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.ID)
}

func TestOpen_TruncatesTrailingPartialRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.bin")

	j1, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	_, err = j1.Append(domain.TagTrade, sampleEntity{Symbol: "AAPL", Price: 1})
	require.NoError(t, err)
	require.NoError(t, j1.Close())

	// Simulate a crash mid-write: append a header claiming a huge body
	// that never arrives.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0, 0, 0, 100, byte(domain.TagTrade), 1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	j2, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer j2.Close()

	records, err := j2.Scan(nil)
	require.NoError(t, err)
	require.Len(t, records, 1, "the torn trailing record must not surface")

	rec, err := j2.Append(domain.TagTrade, sampleEntity{Symbol: "MSFT", Price: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.ID)
}
