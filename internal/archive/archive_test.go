package archive

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eagraph/internal/baseline"
	"github.com/roach88/eagraph/internal/snapshot"
	"github.com/roach88/eagraph/internal/testutil"
)

func createTestArchive(t *testing.T) (*Archive, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.db")
	a, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, path
}

func createBaselines(t *testing.T, names ...string) []*baseline.Baseline {
	t.Helper()
	clock := testutil.NewDeterministicClock()
	store := baseline.NewStore(
		baseline.WithIDGenerator(testutil.NewSequentialIDs("bl")),
		baseline.WithClock(clock.Now))
	g := testutil.Compliant(t).Tombstone("tech-1").Committed()

	var out []*baseline.Baseline
	for _, name := range names {
		b, err := store.CreateBaseline(g, baseline.Request{Name: name, CreatedBy: "ops"})
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func TestOpenAppliesPragmas(t *testing.T) {
	a, _ := createTestArchive(t)

	assert.NoError(t, a.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, a.verifyPragma("synchronous", "1"))
	assert.NoError(t, a.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, a.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, a.verifyPragma("user_version", "1"))
}

func TestOpenIsIdempotent(t *testing.T) {
	a, path := createTestArchive(t)
	bs := createBaselines(t, "Q1")
	require.NoError(t, a.Export(context.Background(), bs[0]))
	require.NoError(t, a.Close())

	again, err := Open(path)
	require.NoError(t, err)
	defer again.Close()

	b, err := again.Load(context.Background(), bs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Q1", b.Name)
}

func TestExportLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	a, _ := createTestArchive(t)
	orig := createBaselines(t, "Q1")[0]

	require.NoError(t, a.Export(ctx, orig))
	got, err := a.Load(ctx, orig.ID)
	require.NoError(t, err)

	assert.Equal(t, orig.ID, got.ID)
	assert.Equal(t, orig.Digest, got.Digest)
	assert.True(t, orig.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, orig.Source, got.Source)
	assert.True(t, baseline.Compare(orig, got).Empty())

	var tombstoned []string
	for _, el := range got.Elements {
		if !el.Live() {
			tombstoned = append(tombstoned, el.ID)
		}
	}
	assert.Equal(t, []string{"tech-1"}, tombstoned)
}

func TestExportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	a, _ := createTestArchive(t)
	b := createBaselines(t, "Q1")[0]

	require.NoError(t, a.Export(ctx, b))
	require.NoError(t, a.Export(ctx, b))

	list, err := a.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestExportConflict(t *testing.T) {
	ctx := context.Background()
	a, _ := createTestArchive(t)
	b := createBaselines(t, "Q1")[0]
	require.NoError(t, a.Export(ctx, b))

	store := baseline.NewStore(baseline.WithIDGenerator(baseline.NewFixedGenerator(b.ID)))
	other, err := store.CreateBaseline(testutil.Compliant(t).Committed(), baseline.Request{Name: "other"})
	require.NoError(t, err)
	require.NotEqual(t, b.Digest, other.Digest)

	err = a.Export(ctx, other)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestExportRejectsUnverifiedBaseline(t *testing.T) {
	b := createBaselines(t, "Q1")[0]
	b.Elements = b.Elements[1:]

	a, _ := createTestArchive(t)
	err := a.Export(context.Background(), b)
	assert.ErrorIs(t, err, baseline.ErrDigestMismatch)
}

func TestLoadNotFound(t *testing.T) {
	a, _ := createTestArchive(t)
	_, err := a.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadDetectsTampering(t *testing.T) {
	ctx := context.Background()
	a, _ := createTestArchive(t)
	b := createBaselines(t, "Q1")[0]
	require.NoError(t, a.Export(ctx, b))

	_, err := a.db.Exec(`UPDATE baselines SET digest = 'feed' WHERE id = ?`, b.ID)
	require.NoError(t, err)
	_, err = a.Load(ctx, b.ID)
	assert.ErrorIs(t, err, baseline.ErrDigestMismatch)

	_, err = a.db.Exec(`UPDATE baselines SET payload = ? WHERE id = ?`, []byte("not zstd"), b.ID)
	require.NoError(t, err)
	_, err = a.Load(ctx, b.ID)
	assert.Error(t, err)
}

func TestPayloadIsCompressedBaselineJSON(t *testing.T) {
	ctx := context.Background()
	a, _ := createTestArchive(t)
	b := createBaselines(t, "Q1")[0]
	require.NoError(t, a.Export(ctx, b))

	var payload []byte
	require.NoError(t, a.db.QueryRow(`SELECT payload FROM baselines WHERE id = ?`, b.ID).Scan(&payload))
	data, err := snapshot.DecompressBytes(payload)
	require.NoError(t, err)

	var stored baseline.Baseline
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, b.Digest, stored.Digest)
	assert.NoError(t, stored.Verify())
}

func TestListInArchiveOrder(t *testing.T) {
	ctx := context.Background()
	a, _ := createTestArchive(t)
	bs := createBaselines(t, "Q1", "Q2", "Q3")
	for i := len(bs) - 1; i >= 0; i-- {
		require.NoError(t, a.Export(ctx, bs[i]))
	}

	list, err := a.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"Q3", "Q2", "Q1"}, []string{list[0].Name, list[1].Name, list[2].Name})

	s := list[2]
	assert.Equal(t, "bl-0001", s.ID)
	assert.Equal(t, "ops", s.CreatedBy)
	assert.Equal(t, 7, s.ElementCount)
	assert.Equal(t, 7, s.RelationshipCount)
	assert.Equal(t, bs[0].Digest, s.Digest)
	assert.True(t, testutil.Epoch.Equal(s.CreatedAt))
}

func TestListEmpty(t *testing.T) {
	a, _ := createTestArchive(t)
	list, err := a.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}
