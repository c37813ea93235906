//go:build integration

package vectorstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore connects to a local Qdrant and ensures the collection
// exists. Skips the test if Qdrant is not running.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New("localhost", 6334, 4, nil)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}
	require.NoError(t, store.EnsureCollection(context.Background()))
	return store
}

// testNamespace returns a unique namespace per test run so tests do not
// interfere with each other or leftover data.
func testNamespace() string {
	return "test-" + uuid.New().String()
}

func testEntries(docID string, n int) []Entry {
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = Entry{
			ID:     fmt.Sprintf("%s_chunk_%d", docID, i),
			Vector: []float32{float32(i), 1, 0, 0},
			Metadata: map[string]string{
				"document_id": docID,
				"chunk_index": fmt.Sprintf("%d", i),
				"text":        fmt.Sprintf("chunk %d body", i),
			},
		}
	}
	return entries
}

func TestUpsertQueryRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()
	ns := testNamespace()

	entries := testEntries("doc-a", 3)
	result, err := store.Upsert(ctx, entries, ns)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Upserted)
	assert.Equal(t, 3, result.Requested)

	matches, err := store.Query(ctx, []float32{0, 1, 0, 0}, 3, ns, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	// Scores must be non-increasing.
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
	assert.Equal(t, "doc-a", matches[0].Metadata["document_id"])
	assert.NotContains(t, matches[0].Metadata, "namespace")
}

func TestUpsertIdempotent(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()
	ns := testNamespace()

	entries := testEntries("doc-b", 1)
	_, err := store.Upsert(ctx, entries, ns)
	require.NoError(t, err)

	// Re-upserting the same id overwrites, not duplicates.
	entries[0].Metadata["text"] = "revised body"
	_, err = store.Upsert(ctx, entries, ns)
	require.NoError(t, err)

	count, err := store.Count(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	fetched, err := store.Fetch(ctx, []string{entries[0].ID}, ns)
	require.NoError(t, err)
	require.Contains(t, fetched, entries[0].ID)
	assert.Equal(t, "revised body", fetched[entries[0].ID].Metadata["text"])
}

func TestQueryMetadataFilter(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()
	ns := testNamespace()

	_, err := store.Upsert(ctx, testEntries("doc-c", 2), ns)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, testEntries("doc-d", 2), ns)
	require.NoError(t, err)

	matches, err := store.Query(ctx, []float32{1, 1, 0, 0}, 10, ns,
		map[string]string{"document_id": "doc-c"}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		assert.Equal(t, "doc-c", m.Metadata["document_id"])
	}
}

func TestQueryExclude(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()
	ns := testNamespace()

	_, err := store.Upsert(ctx, testEntries("doc-e", 2), ns)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, testEntries("doc-f", 2), ns)
	require.NoError(t, err)

	matches, err := store.Query(ctx, []float32{1, 1, 0, 0}, 10, ns,
		nil, map[string]string{"document_id": "doc-e"})
	require.NoError(t, err)
	for _, m := range matches {
		assert.NotEqual(t, "doc-e", m.Metadata["document_id"])
	}
}

func TestNamespaceIsolation(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()
	ns1, ns2 := testNamespace(), testNamespace()

	_, err := store.Upsert(ctx, testEntries("doc-g", 2), ns1)
	require.NoError(t, err)

	matches, err := store.Query(ctx, []float32{1, 1, 0, 0}, 10, ns2, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, matches, "queries must not cross namespaces")

	fetched, err := store.Fetch(ctx, []string{"doc-g_chunk_0"}, ns2)
	require.NoError(t, err)
	assert.Empty(t, fetched, "fetch must not cross namespaces")
}

func TestDeleteByFilterCascade(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()
	ns := testNamespace()

	_, err := store.Upsert(ctx, testEntries("doc-h", 3), ns)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, testEntries("doc-i", 2), ns)
	require.NoError(t, err)

	require.NoError(t, store.DeleteByFilter(ctx, map[string]string{"document_id": "doc-h"}, ns))

	count, err := store.Count(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count, "only doc-i entries should remain")
}

func TestDeleteByIDs(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()
	ns := testNamespace()

	entries := testEntries("doc-j", 3)
	_, err := store.Upsert(ctx, entries, ns)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, []string{entries[0].ID, entries[2].ID}, ns))

	count, err := store.Count(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestDimensionMismatch(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	_, err := store.Upsert(ctx, []Entry{{ID: "bad", Vector: []float32{1, 2}}}, testNamespace())
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = store.Query(ctx, []float32{1, 2}, 5, testNamespace(), nil, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
