package feedback

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)
	return store
}

func testFeedback(fingerprint string) *Feedback {
	return &Feedback{
		PlanFingerprint:  fingerprint,
		Severity:         "severe",
		OverallRisk:      "High",
		SuggestedPrimary: "fentanyl",
		ChosenPrimary:    "fentanyl",
	}
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)

	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
	assert.Equal(t, dbPath, store.Path())
}

func TestSQLiteStore_Save(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	fb := testFeedback("fp-save")
	fb.ChosenPrimary = "hydromorphone"
	fb.Notes = "switched after nausea"

	err := store.Save(ctx, fb)

	require.NoError(t, err)
	assert.NotZero(t, fb.ID, "ID should be assigned")
	assert.False(t, fb.Agreed)
	assert.False(t, fb.CreatedAt.IsZero(), "CreatedAt should be set")
	assert.False(t, fb.UpdatedAt.IsZero(), "UpdatedAt should be set")
}

func TestSQLiteStore_Save_Update(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	fb := testFeedback("fp-update")
	require.NoError(t, store.Save(ctx, fb))
	originalID := fb.ID
	assert.True(t, fb.Agreed)

	fb.ChosenPrimary = "morphine"
	fb.Notes = "Updated after review"
	require.NoError(t, store.Save(ctx, fb))

	assert.Equal(t, originalID, fb.ID, "Should update existing record")

	retrieved, err := store.Get(ctx, "fp-update")
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, "morphine", retrieved.ChosenPrimary)
	assert.False(t, retrieved.Agreed)
	assert.Equal(t, "Updated after review", retrieved.Notes)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteStore_Save_Invalid(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	tests := []struct {
		name     string
		feedback *Feedback
	}{
		{"nil", nil},
		{"missing fingerprint", &Feedback{SuggestedPrimary: "morphine"}},
		{"missing suggestion", &Feedback{PlanFingerprint: "fp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, store.Save(context.Background(), tt.feedback), ErrInvalidFeedback)
		})
	}
}

func TestSQLiteStore_Get_NotFound(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	retrieved, err := store.Get(context.Background(), "missing")

	assert.NoError(t, err)
	assert.Nil(t, retrieved, "Should return nil for not found")
}

func TestSQLiteStore_ListAndDelete(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	for _, fp := range []string{"fp-1", "fp-2", "fp-3"} {
		require.NoError(t, store.Save(ctx, testFeedback(fp)))
	}

	page, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, "fp-3", page[0].PlanFingerprint, "newest first")

	rest, err := store.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)

	require.NoError(t, store.Delete(ctx, rest[0].ID))
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLiteStore_Summary(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, testFeedback("fp-a")))
	require.NoError(t, store.Save(ctx, testFeedback("fp-b")))
	override := testFeedback("fp-c")
	override.ChosenPrimary = "hydromorphone"
	require.NoError(t, store.Save(ctx, override))

	summary, err := store.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Total)
	assert.Equal(t, int64(2), summary.Agreed)
	assert.InDelta(t, 2.0/3.0, summary.Rate, 1e-9)
	assert.Equal(t, map[string]int64{"hydromorphone": 1}, summary.Overrides)
}

func TestSQLiteStore_ExportImport(t *testing.T) {
	ctx := context.Background()
	source := createTestStore(t)
	defer source.Close()

	require.NoError(t, source.Save(ctx, testFeedback("fp-x")))
	require.NoError(t, source.Save(ctx, testFeedback("fp-y")))

	var buf bytes.Buffer
	require.NoError(t, source.ExportJSON(ctx, &buf))
	assert.Contains(t, buf.String(), `"version": "1.0"`)
	assert.Contains(t, buf.String(), `"count": 2`)

	target := createTestStore(t)
	defer target.Close()
	require.NoError(t, target.Save(ctx, testFeedback("fp-x")))

	imported, skipped, err := target.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)

	_, _, err = target.ImportJSON(ctx, bytes.NewReader([]byte("not json")))
	assert.Error(t, err)
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(domainConfig("", filepath.Join(t.TempDir(), "f.db"), ""))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = NewStore(domainConfig("postgres", "", ""))
	assert.Error(t, err)

	_, err = NewStore(domainConfig("mongo", "", ""))
	assert.Error(t, err)
}
