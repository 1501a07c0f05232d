package annotation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"score-annotator/internal/config"
	"score-annotator/internal/database"
	"score-annotator/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", SQLitePath: ":memory:"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	return NewStore(db)
}

func validInput() Input {
	return Input{
		SongID:   "song-1",
		UserID:   "p1",
		UserName: "Ann",
		SVGPath:  "M0,0 L10,10",
		Color:    "#ff0000",
		Tool:     "pen",
	}
}

func TestStore_Create(t *testing.T) {
	store := newTestStore(t)

	a, err := store.Create(context.Background(), validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, 1, a.Version)
	assert.Equal(t, model.PathChecksum("M0,0 L10,10"), a.Checksum)
	assert.True(t, a.Intact())
	assert.False(t, a.CreatedAt.IsZero())
}

func TestStore_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{name: "missing song", mutate: func(in *Input) { in.SongID = "" }},
		{name: "missing user", mutate: func(in *Input) { in.UserID = "" }},
		{name: "missing path", mutate: func(in *Input) { in.SVGPath = "" }},
	}

	store := newTestStore(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			_, err := store.Create(context.Background(), in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestStore_ListBySongExcludesSoftDeleted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	kept, err := store.Create(ctx, validInput())
	require.NoError(t, err)
	removed, err := store.Create(ctx, validInput())
	require.NoError(t, err)

	other := validInput()
	other.SongID = "song-2"
	_, err = store.Create(ctx, other)
	require.NoError(t, err)

	require.NoError(t, store.db.Delete(removed).Error)

	list, err := store.ListBySong(ctx, "song-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, kept.ID, list[0].ID)
}

func TestStore_CountBySong(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, validInput())
		require.NoError(t, err)
	}
	other := validInput()
	other.SongID = "song-2"
	_, err := store.Create(ctx, other)
	require.NoError(t, err)

	counts, err := store.CountBySong(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"song-1": 3, "song-2": 1}, counts)
}
