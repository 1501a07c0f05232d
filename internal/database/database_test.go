package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"score-annotator/internal/config"
	"score-annotator/internal/model"
)

func TestConnect_SQLite(t *testing.T) {
	db, err := Connect(config.DatabaseConfig{Driver: "sqlite", SQLitePath: ":memory:"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { Close(db) })

	require.NoError(t, Ping(db))
	assert.True(t, db.Migrator().HasTable(&model.Annotation{}))
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "oracle"}, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, Close(nil))
}
