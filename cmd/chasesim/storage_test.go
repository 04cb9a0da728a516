package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pursuitlab/roadchase/internal/config"
	"github.com/pursuitlab/roadchase/internal/logging"
	"github.com/pursuitlab/roadchase/internal/storage/memory"
	pgstorage "github.com/pursuitlab/roadchase/internal/storage/postgres"
	sqlitestorage "github.com/pursuitlab/roadchase/internal/storage/sqlite"
	wsstorage "github.com/pursuitlab/roadchase/internal/storage/websocket"
)

func TestCreateStorageBackend(t *testing.T) {
	logs := logging.NewSlogManager()
	streamCfg := config.StreamConfig{URL: "ws://127.0.0.1:1/chase", PlayerID: "p1"}

	tests := []struct {
		typ  string
		want any
	}{
		{"", &memory.Backend{}},
		{"memory", &memory.Backend{}},
		{"postgres", &pgstorage.Backend{}},
		{"sqlite", &sqlitestorage.Backend{}},
		{"websocket", &wsstorage.Backend{}},
	}
	for _, tt := range tests {
		t.Run("type="+tt.typ, func(t *testing.T) {
			b, err := createStorageBackend(config.StorageConfig{Type: tt.typ}, config.DBConfig{}, streamCfg, logs)
			require.NoError(t, err)
			assert.IsType(t, tt.want, b)
		})
	}
}

func TestCreateStorageBackend_UnknownType(t *testing.T) {
	_, err := createStorageBackend(config.StorageConfig{Type: "cassandra"}, config.DBConfig{}, config.StreamConfig{}, logging.NewSlogManager())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cassandra")
}
