package main

import (
	"fmt"
	"time"

	"github.com/pursuitlab/roadchase/internal/cache"
	"github.com/pursuitlab/roadchase/internal/config"
	"github.com/pursuitlab/roadchase/internal/logging"
	"github.com/pursuitlab/roadchase/internal/storage"
	"github.com/pursuitlab/roadchase/internal/storage/memory"
	pgstorage "github.com/pursuitlab/roadchase/internal/storage/postgres"
	sqlitestorage "github.com/pursuitlab/roadchase/internal/storage/sqlite"
	wsstorage "github.com/pursuitlab/roadchase/internal/storage/websocket"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// createStorageBackend builds the run store named by storage.type.
func createStorageBackend(storageCfg config.StorageConfig, dbCfg config.DBConfig, streamCfg config.StreamConfig, logs *logging.SlogManager) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		return pgstorage.New(dbCfg, logs), nil

	case "sqlite":
		backend, err := sqlitestorage.New(storageCfg.SQLite, logs)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		return backend, nil

	case "websocket":
		return wsstorage.New(streamCfg, logs.Logger()), nil

	case "memory", "":
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// initStorage creates and initializes the run store, adding the pose stream
// next to it when streaming is enabled. A Postgres store that cannot connect
// falls back to in-memory SQLite. Remote poses from the stream land in ghosts.
func initStorage(ghosts *cache.GhostCache) (*storage.Multi, *wsstorage.Backend, error) {
	storageCfg := config.GetStorageConfig()
	streamCfg := config.GetStreamConfig()

	primary, err := createStorageBackend(storageCfg, config.GetDBConfig(), streamCfg, SlogManager)
	if err != nil {
		return nil, nil, err
	}

	stream, _ := primary.(*wsstorage.Backend)
	if stream == nil && streamCfg.Enabled {
		stream = wsstorage.New(streamCfg, SlogManager.Logger())
	}
	if stream != nil && ghosts != nil {
		ghosts.IgnoreSelf(streamCfg.PlayerID)
		stream.OnRemotePoses(func(poses []core.RemotePose) {
			ghosts.Update(poses, time.Now())
		})
	}

	if err := primary.Init(); err != nil {
		if storageCfg.Type != "postgres" {
			return nil, nil, fmt.Errorf("failed to initialize %s storage: %w", storageCfg.Type, err)
		}
		Logger.Error("Failed to connect to Postgres, falling back to SQLite", "error", err)
		_ = primary.Close()
		storageCfg.Type = "sqlite"
		if primary, err = createStorageBackend(storageCfg, config.DBConfig{}, streamCfg, SlogManager); err != nil {
			return nil, nil, err
		}
		if err := primary.Init(); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize sqlite storage: %w", err)
		}
	}

	backends := []storage.Backend{primary}
	if stream != nil && storage.Backend(stream) != primary {
		if err := stream.Init(); err != nil {
			_ = primary.Close()
			return nil, nil, fmt.Errorf("failed to connect pose stream: %w", err)
		}
		backends = append(backends, stream)
	}

	Logger.Info("Storage backend initialized", "type", storageCfg.Type, "stream", stream != nil)
	return storage.NewMulti(backends...), stream, nil
}
