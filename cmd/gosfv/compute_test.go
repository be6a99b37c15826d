package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wishwanderer/gosfv/pkg/gosfv/config"
	"github.com/Wishwanderer/gosfv/pkg/gosfv/types"
)

func TestBuildEngineOpensConfiguredCache(t *testing.T) {
	cfg := &config.Config{}
	require.NoError(t, cfg.Validate())
	cfg.Cache.Enabled = true
	cfg.Cache.Path = filepath.Join(t.TempDir(), "digests")

	eng, closeCache := buildEngine(cfg, types.AlgXXH3)
	t.Cleanup(closeCache)

	require.NotNil(t, eng)
	assert.DirExists(t, cfg.Cache.Path)
}

func TestBuildEngineWithoutCache(t *testing.T) {
	cfg := &config.Config{BufferSize: "128K", LargeFileThreshold: "2MiB"}
	require.NoError(t, cfg.Validate())
	cfg.Cache.Path = filepath.Join(t.TempDir(), "digests")

	eng, closeCache := buildEngine(cfg, types.AlgSHA256)
	t.Cleanup(closeCache)

	require.NotNil(t, eng)
	assert.NoDirExists(t, cfg.Cache.Path, "disabled cache must not be opened")
}
