package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveVolumeNonStrict(t *testing.T) {
	dir := t.TempDir()
	info, err := ResolveVolume(dir, false)
	require.NoError(t, err)
	assert.True(t, info.Writable)
	assert.Equal(t, dir, info.BaseDir)
}

func TestResolveVolumeCreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "picks")
	info, err := ResolveVolume(dir, false)
	require.NoError(t, err)
	assert.True(t, info.Writable)
}

func TestResolveVolumeStrictRejectsEphemeral(t *testing.T) {
	_, err := ResolveVolume("/tmp/picks-test-ephemeral", true)
	assert.Error(t, err, "tmpfs-looking paths must not hold the pick store")
}

func TestLooksEphemeral(t *testing.T) {
	assert.True(t, looksEphemeral("/tmp/data"))
	assert.True(t, looksEphemeral("/run/picks"))
	assert.False(t, looksEphemeral("/data"))
	assert.False(t, looksEphemeral("/tmpdata"))
}

func TestSettingsLoad(t *testing.T) {
	t.Setenv("PICKS_VOLUME_PATH", "/data/picks")
	t.Setenv("UPSTREAM_CALL_TIMEOUT_SECS", "7")
	t.Setenv("CACHE_TTL_SECS", "30")
	t.Setenv("EXPERT_CONSENSUS_SHADOW", "")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/data/picks", s.VolumePath)
	assert.Equal(t, "7s", s.UpstreamCallTimeout.String())
	assert.Equal(t, minCacheTTL, s.CacheTTL, "sub-floor TTLs clamp up")
	assert.True(t, s.ExpertConsensusShadow, "shadow mode is the default")

	t.Setenv("EXPERT_CONSENSUS_SHADOW", "off")
	s, err = Load()
	require.NoError(t, err)
	assert.False(t, s.ExpertConsensusShadow)
}

func TestSettingsLoadRequiresVolume(t *testing.T) {
	t.Setenv("PICKS_VOLUME_PATH", "")
	_, err := Load()
	assert.Error(t, err)
}
