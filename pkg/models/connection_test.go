package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConnectionConfig(t *testing.T) {
	cfg := DefaultConnectionConfig()

	assert.True(t, cfg.Headless)
	assert.True(t, cfg.AutoSolveChallenges)
	assert.Equal(t, Viewport{Width: 1920, Height: 1080}, cfg.Viewport)
	assert.Equal(t, 30*time.Second, cfg.NavigationTimeout)
	assert.Contains(t, cfg.Args, "--no-sandbox")
	assert.Empty(t, cfg.BrowserWSEndpoint)
	assert.Empty(t, cfg.BrowserURL)
}

func TestMerge_NilOverridesKeepsDefaults(t *testing.T) {
	cfg := DefaultConnectionConfig()
	assert.Equal(t, cfg, cfg.Merge(nil))
}

func TestMerge_ScalarsReplace(t *testing.T) {
	headless := false
	solve := false
	got := DefaultConnectionConfig().Merge(&ConnectOverrides{
		Headless:            &headless,
		AutoSolveChallenges: &solve,
		Args:                []string{"--incognito"},
		NavigationTimeout:   5 * time.Second,
	})

	assert.False(t, got.Headless)
	assert.False(t, got.AutoSolveChallenges)
	assert.Equal(t, []string{"--incognito"}, got.Args)
	assert.Equal(t, 5*time.Second, got.NavigationTimeout)
}

func TestMerge_ViewportMergesPerDimension(t *testing.T) {
	got := DefaultConnectionConfig().Merge(&ConnectOverrides{
		Viewport: &Viewport{Width: 1280},
	})
	assert.Equal(t, Viewport{Width: 1280, Height: 1080}, got.Viewport)

	got = DefaultConnectionConfig().Merge(&ConnectOverrides{
		Viewport: &Viewport{Height: 720},
	})
	assert.Equal(t, Viewport{Width: 1920, Height: 720}, got.Viewport)
}

func TestMerge_ZeroTimeoutKeepsDefault(t *testing.T) {
	got := DefaultConnectionConfig().Merge(&ConnectOverrides{})
	assert.Equal(t, 30*time.Second, got.NavigationTimeout)
}

func TestMerge_DoesNotModifyReceiver(t *testing.T) {
	headless := false
	base := DefaultConnectionConfig()
	_ = base.Merge(&ConnectOverrides{Headless: &headless})
	assert.True(t, base.Headless)
}
