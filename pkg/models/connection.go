package models

import "time"

// Viewport is the emulated page size.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ConnectionConfig is the merged automation configuration for one
// connection attempt. BrowserWSEndpoint always carries the resolved
// debugger address; BrowserURL stays empty so the automation layer
// never has two connection modes to choose from.
type ConnectionConfig struct {
	Headless            bool          `json:"headless"`
	Args                []string      `json:"args,omitempty"`
	AutoSolveChallenges bool          `json:"autoSolveChallenges"`
	Viewport            Viewport      `json:"viewport"`
	NavigationTimeout   time.Duration `json:"navigationTimeout"`
	BrowserWSEndpoint   string        `json:"browserWSEndpoint,omitempty"`
	BrowserURL          string        `json:"browserURL,omitempty"`
}

// ConnectOverrides are caller-supplied deviations from the default
// connection config. Nil means "keep the default".
type ConnectOverrides struct {
	Headless            *bool
	Args                []string
	AutoSolveChallenges *bool
	Viewport            *Viewport
	NavigationTimeout   time.Duration
}

// DefaultConnectionConfig returns the static baseline every connection
// attempt starts from.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		Headless:            true,
		Args:                []string{"--no-sandbox", "--disable-dev-shm-usage"},
		AutoSolveChallenges: true,
		Viewport:            Viewport{Width: 1920, Height: 1080},
		NavigationTimeout:   30 * time.Second,
	}
}

// Merge applies overrides field by field: scalars replace the default
// when set, the nested viewport merges per dimension rather than being
// swapped wholesale. The receiver is not modified.
func (c ConnectionConfig) Merge(o *ConnectOverrides) ConnectionConfig {
	if o == nil {
		return c
	}
	if o.Headless != nil {
		c.Headless = *o.Headless
	}
	if o.Args != nil {
		c.Args = o.Args
	}
	if o.AutoSolveChallenges != nil {
		c.AutoSolveChallenges = *o.AutoSolveChallenges
	}
	if o.Viewport != nil {
		if o.Viewport.Width > 0 {
			c.Viewport.Width = o.Viewport.Width
		}
		if o.Viewport.Height > 0 {
			c.Viewport.Height = o.Viewport.Height
		}
	}
	if o.NavigationTimeout > 0 {
		c.NavigationTimeout = o.NavigationTimeout
	}
	return c
}
