package models

// DebugInfo is the resolver's output for one open of a session. It is a
// short-lived value: a re-open may yield a different address, and any
// on-disk copy is a cache, never the source of truth.
type DebugInfo struct {
	DriverPath      string `json:"driverPath,omitempty"`
	DebuggerAddress string `json:"debuggerAddress"`
	ChromePort      string `json:"chromePort"`
}
