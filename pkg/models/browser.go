package models

import "time"

// BrowserStatus represents the current state of a managed browser session.
type BrowserStatus string

const (
	StatusIdle   BrowserStatus = "IDLE"
	StatusActive BrowserStatus = "ACTIVE"
	StatusClosed BrowserStatus = "CLOSED"
)

// Proxy method/type values understood by the control API.
const (
	ProxyMethodNone   = "no_proxy"
	ProxyMethodCustom = "custom"
	ProxyTypeNone     = "noproxy"
	ProxyTypeHTTP     = "http"
	ProxyTypeSocks5   = "socks5"
)

// ProxyConfig describes how a session's browser reaches the network.
type ProxyConfig struct {
	Method   string `json:"method"`
	Type     string `json:"type"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// FingerprintConfig carries the fingerprint surface of a session. The
// core version selects which browser kernel the control plane boots.
type FingerprintConfig struct {
	CoreVersion string `json:"coreVersion"`
}

// Browser is the control API's record of a session. The id is issued by
// the API on create; the orchestrator only ever holds the id.
type Browser struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Remark      string            `json:"remark,omitempty"`
	Proxy       ProxyConfig       `json:"proxy"`
	Fingerprint FingerprintConfig `json:"fingerprint"`
	Status      BrowserStatus     `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// CreateBrowserRequest is the payload for POST /browser/update. An
// empty ID creates a session; a known ID replaces its fields.
type CreateBrowserRequest struct {
	ID          string             `json:"id,omitempty"`
	Name        string             `json:"name,omitempty"`
	Remark      string             `json:"remark,omitempty"`
	Proxy       *ProxyConfig       `json:"proxy,omitempty"`
	Fingerprint *FingerprintConfig `json:"fingerprint,omitempty"`
}

// UpdateFields is the partial-update payload for POST
// /browser/update/partial. Nil fields are omitted from the wire
// entirely rather than sent as null.
type UpdateFields struct {
	Name        *string            `json:"name,omitempty"`
	Remark      *string            `json:"remark,omitempty"`
	Proxy       *ProxyConfig       `json:"proxy,omitempty"`
	Fingerprint *FingerprintConfig `json:"fingerprint,omitempty"`
}

// UpdateBrowserRequest is the full body for a bulk partial update.
type UpdateBrowserRequest struct {
	IDs []string `json:"ids"`
	UpdateFields
}

// OpenResult is the raw data payload of POST /browser/open. HTTP is the
// host:port debug endpoint as advertised by the control plane; it is a
// starting hypothesis, not a negotiated WebSocket URL — normalization
// and discovery are the resolver's job.
type OpenResult struct {
	HTTP   string `json:"http"`
	WS     string `json:"ws,omitempty"`
	Driver string `json:"driver,omitempty"`
}
