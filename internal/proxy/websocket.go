// Package proxy pipes CDP WebSocket traffic between automation clients
// and the browser containers the control plane hosts.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Endpoints resolves session ids to live DevTools addresses.
type Endpoints interface {
	DebugAddr(id string) (string, error)
}

// Server proxies debug connections for open sessions.
type Server struct {
	endpoints Endpoints
	log       *zap.SugaredLogger
}

// NewServer creates a debug proxy.
func NewServer(endpoints Endpoints, log *zap.SugaredLogger) *Server {
	return &Server{endpoints: endpoints, log: log}
}

// HandleDebugConnection upgrades the request and bridges it to the
// session's browser. headless-shell only accepts its negotiated
// /devtools/browser/<uuid> path, so the proxy runs its own
// /json/version discovery before dialing.
func (s *Server) HandleDebugConnection(w http.ResponseWriter, r *http.Request, sessionID string) {
	debugAddr, err := s.endpoints.DebugAddr(sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	browserURL, err := s.discoverDebuggerURL(r.Context(), debugAddr)
	if err != nil {
		s.log.Errorw("debugger discovery failed", "session", sessionID, "addr", debugAddr, "err", err)
		http.Error(w, "browser debug endpoint unavailable", http.StatusBadGateway)
		return
	}

	clientConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorw("failed to upgrade connection", "session", sessionID, "err", err)
		return
	}
	defer clientConn.Close()

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	browserConn, _, err := websocket.DefaultDialer.DialContext(ctx, browserURL, nil)
	if err != nil {
		s.log.Errorw("failed to connect to browser", "session", sessionID, "url", browserURL, "err", err)
		clientConn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("error connecting: %v", err)))
		return
	}
	defer browserConn.Close()

	s.log.Infow("debug client attached", "session", sessionID)

	errChan := make(chan error, 2)

	go func() {
		errChan <- s.proxyMessages(clientConn, browserConn)
	}()
	go func() {
		errChan <- s.proxyMessages(browserConn, clientConn)
	}()

	if err := <-errChan; err != nil && err != io.EOF {
		s.log.Debugw("proxy closed", "session", sessionID, "err", err)
	}

	s.log.Infow("debug client detached", "session", sessionID)
}

// discoverDebuggerURL asks the browser for its canonical WebSocket URL.
func (s *Server) discoverDebuggerURL(ctx context.Context, debugAddr string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+debugAddr+"/json/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return "", err
	}
	if version.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("no webSocketDebuggerUrl in discovery response")
	}
	return version.WebSocketDebuggerURL, nil
}

func (s *Server) proxyMessages(src, dst *websocket.Conn) error {
	for {
		messageType, message, err := src.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Debugw("websocket read error", "err", err)
			}
			return err
		}

		if err := dst.WriteMessage(messageType, message); err != nil {
			return err
		}
	}
}
