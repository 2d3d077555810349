package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEndpoints struct {
	addrs map[string]string
}

func (f *fakeEndpoints) DebugAddr(id string) (string, error) {
	addr, ok := f.addrs[id]
	if !ok {
		return "", errors.New("session not found: " + id)
	}
	return addr, nil
}

// fakeBrowser serves /json/version discovery and echoes CDP frames on
// its negotiated /devtools/browser path, like headless-shell does.
func fakeBrowser(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"webSocketDebuggerUrl": "ws://%s/devtools/browser/fake-id"}`, r.Host)
	})
	mux.HandleFunc("/devtools/browser/fake-id", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	})
	return srv
}

func newProxyServer(t *testing.T, endpoints Endpoints) *httptest.Server {
	t.Helper()
	s := NewServer(endpoints, zap.NewNop().Sugar())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/browser/ws/")
		s.HandleDebugConnection(w, r, id)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHandleDebugConnection_BridgesFrames(t *testing.T) {
	browser := fakeBrowser(t)
	debugAddr := browser.Listener.Addr().String()

	proxySrv := newProxyServer(t, &fakeEndpoints{addrs: map[string]string{"sess-1": debugAddr}})

	wsURL := "ws" + strings.TrimPrefix(proxySrv.URL, "http") + "/browser/ws/sess-1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	payload := `{"id":1,"method":"Target.getTargets"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, echoed, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, payload, string(echoed))
}

func TestHandleDebugConnection_UnknownSessionIs404(t *testing.T) {
	proxySrv := newProxyServer(t, &fakeEndpoints{addrs: map[string]string{}})

	resp, err := http.Get(proxySrv.URL + "/browser/ws/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleDebugConnection_DeadBrowserIsBadGateway(t *testing.T) {
	proxySrv := newProxyServer(t, &fakeEndpoints{addrs: map[string]string{"sess-1": "127.0.0.1:1"}})

	resp, err := http.Get(proxySrv.URL + "/browser/ws/sess-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}
