package control

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/orbiterhq/orbiter/pkg/models"
)

// fakeControlAPI records the last request body per path and serves
// canned envelopes.
type fakeControlAPI struct {
	bodies    map[string]json.RawMessage
	responses map[string]string
	calls     int
}

func newFakeControlAPI() *fakeControlAPI {
	return &fakeControlAPI{
		bodies:    make(map[string]json.RawMessage),
		responses: make(map[string]string),
	}
}

func (f *fakeControlAPI) serve(t *testing.T) *httptest.Server {
	t.Helper()
	r := mux.NewRouter()
	r.PathPrefix("/browser/").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		f.bodies[req.URL.Path] = body
		f.calls++

		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

		resp, ok := f.responses[req.URL.Path]
		if !ok {
			resp = `{"success": true}`
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, resp)
	}).Methods("POST")

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL string) *Client {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	return NewClient(cfg, zap.NewNop().Sugar())
}

func TestCreate_FillsDefaults(t *testing.T) {
	api := newFakeControlAPI()
	srv := api.serve(t)
	api.responses["/browser/update"] = `{"success": true, "data": {"id": "s-1"}}`

	client := newTestClient(srv.URL)
	id, err := client.Create(context.Background(), models.CreateBrowserRequest{})
	require.NoError(t, err)
	assert.Equal(t, "s-1", id)

	var sent models.CreateBrowserRequest
	require.NoError(t, json.Unmarshal(api.bodies["/browser/update"], &sent))
	assert.Equal(t, "orbiter-session", sent.Name)
	require.NotNil(t, sent.Proxy)
	assert.Equal(t, models.ProxyMethodNone, sent.Proxy.Method)
	assert.Equal(t, models.ProxyTypeNone, sent.Proxy.Type)
	require.NotNil(t, sent.Fingerprint)
	assert.Equal(t, "130", sent.Fingerprint.CoreVersion)
}

func TestCreate_CallerFieldsAreKept(t *testing.T) {
	api := newFakeControlAPI()
	srv := api.serve(t)
	api.responses["/browser/update"] = `{"success": true, "data": {"id": "s-2"}}`

	client := newTestClient(srv.URL)
	_, err := client.Create(context.Background(), models.CreateBrowserRequest{
		Name:        "crawler-7",
		Proxy:       &models.ProxyConfig{Method: models.ProxyMethodCustom, Type: models.ProxyTypeSocks5, Host: "10.0.0.2", Port: 1080},
		Fingerprint: &models.FingerprintConfig{CoreVersion: "134"},
	})
	require.NoError(t, err)

	var sent models.CreateBrowserRequest
	require.NoError(t, json.Unmarshal(api.bodies["/browser/update"], &sent))
	assert.Equal(t, "crawler-7", sent.Name)
	assert.Equal(t, "10.0.0.2", sent.Proxy.Host)
	assert.Equal(t, "134", sent.Fingerprint.CoreVersion)
}

func TestCreate_ServerFailureSurfacesAsAPIError(t *testing.T) {
	api := newFakeControlAPI()
	srv := api.serve(t)
	api.responses["/browser/update"] = `{"success": false, "message": "quota exceeded"}`

	client := newTestClient(srv.URL)
	_, err := client.Create(context.Background(), models.CreateBrowserRequest{})

	var aerr *APIError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "quota exceeded", aerr.Message)
}

func TestOpen_DecodesEndpointFields(t *testing.T) {
	api := newFakeControlAPI()
	srv := api.serve(t)
	api.responses["/browser/open"] = `{"success": true, "data": {"http": "127.0.0.1:9222", "driver": "/usr/local/bin/chromedriver"}}`

	client := newTestClient(srv.URL)
	res, err := client.Open(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9222", res.HTTP)
	assert.Equal(t, "/usr/local/bin/chromedriver", res.Driver)

	var sent map[string]string
	require.NoError(t, json.Unmarshal(api.bodies["/browser/open"], &sent))
	assert.Equal(t, "s-1", sent["id"])
}

func TestUpdate_EmptyIDsFailsWithoutNetworkCall(t *testing.T) {
	api := newFakeControlAPI()
	srv := api.serve(t)

	client := newTestClient(srv.URL)
	err := client.Update(context.Background(), nil, models.UpdateFields{})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ids", verr.Field)
	assert.Zero(t, api.calls, "validation must happen before any network call")
}

func TestUpdate_OmitsUnsetFields(t *testing.T) {
	api := newFakeControlAPI()
	srv := api.serve(t)

	client := newTestClient(srv.URL)
	remark := "rotated"
	err := client.Update(context.Background(), []string{"a", "b"}, models.UpdateFields{Remark: &remark})
	require.NoError(t, err)

	var sent map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(api.bodies["/browser/update/partial"], &sent))
	assert.Contains(t, sent, "ids")
	assert.Contains(t, sent, "remark")
	assert.NotContains(t, sent, "name", "unset fields must be omitted, not sent as null")
	assert.NotContains(t, sent, "proxy")
	assert.NotContains(t, sent, "fingerprint")
}

func TestCloseAndDelete_PostSessionID(t *testing.T) {
	api := newFakeControlAPI()
	srv := api.serve(t)

	client := newTestClient(srv.URL)
	require.NoError(t, client.Close(context.Background(), "s-9"))
	require.NoError(t, client.Delete(context.Background(), "s-9"))

	for _, path := range []string{"/browser/close", "/browser/delete"} {
		var sent map[string]string
		require.NoError(t, json.Unmarshal(api.bodies[path], &sent))
		assert.Equal(t, "s-9", sent["id"])
	}
}

func TestClient_EmptyResponseBodyIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// no body at all
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(srv.URL)
	err := client.Close(context.Background(), "s-1")

	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}
