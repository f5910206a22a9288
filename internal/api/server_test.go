package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/groupwatch/internal/api/jsonrpcx"
	"github.com/danghamo/groupwatch/internal/domain/shared"
	"github.com/danghamo/groupwatch/internal/tracker"
	"github.com/danghamo/groupwatch/pkg/logger"
	"github.com/danghamo/groupwatch/pkg/sse"
)

type fakeController struct {
	view      tracker.View
	sharing   []bool
	radius    []int
	dismissed []string
	retries   int
	err       error
	deleteErr error
}

func (c *fakeController) View() *tracker.View {
	v := c.view
	return &v
}

func (c *fakeController) SetSharing(_ context.Context, on bool) error {
	c.sharing = append(c.sharing, on)
	c.view.Sharing = on
	return c.err
}

func (c *fakeController) SetRangeRadius(_ context.Context, meters int) error {
	c.radius = append(c.radius, meters)
	return c.err
}

func (c *fakeController) SetRefreshInterval(_ context.Context, _ int) error {
	return c.err
}

func (c *fakeController) DismissAlert(_ context.Context, key string) error {
	c.dismissed = append(c.dismissed, key)
	return c.err
}

func (c *fakeController) RetryPosition(_ context.Context) error {
	c.retries++
	return c.err
}

func (c *fakeController) Delete(_ context.Context) error {
	return c.deleteErr
}

type rpcBody struct {
	Result json.RawMessage `json:"result"`
	Error  *jsonrpcx.Error `json:"error"`
}

func newTestServer(t *testing.T, ctrl *fakeController) http.Handler {
	t.Helper()
	broadcaster := sse.NewSSEBroadcaster(logger.NewNop())
	t.Cleanup(broadcaster.Close)

	return NewServer(ServerConfig{
		Host:           "localhost",
		Port:           0,
		AllowedOrigins: []string{"http://localhost:5173"},
	}, ctrl, broadcaster, logger.NewNop()).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, rpcBody) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out rpcBody
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestServer_State(t *testing.T) {
	ctrl := &fakeController{view: tracker.View{GroupID: "g1", RangeRadius: 100}}
	h := newTestServer(t, ctrl)

	rec, body := do(t, h, http.MethodGet, "/state", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view tracker.View
	require.NoError(t, json.Unmarshal(body.Result, &view))
	assert.Equal(t, "g1", view.GroupID)
	assert.Equal(t, 100, view.RangeRadius)
}

func TestServer_Sharing(t *testing.T) {
	ctrl := &fakeController{view: tracker.View{Sharing: true}}
	h := newTestServer(t, ctrl)

	rec, body := do(t, h, http.MethodPost, "/sharing", `{"enabled": false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []bool{false}, ctrl.sharing)

	var view tracker.View
	require.NoError(t, json.Unmarshal(body.Result, &view))
	assert.False(t, view.Sharing)

	rec, body = do(t, h, http.MethodPost, "/sharing", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, jsonrpcx.InvalidParams, body.Error.Code)
	assert.Len(t, ctrl.sharing, 1)
}

func TestServer_BadJSON(t *testing.T) {
	h := newTestServer(t, &fakeController{})

	rec, body := do(t, h, http.MethodPost, "/radius", `{"meters":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, jsonrpcx.ParseError, body.Error.Code)
}

func TestServer_InvalidInputFromController(t *testing.T) {
	ctrl := &fakeController{err: shared.ErrInvalidInput("range radius must be one of [100 200 300]")}
	h := newTestServer(t, ctrl)

	rec, body := do(t, h, http.MethodPost, "/radius", `{"meters": 150}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, jsonrpcx.InvalidParams, body.Error.Code)
	assert.Equal(t, []int{150}, ctrl.radius)
}

func TestServer_DismissAndRetry(t *testing.T) {
	ctrl := &fakeController{}
	h := newTestServer(t, ctrl)

	rec, _ := do(t, h, http.MethodPost, "/alerts/dismiss", `{"key": "ann-2026-10-18T12:00:00Z"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ann-2026-10-18T12:00:00Z"}, ctrl.dismissed)

	rec, _ = do(t, h, http.MethodPost, "/alerts/dismiss", `{"index": 0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, ctrl.dismissed, 1)

	rec, _ = do(t, h, http.MethodPost, "/position/retry", ``)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ctrl.retries)
}

func TestServer_Delete(t *testing.T) {
	ctrl := &fakeController{
		deleteErr: shared.NewDomainErrorf(shared.ErrCodeDeleteFailed, "failed to delete group: %v", errors.New("status 500")),
	}
	h := newTestServer(t, ctrl)

	rec, body := do(t, h, http.MethodDelete, "/group", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "Failed to delete group. Please try again.", body.Error.Message)

	ctrl.deleteErr = nil
	rec, body = do(t, h, http.MethodDelete, "/group", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted": true}`, string(body.Result))
}

func TestServer_MethodNotAllowed(t *testing.T) {
	h := newTestServer(t, &fakeController{})

	rec, _ := do(t, h, http.MethodGet, "/sharing", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Health(t *testing.T) {
	h := newTestServer(t, &fakeController{view: tracker.View{Ended: true}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","session":"ended","clients":0}`, rec.Body.String())
}
