package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/viera/internal/config"
	"github.com/muurk/viera/internal/remote"
)

const testServiceType = "urn:panasonic-com:service:p00NetworkControl:1"

// fakeTV records the key identifiers it receives
type fakeTV struct {
	mu     sync.Mutex
	keys   []string
	status int
}

func (tv *fakeTV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	text := string(body)
	start := strings.Index(text, "<X_KeyEvent>")
	end := strings.Index(text, "</X_KeyEvent>")
	if start >= 0 && end > start {
		tv.mu.Lock()
		tv.keys = append(tv.keys, text[start+len("<X_KeyEvent>"):end])
		tv.mu.Unlock()
	}
	if tv.status != 0 {
		w.WriteHeader(tv.status)
		return
	}
	_, _ = w.Write([]byte("<ok/>"))
}

func (tv *fakeTV) received() []string {
	tv.mu.Lock()
	defer tv.mu.Unlock()
	return append([]string(nil), tv.keys...)
}

func setupServer(t *testing.T, tv *fakeTV) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := config.NewRegistry()
	reg.Preferences.MinInterval = 0

	if tv != nil {
		ts := httptest.NewServer(tv)
		t.Cleanup(ts.Close)

		u, err := url.Parse(ts.URL)
		require.NoError(t, err)

		device := remote.NewDevice(u.Host, ts.URL+"/nrc/control_0", testServiceType)
		device.FriendlyName = "Living Room"
		reg.RememberDevice("living-room", device)
	}

	return NewServer("127.0.0.1:0", reg)
}

func do(t *testing.T, s *Server, method, target string) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	s.Handler().ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w.Code, body
}

func TestHealthCheck(t *testing.T) {
	s := setupServer(t, nil)

	code, body := do(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["version"])
}

func TestListCommands(t *testing.T) {
	s := setupServer(t, nil)

	code, body := do(t, s, http.MethodGet, "/commands")
	require.Equal(t, http.StatusOK, code)

	commands, ok := body["commands"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "NRC_POWER-ONOFF", commands["power"])
	assert.Equal(t, "NRC_D{}-ONOFF", commands["num"])
}

func TestListDevices(t *testing.T) {
	s := setupServer(t, &fakeTV{})

	code, body := do(t, s, http.MethodGet, "/devices")
	require.Equal(t, http.StatusOK, code)

	devices, ok := body["devices"].([]any)
	require.True(t, ok)
	require.Len(t, devices, 1)

	device := devices[0].(map[string]any)
	assert.Equal(t, "living-room", device["name"])
	assert.Equal(t, "Living Room", device["friendly_name"])
	assert.Equal(t, testServiceType, device["service_type"])
}

func TestGetDevice_NotFound(t *testing.T) {
	s := setupServer(t, nil)

	code, body := do(t, s, http.MethodGet, "/devices/attic")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["ok"])
}

func TestSendCommand(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		tvStatus   int
		wantStatus int
		wantKeys   []string
	}{
		{
			name:       "plain command",
			target:     "/devices/living-room/commands/power",
			wantStatus: http.StatusOK,
			wantKeys:   []string{"NRC_POWER-ONOFF"},
		},
		{
			name:       "numeric command",
			target:     "/devices/living-room/commands/num?arg=42",
			wantStatus: http.StatusOK,
			wantKeys:   []string{"NRC_D4-ONOFF", "NRC_D2-ONOFF"},
		},
		{
			name:       "unknown device",
			target:     "/devices/attic/commands/power",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "unknown command",
			target:     "/devices/living-room/commands/self_destruct",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "non-integer argument",
			target:     "/devices/living-room/commands/num?arg=four",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing argument",
			target:     "/devices/living-room/commands/num",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "negative argument",
			target:     "/devices/living-room/commands/num?arg=-1",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unexpected argument",
			target:     "/devices/living-room/commands/mute?arg=1",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "device failure",
			target:     "/devices/living-room/commands/power",
			tvStatus:   http.StatusInternalServerError,
			wantStatus: http.StatusBadGateway,
			wantKeys:   []string{"NRC_POWER-ONOFF"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tv := &fakeTV{status: tt.tvStatus}
			s := setupServer(t, tv)

			code, body := do(t, s, http.MethodPost, tt.target)
			assert.Equal(t, tt.wantStatus, code, body)
			assert.Equal(t, tt.wantStatus == http.StatusOK, body["ok"])
			assert.Equal(t, tt.wantKeys, tv.received())
		})
	}
}

func TestSendCommand_ReportsErrorKind(t *testing.T) {
	s := setupServer(t, &fakeTV{status: http.StatusServiceUnavailable})

	code, body := do(t, s, http.MethodPost, "/devices/living-room/commands/mute")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, remote.KindHTTP.String(), body["kind"])
}

func TestDeviceHandlesAreReused(t *testing.T) {
	s := setupServer(t, &fakeTV{})

	first, err := s.device("living-room")
	require.NoError(t, err)
	second, err := s.device("living-room")
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestSendCommand_ClientGone(t *testing.T) {
	tv := &fakeTV{}
	s := setupServer(t, tv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/devices/living-room/commands/power", nil).WithContext(ctx)
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, statusClientClosedRequest, w.Code)
	assert.Empty(t, tv.received())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown device", fmt.Errorf("%w: attic", config.ErrDeviceNotFound), http.StatusNotFound},
		{"unknown command", &remote.Error{Kind: remote.KindUnknownCommand}, http.StatusNotFound},
		{"invalid argument", &remote.Error{Kind: remote.KindInvalidArgument}, http.StatusBadRequest},
		{"canceled kind", remote.NewNetworkError("canceled", "tv", context.Canceled), statusClientClosedRequest},
		{"bare cancel", context.Canceled, statusClientClosedRequest},
		{"timeout", remote.NewNetworkError("slow", "tv", context.DeadlineExceeded), http.StatusBadGateway},
		{"device status", remote.NewHTTPError(500, "boom", "tv"), http.StatusBadGateway},
		{"other", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
