package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Request
		wantErr bool
	}{
		{name: "bare command", payload: "mute", want: Request{Command: "mute"}},
		{name: "surrounding whitespace", payload: "  vol_up\n", want: Request{Command: "vol_up"}},
		{name: "command and number", payload: "num 23", want: Request{Command: "num", Argument: intPtr(23)}},
		{name: "json", payload: `{"command":"num","argument":7}`, want: Request{Command: "num", Argument: intPtr(7)}},
		{name: "json without argument", payload: `{"command":"power"}`, want: Request{Command: "power"}},
		{name: "empty", payload: "  ", wantErr: true},
		{name: "non-numeric argument", payload: "num two", wantErr: true},
		{name: "too many fields", payload: "num 1 2", wantErr: true},
		{name: "json without command", payload: `{"argument":1}`, wantErr: true},
		{name: "broken json", payload: `{"command":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePayload([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequestArgs(t *testing.T) {
	assert.Nil(t, Request{Command: "mute"}.Args())
	assert.Equal(t, []int{5}, Request{Command: "num", Argument: intPtr(5)}.Args())
}

func TestDeviceFromTopic(t *testing.T) {
	tests := []struct {
		topic  string
		device string
		ok     bool
	}{
		{"viera/living-room/command", "living-room", true},
		{"viera/living-room/result", "", false},
		{"viera//command", "", false},
		{"viera/a/b/command", "", false},
		{"other/living-room/command", "", false},
	}

	for _, tt := range tests {
		device, ok := DeviceFromTopic("viera", tt.topic)
		assert.Equal(t, tt.ok, ok, tt.topic)
		assert.Equal(t, tt.device, device, tt.topic)
	}
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "home/tv/+/command", CommandTopic("home/tv"))
	assert.Equal(t, "home/tv/den/result", ResultTopic("home/tv", "den"))
	assert.Equal(t, "home/tv/status", StatusTopic("home/tv"))
}
