package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/muurk/viera/internal/remote"
)

// Request is one command addressed to a device
type Request struct {
	Command  string `json:"command"`
	Argument *int   `json:"argument,omitempty"`
}

// Args returns the request argument as Send arguments
func (r Request) Args() []int {
	if r.Argument == nil {
		return nil
	}
	return []int{*r.Argument}
}

// Result is published after each request
type Result struct {
	Command  string `json:"command,omitempty"`
	Argument *int   `json:"argument,omitempty"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

func newResult(req Request, err error) Result {
	res := Result{Command: req.Command, Argument: req.Argument, OK: err == nil}
	if err != nil {
		res.Error = err.Error()
		var e *remote.Error
		if errors.As(err, &e) {
			res.Kind = e.Kind.String()
		}
	}
	return res
}

// ParsePayload decodes a command payload. Accepted forms are a bare
// command name ("mute"), a name and a number ("num 23") and a JSON object
// ({"command":"num","argument":23}).
func ParsePayload(payload []byte) (Request, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return Request{}, fmt.Errorf("empty payload")
	}

	if strings.HasPrefix(text, "{") {
		var req Request
		if err := json.Unmarshal([]byte(text), &req); err != nil {
			return Request{}, fmt.Errorf("invalid JSON payload: %w", err)
		}
		req.Command = strings.TrimSpace(req.Command)
		if req.Command == "" {
			return Request{}, fmt.Errorf("payload has no command")
		}
		return req, nil
	}

	fields := strings.Fields(text)
	switch len(fields) {
	case 1:
		return Request{Command: fields[0]}, nil
	case 2:
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return Request{}, fmt.Errorf("invalid argument %q: %w", fields[1], err)
		}
		return Request{Command: fields[0], Argument: &n}, nil
	default:
		return Request{}, fmt.Errorf("expected \"command [number]\", got %q", text)
	}
}

// CommandTopic is the subscription filter for all devices
func CommandTopic(prefix string) string {
	return prefix + "/+/command"
}

// ResultTopic is where results for device are published
func ResultTopic(prefix, device string) string {
	return prefix + "/" + device + "/result"
}

// StatusTopic carries the bridge's online/offline state
func StatusTopic(prefix string) string {
	return prefix + "/status"
}

// DeviceFromTopic extracts the device name from a command topic
func DeviceFromTopic(prefix, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return "", false
	}
	device, ok := strings.CutSuffix(rest, "/command")
	if !ok || device == "" || strings.Contains(device, "/") {
		return "", false
	}
	return device, true
}
