package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/viera/internal/remote"
)

type published struct {
	topic  string
	result Result
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []published
}

func (p *fakePublisher) Publish(topic string, payload []byte) error {
	var res Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, published{topic: topic, result: res})
	return nil
}

func (p *fakePublisher) snapshot() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.messages...)
}

type fakeSender struct {
	mu    sync.Mutex
	calls []Request
	delay time.Duration
	err   error
}

func (s *fakeSender) Send(ctx context.Context, name string, args ...int) ([]byte, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	req := Request{Command: name}
	if len(args) > 0 {
		req.Argument = &args[0]
	}
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	return nil, s.err
}

func (s *fakeSender) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.calls))
	for i, c := range s.calls {
		names[i] = c.Command
	}
	return names
}

func TestBridge_DispatchesInOrder(t *testing.T) {
	sender := &fakeSender{delay: 5 * time.Millisecond}
	pub := &fakePublisher{}
	b := New(Config{}, func(name string) (Sender, error) {
		require.Equal(t, "living-room", name)
		return sender, nil
	}, pub)

	for _, payload := range []string{"power", "vol_up", "num 5", `{"command":"mute"}`} {
		b.HandleMessage("viera/living-room/command", []byte(payload))
	}
	b.Drain()

	assert.Equal(t, []string{"power", "vol_up", "num", "mute"}, sender.names())

	messages := pub.snapshot()
	require.Len(t, messages, 4)
	for _, m := range messages {
		assert.Equal(t, "viera/living-room/result", m.topic)
		assert.True(t, m.result.OK)
	}
	require.NotNil(t, messages[2].result.Argument)
	assert.Equal(t, 5, *messages[2].result.Argument)
}

func TestBridge_LooksUpDeviceOnce(t *testing.T) {
	lookups := 0
	b := New(Config{}, func(name string) (Sender, error) {
		lookups++
		return &fakeSender{}, nil
	}, &fakePublisher{})

	b.HandleMessage("viera/den/command", []byte("mute"))
	b.HandleMessage("viera/den/command", []byte("mute"))
	b.Drain()

	assert.Equal(t, 1, lookups)
}

func TestBridge_DevicesAreIndependent(t *testing.T) {
	slow := &fakeSender{delay: 200 * time.Millisecond}
	fast := &fakeSender{}
	pub := &fakePublisher{}

	b := New(Config{}, func(name string) (Sender, error) {
		if name == "slow" {
			return slow, nil
		}
		return fast, nil
	}, pub)
	defer b.Close()

	b.HandleMessage("viera/slow/command", []byte("power"))
	b.HandleMessage("viera/fast/command", []byte("power"))

	require.Eventually(t, func() bool {
		return len(fast.names()) == 1
	}, 100*time.Millisecond, 5*time.Millisecond, "fast device waited on slow device")
}

func TestBridge_UnknownDevice(t *testing.T) {
	pub := &fakePublisher{}
	b := New(Config{TopicPrefix: "home/tv"}, func(name string) (Sender, error) {
		return nil, errors.New("device not found: " + name)
	}, pub)

	b.HandleMessage("home/tv/attic/command", []byte("power"))
	b.Drain()

	messages := pub.snapshot()
	require.Len(t, messages, 1)
	assert.Equal(t, "home/tv/attic/result", messages[0].topic)
	assert.False(t, messages[0].result.OK)
	assert.Contains(t, messages[0].result.Error, "device not found")
	assert.Equal(t, "power", messages[0].result.Command)
}

func TestBridge_BadPayload(t *testing.T) {
	sender := &fakeSender{}
	pub := &fakePublisher{}
	b := New(Config{}, func(string) (Sender, error) { return sender, nil }, pub)

	b.HandleMessage("viera/den/command", []byte("num lots"))
	b.Drain()

	assert.Empty(t, sender.names())
	messages := pub.snapshot()
	require.Len(t, messages, 1)
	assert.False(t, messages[0].result.OK)
}

func TestBridge_ReportsErrorKind(t *testing.T) {
	sender := &fakeSender{err: remote.NewHTTPError(500, "request failed", "tv")}
	pub := &fakePublisher{}
	b := New(Config{}, func(string) (Sender, error) { return sender, nil }, pub)

	b.HandleMessage("viera/den/command", []byte("power"))
	b.Drain()

	messages := pub.snapshot()
	require.Len(t, messages, 1)
	assert.False(t, messages[0].result.OK)
	assert.Equal(t, remote.KindHTTP.String(), messages[0].result.Kind)
}

func TestBridge_IgnoresForeignTopics(t *testing.T) {
	pub := &fakePublisher{}
	b := New(Config{}, func(string) (Sender, error) {
		t.Fatal("lookup should not run")
		return nil, nil
	}, pub)

	b.HandleMessage("viera/den/result", []byte("power"))
	b.HandleMessage("elsewhere/den/command", []byte("power"))
	b.Drain()

	assert.Empty(t, pub.snapshot())
}

func TestBridge_QueueFull(t *testing.T) {
	sender := &fakeSender{delay: 100 * time.Millisecond}
	pub := &fakePublisher{}
	b := New(Config{QueueSize: 1}, func(string) (Sender, error) { return sender, nil }, pub)
	defer b.Close()

	for i := 0; i < 5; i++ {
		b.HandleMessage("viera/den/command", []byte("vol_up"))
	}

	require.Eventually(t, func() bool {
		for _, m := range pub.snapshot() {
			if !m.result.OK && m.result.Error != "" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestBridge_CloseAbandonsInFlight(t *testing.T) {
	sender := &fakeSender{delay: 5 * time.Second}
	b := New(Config{}, func(string) (Sender, error) { return sender, nil }, &fakePublisher{})

	b.HandleMessage("viera/den/command", []byte("power"))
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	b.Close()
	assert.Less(t, time.Since(start), 2*time.Second)

	// Messages after close are rejected without a lookup
	b.HandleMessage("viera/den/command", []byte("power"))
}

func TestNewClient(t *testing.T) {
	c := NewClient(ClientOptions{Broker: "tcp://127.0.0.1:1", ClientID: "test", TopicPrefix: "viera"})
	assert.False(t, c.IsConnected())
}

func TestBridge_CloseCutsShortDrain(t *testing.T) {
	sender := &fakeSender{delay: 5 * time.Second}
	pub := &fakePublisher{}
	b := New(Config{}, func(string) (Sender, error) { return sender, nil }, pub)

	b.HandleMessage("viera/den/command", []byte("power"))
	time.Sleep(20 * time.Millisecond)

	drained := make(chan struct{})
	go func() {
		b.Drain()
		close(drained)
	}()
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	b.Close()
	assert.Less(t, time.Since(start), 2*time.Second, "Close did not abandon the in-flight send")

	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("Drain still waiting after Close")
	}

	messages := pub.snapshot()
	require.Len(t, messages, 1)
	assert.False(t, messages[0].result.OK)
}
