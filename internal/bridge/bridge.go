package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/viera/internal/logging"
	"github.com/muurk/viera/internal/remote"
)

const (
	DefaultQueueSize = 32
	DefaultTimeout   = 30 * time.Second
)

// ErrQueueFull is reported when a device has too many pending requests
var ErrQueueFull = errors.New("device queue full")

// Sender dispatches named commands to a television
type Sender interface {
	Send(ctx context.Context, name string, args ...int) ([]byte, error)
}

// LookupFunc returns the device registered under name
type LookupFunc func(name string) (Sender, error)

// Publisher delivers result payloads
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Config holds bridge settings
type Config struct {
	TopicPrefix string
	QueueSize   int
	// Timeout bounds one request including its spacing waits
	Timeout time.Duration
}

// Bridge routes command messages to per-device workers. Each device gets
// one worker so its requests run in arrival order while different devices
// proceed independently.
type Bridge struct {
	cfg    Config
	lookup LookupFunc
	pub    Publisher

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	workers map[string]chan Request
	closed  bool
	wg      sync.WaitGroup
}

// New creates a bridge
func New(cfg Config, lookup LookupFunc, pub Publisher) *Bridge {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "viera"
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		cfg:     cfg,
		lookup:  lookup,
		pub:     pub,
		ctx:     ctx,
		cancel:  cancel,
		workers: make(map[string]chan Request),
	}
}

// CommandTopic returns the topic filter the bridge expects messages from
func (b *Bridge) CommandTopic() string {
	return CommandTopic(b.cfg.TopicPrefix)
}

// HandleMessage accepts one command message. It never blocks on the device.
func (b *Bridge) HandleMessage(topic string, payload []byte) {
	device, ok := DeviceFromTopic(b.cfg.TopicPrefix, topic)
	if !ok {
		logging.Debug("Ignoring message on unexpected topic", zap.String("topic", topic))
		return
	}

	req, err := ParsePayload(payload)
	if err != nil {
		logging.Warn("Rejected command payload",
			zap.String("device", device),
			zap.ByteString("payload", payload),
			zap.Error(err))
		b.publish(device, newResult(Request{}, err))
		return
	}

	if err := b.enqueue(device, req); err != nil {
		b.publish(device, newResult(req, err))
	}
}

// enqueue hands req to the device's worker, starting it on first use
func (b *Bridge) enqueue(device string, req Request) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New("bridge is closed")
	}

	queue, ok := b.workers[device]
	if !ok {
		sender, err := b.lookup(device)
		if err != nil {
			return err
		}

		queue = make(chan Request, b.cfg.QueueSize)
		b.workers[device] = queue

		b.wg.Add(1)
		go b.run(device, sender, queue)

		logging.Info("Started device worker", zap.String("device", device))
	}

	select {
	case queue <- req:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, device)
	}
}

func (b *Bridge) run(device string, sender Sender, queue <-chan Request) {
	defer b.wg.Done()

	for req := range queue {
		ctx, cancel := context.WithTimeout(b.ctx, b.cfg.Timeout)
		_, err := sender.Send(ctx, req.Command, req.Args()...)
		cancel()

		if err != nil {
			logging.Warn("Command failed",
				zap.String("device", device),
				zap.String("command", req.Command),
				zap.Error(err))
		} else {
			logging.Debug("Command sent",
				zap.String("device", device),
				zap.String("command", req.Command))
		}
		b.publish(device, newResult(req, err))
	}
}

func (b *Bridge) publish(device string, res Result) {
	if b.pub == nil {
		return
	}
	payload, err := json.Marshal(res)
	if err != nil {
		logging.Error("Failed to encode result", zap.Error(err))
		return
	}
	if err := b.pub.Publish(ResultTopic(b.cfg.TopicPrefix, device), payload); err != nil {
		logging.Warn("Failed to publish result", zap.String("device", device), zap.Error(err))
	}
}

// Close stops accepting messages, abandons in-flight sends and waits for
// the workers to exit. It also cuts short a Drain in progress.
func (b *Bridge) Close() {
	b.cancel()

	b.mu.Lock()
	if !b.closed {
		b.closed = true
		for _, queue := range b.workers {
			close(queue)
		}
	}
	b.mu.Unlock()

	b.wg.Wait()
}

// Drain waits for queued requests to finish, then stops the workers.
func (b *Bridge) Drain() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, queue := range b.workers {
		close(queue)
	}
	b.mu.Unlock()

	b.wg.Wait()
	b.cancel()
}

var _ Sender = (*remote.Device)(nil)
