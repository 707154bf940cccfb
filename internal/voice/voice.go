// Package voice speaks short prompts through an external text-to-speech command.
package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default voice settings.
const (
	DefaultCommand   = "espeak"
	DefaultTimeoutMs = 10000
	DefaultQueueSize = 4
)

// ErrClosed is returned by SayAndWait after Close.
var ErrClosed = errors.New("speaker closed")

// Speaker delivers spoken feedback. Say never blocks the caller; phrases
// that cannot be queued are dropped. SayAndWait returns once the phrase has
// been spoken or ctx is done.
type Speaker interface {
	Say(text string)
	SayAndWait(ctx context.Context, text string) error
	Close() error
}

// Config holds the text-to-speech command settings.
type Config struct {
	Enabled   bool     `yaml:"enabled"`
	Command   string   `yaml:"command"`
	Args      []string `yaml:"args"`
	TimeoutMs int      `yaml:"timeout_ms"`
	QueueSize int      `yaml:"queue_size"`
}

// DefaultConfig returns espeak with a ten second per-phrase limit.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Command:   DefaultCommand,
		TimeoutMs: DefaultTimeoutMs,
		QueueSize: DefaultQueueSize,
	}
}

// New returns a CommandSpeaker, or Nop when voice is disabled.
func New(cfg Config, logger *zap.Logger) Speaker {
	if !cfg.Enabled || cfg.Command == "" {
		return Nop{}
	}
	return NewCommandSpeaker(cfg, logger)
}

// CommandSpeaker runs the configured command once per phrase with the phrase
// as its last argument. Queued phrases are spoken in order by one worker.
type CommandSpeaker struct {
	command string
	args    []string
	timeout time.Duration
	logger  *zap.Logger

	queue     chan string
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewCommandSpeaker starts the speaking worker.
func NewCommandSpeaker(cfg Config, logger *zap.Logger) *CommandSpeaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = DefaultTimeoutMs
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	s := &CommandSpeaker{
		command: cfg.Command,
		args:    append([]string(nil), cfg.Args...),
		timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		logger:  logger.Named("voice"),
		queue:   make(chan string, cfg.QueueSize),
		done:    make(chan struct{}),
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go s.worker()
	return s
}

// Say queues a phrase. A full queue drops the phrase.
func (s *CommandSpeaker) Say(text string) {
	if text == "" {
		return
	}
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.queue <- text:
	default:
		s.logger.Debug("speech queue full, dropping phrase", zap.String("text", text))
	}
}

// SayAndWait speaks a phrase synchronously. Errors are returned for the
// caller to log; they must not fail the surrounding operation.
func (s *CommandSpeaker) SayAndWait(ctx context.Context, text string) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	return s.speak(ctx, text)
}

// Close stops the worker, interrupting the phrase being spoken. Phrases
// still queued are discarded.
func (s *CommandSpeaker) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
	})
	s.wg.Wait()
	return nil
}

func (s *CommandSpeaker) worker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case text := <-s.queue:
			if err := s.speak(s.ctx, text); err != nil && s.ctx.Err() == nil {
				s.logger.Warn("speech failed", zap.String("text", text), zap.Error(err))
			}
		}
	}
}

func (s *CommandSpeaker) speak(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := append(append([]string(nil), s.args...), text)
	cmd := exec.CommandContext(ctx, s.command, args...)

	cmd.WaitDelay = time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("speech timeout after %s", s.timeout)
	}
	if err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("speech command failed: %w, stderr: %s", err, stderr.String())
		}
		return fmt.Errorf("speech command failed: %w", err)
	}
	return nil
}

// Nop is a Speaker that says nothing.
type Nop struct{}

// Say does nothing.
func (Nop) Say(string) {}

// SayAndWait does nothing.
func (Nop) SayAndWait(context.Context, string) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
