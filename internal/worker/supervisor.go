package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/HmRandomGuy/T-V-B/domain"
	"github.com/HmRandomGuy/T-V-B/domain/repositories"
	"github.com/HmRandomGuy/T-V-B/internal/metrics"
)

// Processor turns one inbound message into a result.
type Processor interface {
	Process(ctx context.Context, msg domain.InboundMessage) *domain.Result
}

// State reports where the supervisor is in its lifecycle.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateDegraded
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDegraded:
		return "degraded"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "starting"
	}
}

// Config bounds the supervisor.
// All fields are optional with defaults:
// - MaxConcurrent: global cap on in-flight requests (default: 4)
// - DispatchRetries: extra voice delivery attempts (default: 3)
// - DispatchBackoff: initial delay between delivery attempts (default: 500ms)
// - RestartBackoff / RestartBackoffMax: ingest restart delay range (default: 1s..30s)
type Config struct {
	MaxConcurrent     int
	DispatchRetries   int
	DispatchBackoff   time.Duration
	RestartBackoff    time.Duration
	RestartBackoffMax time.Duration
}

// Supervisor owns the ingest loop and the request workers. Messages from
// the same chat are processed strictly in arrival order through a per-chat
// queue; distinct chats run concurrently under a global semaphore. A failed
// ingest cycle is retried with capped exponential backoff, so a transport
// outage degrades the service instead of killing it.
type Supervisor struct {
	source     repositories.MessageSource
	dispatcher repositories.Dispatcher
	processor  Processor
	cfg        Config
	metrics    *metrics.Metrics
	logger     *zap.Logger

	state atomic.Int32

	mu      sync.Mutex
	queues  map[int64][]domain.InboundMessage
	running map[int64]bool

	sem chan struct{}
	wg  sync.WaitGroup
}

// NewSupervisor creates a supervisor, applying config defaults.
func NewSupervisor(
	source repositories.MessageSource,
	dispatcher repositories.Dispatcher,
	processor Processor,
	cfg Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Supervisor {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 4
	}
	if cfg.DispatchRetries < 0 {
		cfg.DispatchRetries = 3
	}
	if cfg.DispatchBackoff <= 0 {
		cfg.DispatchBackoff = 500 * time.Millisecond
	}
	if cfg.RestartBackoff <= 0 {
		cfg.RestartBackoff = time.Second
	}
	if cfg.RestartBackoffMax <= 0 {
		cfg.RestartBackoffMax = 30 * time.Second
	}

	return &Supervisor{
		source:     source,
		dispatcher: dispatcher,
		processor:  processor,
		cfg:        cfg,
		metrics:    m,
		logger:     logger,
		queues:     make(map[int64][]domain.InboundMessage),
		running:    make(map[int64]bool),
		sem:        make(chan struct{}, cfg.MaxConcurrent),
	}
}

// State reports the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Run polls the source until ctx is cancelled, then waits for in-flight
// requests to drain.
func (s *Supervisor) Run(ctx context.Context) error {
	s.state.Store(int32(StateRunning))
	defer s.state.Store(int32(StateStopped))

	backoff := s.cfg.RestartBackoff
	for ctx.Err() == nil {
		messages, err := s.source.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.state.Store(int32(StateDegraded))
			s.metrics.IngestRestarts.Inc()
			s.logger.Warn("ingest failed, restarting",
				zap.Duration("backoff", backoff),
				zap.Error(err))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			backoff = min(backoff*2, s.cfg.RestartBackoffMax)
			continue
		}

		s.state.Store(int32(StateRunning))
		backoff = s.cfg.RestartBackoff
		for _, msg := range messages {
			s.enqueue(ctx, msg)
		}
	}

	s.state.Store(int32(StateStopping))
	s.logger.Info("supervisor draining in-flight requests")
	s.wg.Wait()
	return nil
}

// enqueue appends the message to its chat's queue and starts a drain
// goroutine if the chat has none running.
func (s *Supervisor) enqueue(ctx context.Context, msg domain.InboundMessage) {
	s.metrics.RequestsReceived.Inc()

	s.mu.Lock()
	s.queues[msg.ChatID] = append(s.queues[msg.ChatID], msg)
	if s.running[msg.ChatID] {
		s.mu.Unlock()
		return
	}
	s.running[msg.ChatID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.drain(ctx, msg.ChatID)
}

// drain processes the chat's queue in order and exits once it is empty.
func (s *Supervisor) drain(ctx context.Context, chatID int64) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		queue := s.queues[chatID]
		if len(queue) == 0 {
			s.running[chatID] = false
			delete(s.queues, chatID)
			s.mu.Unlock()
			return
		}
		msg := queue[0]
		s.queues[chatID] = queue[1:]
		s.mu.Unlock()

		s.handle(ctx, msg)
	}
}

func (s *Supervisor) handle(ctx context.Context, msg domain.InboundMessage) {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	s.metrics.RequestsInFlight.Inc()
	defer s.metrics.RequestsInFlight.Dec()

	s.deliver(ctx, s.process(ctx, msg))
}

// process shields the supervisor from a panicking handler; a panic becomes
// an internal error result for that one request.
func (s *Supervisor) process(ctx context.Context, msg domain.InboundMessage) (result *domain.Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("request handler panicked",
				zap.Int64("chat_id", msg.ChatID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			result = &domain.Result{
				ChatID: msg.ChatID,
				Err:    domain.NewError(domain.KindInternal, "request handler panicked", fmt.Errorf("%v", r)),
			}
		}
	}()

	s.dispatcher.NotifyRecording(msg.ChatID)
	return s.processor.Process(ctx, msg)
}

func (s *Supervisor) deliver(ctx context.Context, result *domain.Result) {
	if result.Err != nil {
		kind := domain.KindOf(result.Err)
		s.metrics.RequestsFailed.WithLabelValues(kind.String()).Inc()
		if err := s.dispatcher.SendText(ctx, result.ChatID, userMessage(kind)); err != nil {
			s.logger.Warn("failed to deliver error notice",
				zap.Int64("chat_id", result.ChatID),
				zap.Error(err))
		}
		return
	}

	if err := s.sendVoiceWithRetry(ctx, result.ChatID, result.Note); err != nil {
		s.metrics.RequestsFailed.WithLabelValues(domain.KindDispatch.String()).Inc()
		s.logger.Error("failed to deliver voice note",
			zap.Int64("chat_id", result.ChatID),
			zap.Error(err))
		// The chat still gets told, best effort.
		if terr := s.dispatcher.SendText(ctx, result.ChatID, userMessage(domain.KindDispatch)); terr != nil {
			s.logger.Warn("failed to deliver dispatch-failure notice",
				zap.Int64("chat_id", result.ChatID),
				zap.Error(terr))
		}
		return
	}
	s.metrics.RequestsSucceeded.Inc()
}

func (s *Supervisor) sendVoiceWithRetry(ctx context.Context, chatID int64, note *domain.VoiceNote) error {
	backoff := s.cfg.DispatchBackoff

	var err error
	for attempt := 0; attempt <= s.cfg.DispatchRetries; attempt++ {
		if attempt > 0 {
			s.metrics.DispatchRetries.Inc()
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
		if err = s.dispatcher.SendVoice(ctx, chatID, note); err == nil {
			return nil
		}
		s.logger.Warn("voice dispatch failed",
			zap.Int64("chat_id", chatID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return err
}

// userMessage maps an error kind to the reply the chat sees.
func userMessage(kind domain.ErrorKind) string {
	switch kind {
	case domain.KindValidation:
		return "❌ I can't convert that. Send non-empty plain text within the length limit, or a .txt file."
	case domain.KindSynthesis:
		return "❌ Speech synthesis failed. Please try again in a moment."
	case domain.KindTranscode:
		return "❌ Audio conversion failed. Please try again."
	case domain.KindTimeout:
		return "⏳ That took too long to process. Try a shorter text."
	case domain.KindDispatch:
		return "❌ Your voice note was ready but could not be delivered. Please try again."
	default:
		return "❌ An unexpected error occurred. Please try again."
	}
}
