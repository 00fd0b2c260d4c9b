// Package circuitbreaker guards calls to an unreliable upstream.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/docflow/types"
)

// State 熔断器状态
type State int

const (
	// StateClosed 关闭状态（正常工作）
	StateClosed State = iota
	// StateOpen 打开状态（熔断中）
	StateOpen
	// StateHalfOpen 半开状态（试探性恢复）
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// 错误定义
var (
	ErrCircuitOpen            = errors.New("circuit breaker is open")
	ErrTooManyCallsInHalfOpen = errors.New("too many calls in half-open state")
)

// Config 熔断器配置
type Config struct {
	// Threshold 连续失败次数阈值
	Threshold int
	// ResetTimeout 从 Open 到 HalfOpen 的等待时间
	ResetTimeout time.Duration
	// HalfOpenMaxCalls 半开状态下允许的最大并发试探数
	HalfOpenMaxCalls int
	// OnStateChange 状态变更回调（同步调用，勿阻塞）
	OnStateChange func(from, to State)
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Threshold:        5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// Breaker 熔断器
type Breaker struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	halfOpenCalls int
}

// New 创建熔断器
func New(cfg Config, logger *zap.Logger) *Breaker {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{cfg: cfg, logger: logger, now: time.Now, state: StateClosed}
}

// Call 执行 fn；熔断打开时直接返回 ErrCircuitOpen
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Execute(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Execute 在熔断器保护下执行 fn 并返回结果
func Execute[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.beforeCall(); err != nil {
		return zero, err
	}

	result, err := fn(ctx)

	// 客户端错误与调用方取消不计入熔断失败
	success := err == nil || isClientError(err) || ctx.Err() != nil
	b.afterCall(success)

	if err != nil {
		return zero, err
	}
	return result, nil
}

// isClientError 判断错误是否源于请求本身
func isClientError(err error) bool {
	switch types.GetErrorCode(err) {
	case types.ErrInvalidRequest, types.ErrUnauthorized, types.ErrForbidden, types.ErrValidation:
		return true
	}
	return false
}

func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return ErrCircuitOpen
		}
		b.setState(StateHalfOpen)
		b.halfOpenCalls = 0
		fallthrough

	case StateHalfOpen:
		if b.halfOpenCalls >= b.cfg.HalfOpenMaxCalls {
			return ErrTooManyCallsInHalfOpen
		}
		b.halfOpenCalls++
	}
	return nil
}

func (b *Breaker) afterCall(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		if b.state == StateHalfOpen {
			b.logger.Info("circuit breaker recovered")
			b.setState(StateClosed)
			b.halfOpenCalls = 0
		}
		b.failures = 0
		return
	}

	b.failures++
	switch b.state {
	case StateClosed:
		if b.failures >= b.cfg.Threshold {
			b.logger.Warn("circuit breaker opened",
				zap.Int("failures", b.failures),
				zap.Int("threshold", b.cfg.Threshold))
			b.open()
		}
	case StateHalfOpen:
		b.logger.Warn("circuit breaker trial call failed, reopening")
		b.open()
	}
}

func (b *Breaker) open() {
	b.setState(StateOpen)
	b.openedAt = b.now()
	b.halfOpenCalls = 0
}

// setState 需持有 b.mu
func (b *Breaker) setState(to State) {
	from := b.state
	b.state = to
	if from != to && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}

// State 返回当前状态（不触发 Open→HalfOpen 转换）
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
