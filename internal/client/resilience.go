package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// PlaceholderImagePath is served whenever a preview URL cannot be resolved,
// either because the object is missing or because the file service is down.
const PlaceholderImagePath = "/images/placeholder.jpg"

// ErrCircuitOpen is returned when the circuit breaker short-circuits a call
// without attempting network I/O.
var ErrCircuitOpen = errors.New("file service circuit breaker is open")

// ErrBulkheadFull is returned when all bulkhead slots are taken. Saturation
// fails the attempt immediately; callers never queue behind in-flight calls.
var ErrBulkheadFull = errors.New("file service bulkhead is full")

// ResilienceConfig tunes the retry, circuit breaker and bulkhead policies
type ResilienceConfig struct {
	MaxRetries       int           // additional attempts after the first, transport errors only
	RetryInterval    time.Duration // initial backoff interval
	FailureThreshold int           // consecutive failures before the circuit opens
	Cooldown         time.Duration // how long the circuit stays open before a probe
	MaxConcurrent    int64         // bulkhead: max in-flight calls
}

// DefaultResilienceConfig mirrors the settings used in deployment manifests
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		MaxRetries:       3,
		RetryInterval:    100 * time.Millisecond,
		FailureThreshold: 5,
		Cooldown:         10 * time.Second,
		MaxConcurrent:    10,
	}
}

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// circuitBreaker is a minimal closed/open/half-open state machine. After
// FailureThreshold consecutive failures the circuit opens; once the cooldown
// elapses a single probe call is let through, and its outcome decides whether
// the circuit closes again or re-opens.
type circuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	state    breakerState
	failures int
	openedAt time.Time
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// allow reports whether a call may proceed. It transitions open → half-open
// when the cooldown has elapsed; the half-open state admits one probe only.
func (b *circuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = stateHalfOpen
			return true
		}
		return false
	default: // stateHalfOpen: the probe is already in flight
		return false
	}
}

func (b *circuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = stateClosed
	b.failures = 0
}

func (b *circuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = b.now()
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.state = stateOpen
		b.openedAt = b.now()
		b.failures = 0
	}
}

// ResilientClient decorates a FileServiceClient with a bulkhead, a circuit
// breaker and bounded retries. Preview lookups degrade to the placeholder
// path instead of failing; upload failures propagate to the caller.
type ResilientClient struct {
	delegate FileServiceClient
	cfg      ResilienceConfig
	breaker  *circuitBreaker
	bulkhead *semaphore.Weighted
	logger   *zap.Logger
}

// NewResilientClient wraps delegate with the configured resilience policies
func NewResilientClient(delegate FileServiceClient, cfg ResilienceConfig, logger *zap.Logger) *ResilientClient {
	return &ResilientClient{
		delegate: delegate,
		cfg:      cfg,
		breaker:  newCircuitBreaker(cfg.FailureThreshold, cfg.Cooldown),
		bulkhead: semaphore.NewWeighted(cfg.MaxConcurrent),
		logger:   logger,
	}
}

// UploadProductImage uploads with retries on transport failures. There is no
// fallback: once retries are exhausted the error reaches the caller.
func (c *ResilientClient) UploadProductImage(ctx context.Context, sku string, upload FileUpload) (*FileDto, error) {
	if !c.bulkhead.TryAcquire(1) {
		c.logger.Warn("Upload rejected, file service bulkhead full", zap.String("sku", sku))
		return nil, ErrBulkheadFull
	}
	defer c.bulkhead.Release(1)

	if !c.breaker.allow() {
		c.logger.Warn("Upload short-circuited, file service circuit open", zap.String("sku", sku))
		return nil, ErrCircuitOpen
	}

	dto, err := backoff.RetryWithData(func() (*FileDto, error) {
		dto, err := c.delegate.UploadProductImage(ctx, sku, upload)
		if err != nil && !isTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return dto, err
	}, c.newBackOff(ctx))

	if err != nil {
		c.breaker.recordFailure()
		return nil, err
	}

	c.breaker.recordSuccess()
	c.logger.Info("Image uploaded to file service", zap.String("object_name", dto.ObjectName))
	return dto, nil
}

// GetPreviewURL resolves a presigned preview URL, falling back to the
// placeholder path on a semantic 404, on transport failure after retries,
// and when the circuit is open.
func (c *ResilientClient) GetPreviewURL(ctx context.Context, objectName string) (string, error) {
	if objectName == "" {
		return PlaceholderImagePath, nil
	}

	if !c.bulkhead.TryAcquire(1) {
		c.logger.Warn("Preview lookup rejected by bulkhead, using placeholder", zap.String("object_name", objectName))
		return PlaceholderImagePath, nil
	}
	defer c.bulkhead.Release(1)

	if !c.breaker.allow() {
		c.logger.Warn("Preview lookup short-circuited, using placeholder", zap.String("object_name", objectName))
		return PlaceholderImagePath, nil
	}

	url, err := backoff.RetryWithData(func() (string, error) {
		url, err := c.delegate.GetPreviewURL(ctx, objectName)
		if err != nil && !isTransient(err) {
			return "", backoff.Permanent(err)
		}
		return url, err
	}, c.newBackOff(ctx))

	if err != nil {
		// A 404 means the downstream answered; the circuit stays healthy.
		if errors.Is(err, ErrObjectNotFound) {
			c.breaker.recordSuccess()
			c.logger.Debug("Image not found, using placeholder", zap.String("object_name", objectName))
			return PlaceholderImagePath, nil
		}

		c.breaker.recordFailure()
		c.logger.Warn("File service unavailable, using placeholder",
			zap.String("object_name", objectName),
			zap.Error(err),
		)
		return PlaceholderImagePath, nil
	}

	c.breaker.recordSuccess()
	return url, nil
}

func (c *ResilientClient) newBackOff(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryInterval
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.cfg.MaxRetries)), ctx)
}
