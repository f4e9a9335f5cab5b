package ingestion

import (
	"errors"
	"log/slog"
	"time"
)

const (
	// DefaultPoolSize is the number of workers running blocking item calls.
	DefaultPoolSize = 20

	// DefaultPollInterval is how often Wait re-reads a job's status.
	DefaultPollInterval = 250 * time.Millisecond
)

// Hooks observe the cancellation windows of an item.
// Both hooks run on the item's goroutine while it holds a concurrency permit.
type Hooks struct {
	// BeforeItemStart runs after the permit is acquired and before the
	// cancellation check that precedes any collaborator call.
	BeforeItemStart func(jobID, itemID string)

	// AfterItemProcessed runs after the collaborator calls return and
	// before the final cancellation check.
	AfterItemProcessed func(jobID, itemID string)
}

func (h Hooks) beforeItemStart(jobID, itemID string) {
	if h.BeforeItemStart != nil {
		h.BeforeItemStart(jobID, itemID)
	}
}

func (h Hooks) afterItemProcessed(jobID, itemID string) {
	if h.AfterItemProcessed != nil {
		h.AfterItemProcessed(jobID, itemID)
	}
}

type settings struct {
	poolSize     int
	logger       *slog.Logger
	now          func() time.Time
	hooks        Hooks
	pollInterval time.Duration
	registry     *Registry
}

func defaultSettings() *settings {
	return &settings{
		poolSize:     DefaultPoolSize,
		logger:       slog.Default(),
		now:          time.Now,
		pollInterval: DefaultPollInterval,
	}
}

func applyOptions(opts []Option) (*settings, error) {
	s := defaultSettings()
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Option configures a Manager or a Registry.
// Options that do not apply to a Registry are ignored by NewRegistry.
type Option func(*settings) error

// WithPoolSize sets the number of workers shared by all jobs for blocking calls.
// Default is DefaultPoolSize, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(s *settings) error {
		if size < 1 {
			size = 1
		}
		s.poolSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithClock sets the time source used for job timestamps and item timings.
func WithClock(now func() time.Time) Option {
	return func(s *settings) error {
		if now == nil {
			now = time.Now
		}
		s.now = now
		return nil
	}
}

// WithHooks installs item lifecycle hooks.
func WithHooks(hooks Hooks) Option {
	return func(s *settings) error {
		s.hooks = hooks
		return nil
	}
}

// WithPollInterval sets how often Wait checks a job for completion.
func WithPollInterval(interval time.Duration) Option {
	return func(s *settings) error {
		if interval <= 0 {
			return errors.New("poll interval must be positive")
		}
		s.pollInterval = interval
		return nil
	}
}

// WithRegistry makes the Manager share an existing registry.
func WithRegistry(registry *Registry) Option {
	return func(s *settings) error {
		s.registry = registry
		return nil
	}
}
