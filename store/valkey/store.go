package valkey

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/healthstack/securecore/store"
)

const (
	// DefaultKeyPrefix is the default prefix for all Valkey keys.
	DefaultKeyPrefix = "seccore:"

	// connectionVerifyTimeout is the timeout for initial connection verification.
	connectionVerifyTimeout = 5 * time.Second

	// defaultOpTimeout bounds each store round trip. The rate limiter
	// treats a timeout the same as an unreachable store and fails open.
	defaultOpTimeout = 500 * time.Millisecond
)

// Config holds configuration for the Valkey counter store.
type Config struct {
	// Address is the Valkey server address (required), e.g. "localhost:6379".
	Address string

	// Password is the optional password for Valkey authentication.
	Password string

	// DB is the optional database number (default 0).
	DB int

	// KeyPrefix is the prefix for all keys (default "seccore:").
	KeyPrefix string

	// TLS is the optional TLS configuration for encrypted connections.
	TLS *tls.Config

	// OpTimeout bounds each store round trip (default 500ms).
	OpTimeout time.Duration

	// Logger is the optional structured logger (default: slog.Default()).
	Logger *slog.Logger
}

// Store is a Valkey-backed implementation of store.CounterStore.
type Store struct {
	client    valkeygo.Client
	prefix    string
	opTimeout time.Duration
	logger    *slog.Logger
}

// Compile-time interface check.
var _ store.CounterStore = (*Store)(nil)

// New creates a new Valkey-backed counter store.
// Returns an error if the connection cannot be established.
func New(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("valkey address is required")
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}

	opts := valkeygo.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.TLS != nil {
		opts.TLSConfig = cfg.TLS
	}

	client, err := valkeygo.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	logger.Info("Connected to Valkey counter store",
		"address", cfg.Address,
		"db", cfg.DB,
		"prefix", prefix)

	return &Store{
		client:    client,
		prefix:    prefix,
		opTimeout: opTimeout,
		logger:    logger,
	}, nil
}

// Close closes the Valkey client connection.
func (s *Store) Close() {
	s.client.Close()
	s.logger.Info("Valkey counter store connection closed")
}

// opContext derives a bounded context for a single round trip.
func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// classify maps client errors onto the store sentinels. Network and
// timeout failures become ErrUnavailable so the limiter can fail open.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if valkeygo.IsValkeyNil(err) {
		return store.ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if _, ok := valkeygo.IsValkeyErr(err); ok {
		// Server answered; the command itself failed.
		return err
	}
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}

func (s *Store) key(key string) string {
	return s.prefix + key
}

// Get returns the value stored at key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	val, err := s.client.Do(ctx, s.client.B().Get().Key(s.key(key)).Build()).ToString()
	if err != nil {
		return "", classify(err)
	}
	return val, nil
}

// Set stores value at key with the given TTL.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	b := s.client.B().Set().Key(s.key(key)).Value(value)
	var cmd valkeygo.Completed
	if ttl > 0 {
		cmd = b.Px(ttl).Build()
	} else {
		cmd = b.Build()
	}
	return classify(s.client.Do(ctx, cmd).Error())
}

// Incr atomically increments the integer at key.
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	n, err := s.client.Do(ctx, s.client.B().Incr().Key(s.key(key)).Build()).AsInt64()
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// Expire sets the remaining TTL on an existing key.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	cmd := s.client.B().Pexpire().Key(s.key(key)).Milliseconds(ttl.Milliseconds()).Build()
	return classify(s.client.Do(ctx, cmd).Error())
}

// TTL returns the remaining lifetime of key.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	ms, err := s.client.Do(ctx, s.client.B().Pttl().Key(s.key(key)).Build()).AsInt64()
	if err != nil {
		return 0, classify(err)
	}
	if ms < 0 {
		// -2: no such key, -1: no expiry set.
		if ms == -2 {
			return 0, store.ErrNotFound
		}
		return 0, nil
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// ZAdd inserts member into the sorted set at key.
func (s *Store) ZAdd(ctx context.Context, key string, score float64, member string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	cmd := s.client.B().Zadd().Key(s.key(key)).ScoreMember().ScoreMember(score, member).Build()
	return classify(s.client.Do(ctx, cmd).Error())
}

// ZRemRangeByScore removes members whose score lies in [min, max].
func (s *Store) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	cmd := s.client.B().Zremrangebyscore().
		Key(s.key(key)).
		Min(formatScore(min)).
		Max(formatScore(max)).
		Build()
	return classify(s.client.Do(ctx, cmd).Error())
}

// ZCount counts members whose score lies in [min, max].
func (s *Store) ZCount(ctx context.Context, key string, min, max float64) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	cmd := s.client.B().Zcount().
		Key(s.key(key)).
		Min(formatScore(min)).
		Max(formatScore(max)).
		Build()
	n, err := s.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// Del removes key.
func (s *Store) Del(ctx context.Context, key string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	return classify(s.client.Do(ctx, s.client.B().Del().Key(s.key(key)).Build()).Error())
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
