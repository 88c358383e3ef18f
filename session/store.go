package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authflow/internal/fifo"
	"github.com/MrEthical07/authflow/internal/schema"
)

// DefaultKey is the storage key used when no [WithKey] option is given.
const DefaultKey = "auth_session"

var (
	// ErrInvalidSession is returned when asked to persist a session that fails
	// schema validation.
	ErrInvalidSession = errors.New("invalid session")
	// ErrStorageUnavailable wraps backend I/O failures.
	ErrStorageUnavailable = errors.New("session storage unavailable")
)

// ReadOutcome tells which parse path produced the result of a read.
type ReadOutcome int

const (
	ReadEmpty ReadOutcome = iota
	ReadStrict
	ReadLegacyObject
	ReadLegacyToken
	ReadDiscarded
)

func (o ReadOutcome) String() string {
	switch o {
	case ReadEmpty:
		return "empty"
	case ReadStrict:
		return "strict"
	case ReadLegacyObject:
		return "legacy_object"
	case ReadLegacyToken:
		return "legacy_token"
	case ReadDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Store persists the single session record under one key.
//
// Writes are serialized through a FIFO mutex so two concurrent saves can never
// interleave; the stored value is always one complete session.
type Store struct {
	storage Storage
	key     string
	mu      fifo.Mutex
	onRead  func(ReadOutcome)
}

// Option configures a [Store].
type Option func(*Store)

// WithKey overrides [DefaultKey].
func WithKey(key string) Option {
	return func(s *Store) {
		if strings.TrimSpace(key) != "" {
			s.key = key
		}
	}
}

// WithReadObserver registers fn to be told how every read was resolved.
func WithReadObserver(fn func(ReadOutcome)) Option {
	return func(s *Store) {
		s.onRead = fn
	}
}

// NewStore creates a Store over storage.
func NewStore(storage Storage, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		key:     DefaultKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the storage key this store owns.
func (s *Store) Key() string {
	return s.key
}

// SaveSession validates sess and writes it as one JSON document.
func (s *Store) SaveSession(ctx context.Context, sess *AuthSession) error {
	if res := schema.Validate(sess); !res.OK {
		return fmt.Errorf("%w: %v", ErrInvalidSession, res.Err())
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	release, err := s.mu.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := s.storage.SetItem(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// ReadSession loads the stored session.
//
// Resolution order: strict schema, then a permissive object with a usable
// accessToken, then a bare legacy token string. Malformed data yields
// (nil, nil); only backend failures return an error.
func (s *Store) ReadSession(ctx context.Context) (*AuthSession, error) {
	raw, ok, err := s.storage.GetItem(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !ok {
		s.observe(ReadEmpty)
		return nil, nil
	}

	sess, outcome := Parse(raw)
	s.observe(outcome)
	return sess, nil
}

// RemoveSession deletes the stored session. Removing an absent session succeeds.
func (s *Store) RemoveSession(ctx context.Context) error {
	release, err := s.mu.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := s.storage.RemoveItem(ctx, s.key); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) observe(o ReadOutcome) {
	if s.onRead != nil {
		s.onRead(o)
	}
}

// Parse decodes a raw stored value. It never fails; unusable input returns a
// nil session with ReadDiscarded.
func Parse(raw string) (*AuthSession, ReadOutcome) {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return parseBareToken(raw)
	}

	switch v := decoded.(type) {
	case map[string]any:
		if sess, ok := parseStrict(v); ok {
			return sess, ReadStrict
		}
		if sess, ok := parseLegacyObject(v); ok {
			return sess, ReadLegacyObject
		}
		return nil, ReadDiscarded
	case string:
		// JSON-quoted token written by older clients.
		if v == "" {
			return nil, ReadDiscarded
		}
		return &AuthSession{AccessToken: v}, ReadLegacyToken
	default:
		// Arrays are rejected outright: ["token","refresh"] must never be
		// coerced into a session by positional or property access.
		return nil, ReadDiscarded
	}
}

// parseStrict matches keys case-sensitively.
func parseStrict(obj map[string]any) (*AuthSession, bool) {
	if !validSessionObject(obj) {
		return nil, false
	}
	sess := &AuthSession{AccessToken: obj["accessToken"].(string)}
	if refresh, ok := obj["refreshToken"].(string); ok {
		sess.RefreshToken = refresh
	}
	if rawProfile, ok := obj["profile"].(map[string]any); ok {
		sess.Profile, _ = profileFromObject(rawProfile)
	}
	if !schema.Validate(sess).OK {
		return nil, false
	}
	return sess, true
}

func parseLegacyObject(obj map[string]any) (*AuthSession, bool) {
	token, ok := obj["accessToken"].(string)
	if !ok || token == "" {
		return nil, false
	}
	sess := &AuthSession{AccessToken: token}
	if refresh, ok := obj["refreshToken"].(string); ok {
		sess.RefreshToken = refresh
	}
	// An invalid profile is dropped; it does not invalidate the session.
	if rawProfile, ok := obj["profile"].(map[string]any); ok && ValidateProfile(rawProfile) {
		sess.Profile, _ = profileFromObject(rawProfile)
	}
	return sess, true
}

func parseBareToken(raw string) (*AuthSession, ReadOutcome) {
	if raw == "" || strings.HasPrefix(raw, "{") {
		return nil, ReadDiscarded
	}
	return &AuthSession{AccessToken: raw}, ReadLegacyToken
}
