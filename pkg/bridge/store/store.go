// Package store persists per-caller memory and finished call records in
// Redis. The bridge works without it; an unconfigured store degrades to
// empty memory and skipped persistence.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/voxbridge/voxbridge/pkg/bridge/session"
)

// GlobalCallerID buckets memory shared across all callers of one app.
const GlobalCallerID = "global"

// MemoryEntry is one remembered key-value pair. IsGlobal entries live in the
// app-wide bucket instead of the caller's.
type MemoryEntry struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	IsGlobal bool   `json:"isGlobal,omitempty"`
}

// CallRecord is the persisted outcome of one finished call.
type CallRecord struct {
	Session session.Snapshot `json:"session"`
	Summary any              `json:"summary,omitempty"`
	EndedAt time.Time        `json:"endedAt"`
	Reason  string           `json:"reason,omitempty"`
}

// Store wraps the Redis client with the bridge's key layout:
// memory hashes under <prefix>memory:<appID>:<callerID>, call records under
// <prefix>call:<sessionID>.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithCallRecordTTL sets the expiration for persisted call records. Zero
// keeps them forever.
func WithCallRecordTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

func New(addr, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient wraps an existing client, used by tests with miniredis.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: "voxbridge:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) memoryKey(appID, callerID string) string {
	return fmt.Sprintf("%smemory:%s:%s", s.prefix, appID, callerID)
}

func (s *Store) callKey(sessionID string) string {
	return s.prefix + "call:" + sessionID
}

// ReadMemory returns the caller's entries merged with the app's global
// entries, sorted by key. An empty key returns everything; a non-empty key
// filters to that key in either bucket.
func (s *Store) ReadMemory(ctx context.Context, appID, callerID, key string) ([]MemoryEntry, error) {
	var entries []MemoryEntry

	caller, err := s.client.HGetAll(ctx, s.memoryKey(appID, callerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read caller memory: %w", err)
	}
	for k, v := range caller {
		entries = append(entries, MemoryEntry{Key: k, Value: v})
	}

	if callerID != GlobalCallerID {
		global, err := s.client.HGetAll(ctx, s.memoryKey(appID, GlobalCallerID)).Result()
		if err != nil {
			return nil, fmt.Errorf("read global memory: %w", err)
		}
		for k, v := range global {
			entries = append(entries, MemoryEntry{Key: k, Value: v, IsGlobal: true})
		}
	}

	if key != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Key == key {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Key != entries[j].Key {
			return entries[i].Key < entries[j].Key
		}
		return !entries[i].IsGlobal && entries[j].IsGlobal
	})
	return entries, nil
}

// AddMemory writes one entry into the caller's bucket, or the global bucket
// when the entry is marked global.
func (s *Store) AddMemory(ctx context.Context, appID, callerID string, entry MemoryEntry) error {
	if entry.Key == "" {
		return fmt.Errorf("memory key is required")
	}
	target := callerID
	if entry.IsGlobal {
		target = GlobalCallerID
	}
	if err := s.client.HSet(ctx, s.memoryKey(appID, target), entry.Key, entry.Value).Err(); err != nil {
		return fmt.Errorf("write memory: %w", err)
	}
	return nil
}

// RemoveMemory deletes one key from the caller's or the global bucket.
func (s *Store) RemoveMemory(ctx context.Context, appID, callerID, key string, isGlobal bool) error {
	if key == "" {
		return fmt.Errorf("memory key is required")
	}
	target := callerID
	if isGlobal {
		target = GlobalCallerID
	}
	if err := s.client.HDel(ctx, s.memoryKey(appID, target), key).Err(); err != nil {
		return fmt.Errorf("remove memory: %w", err)
	}
	return nil
}

// SaveCallRecord persists a finished call as JSON.
func (s *Store) SaveCallRecord(ctx context.Context, record CallRecord) error {
	if record.Session.ID == "" {
		return fmt.Errorf("call record without session id")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal call record: %w", err)
	}
	if err := s.client.Set(ctx, s.callKey(record.Session.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save call record: %w", err)
	}
	return nil
}

// LoadCallRecord fetches a persisted call, or nil when absent.
func (s *Store) LoadCallRecord(ctx context.Context, sessionID string) (*CallRecord, error) {
	val, err := s.client.Get(ctx, s.callKey(sessionID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("load call record: %w", err)
	}
	var record CallRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, fmt.Errorf("unmarshal call record: %w", err)
	}
	return &record, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
