package kvstore

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/88448844/self-sovereign-identity-SSI/core"
)

// MemoryStore is an in-process core.ExpiringStore for tests, offering
// the same GET/DEL/EVAL semantics RedisStore gets from a real Redis
// server, including the validateScript's conditional-delete behavior.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]memEntry
}

type memEntry struct {
	value   string
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]memEntry)}
}

func (m *MemoryStore) Set(ctx context.Context, key, value string, ttlSeconds int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = memEntry{value: value, expires: time.Now().Add(time.Duration(ttlSeconds) * time.Second)}
	return nil
}

func (m *MemoryStore) GetDel(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok || time.Now().After(e.expires) {
		delete(m.data, key)
		return "", core.ErrNotFound
	}
	delete(m.data, key)
	return e.value, nil
}

// Eval interprets exactly the shape of the "ch:<nonce>" validate script
// used by the nonce package: KEYS[0] holds an "aud|exp" value, ARGV[0]
// is the expected aud, ARGV[1] is the current unix time. This keeps the
// fake honest to the real Lua script's semantics without embedding a
// Lua interpreter.
func (m *MemoryStore) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := keys[0]
	aud, _ := args[0].(string)
	now, _ := toInt64(args[1])

	e, ok := m.data[key]
	if !ok {
		return []interface{}{int64(0), "nonce not found"}, nil
	}
	sep := strings.IndexByte(e.value, '|')
	if sep < 0 {
		return []interface{}{int64(0), "nonce not found"}, nil
	}
	storedAud := e.value[:sep]
	exp, err := strconv.ParseInt(e.value[sep+1:], 10, 64)
	if err != nil {
		return []interface{}{int64(0), "nonce not found"}, nil
	}
	if storedAud != aud {
		return []interface{}{int64(0), "aud mismatch"}, nil
	}
	if exp < now {
		delete(m.data, key)
		return []interface{}{int64(0), "expired"}, nil
	}
	delete(m.data, key)
	return []interface{}{int64(1), "ok"}, nil
}

// Flush discards every key, the in-process equivalent of RedisStore's
// FLUSHDB.
func (m *MemoryStore) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]memEntry)
	return nil
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
