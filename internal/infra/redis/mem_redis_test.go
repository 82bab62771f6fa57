package redis

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// memRedis is an in-memory stand-in for the RedisClient interface used by
// unit tests. Expiries are tracked lazily against the wall clock.
type memRedis struct {
	mu     sync.Mutex
	strs   map[string]memEntry
	zsets  map[string]map[string]float64
	hashes map[string]map[string]string
}

type memEntry struct {
	val      string
	deadline time.Time // zero = no expiry
}

func newMemRedis() *memRedis {
	return &memRedis{
		strs:   map[string]memEntry{},
		zsets:  map[string]map[string]float64{},
		hashes: map[string]map[string]string{},
	}
}

var _ RedisClient = (*memRedis)(nil)

func (m *memRedis) expired(e memEntry) bool {
	return !e.deadline.IsZero() && time.Now().After(e.deadline)
}

func (m *memRedis) Ping(ctx context.Context) error { return nil }
func (m *memRedis) Close() error                   { return nil }

func (m *memRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memEntry{val: toString(value)}
	if expiration > 0 {
		e.deadline = time.Now().Add(expiration)
	}
	m.strs[key] = e
	return nil
}

func (m *memRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.strs[key]; ok && !m.expired(e) {
		return false, nil
	}
	e := memEntry{val: toString(value)}
	if expiration > 0 {
		e.deadline = time.Now().Add(expiration)
	}
	m.strs[key] = e
	return true, nil
}

func (m *memRedis) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.strs[key]
	if !ok || m.expired(e) {
		delete(m.strs, key)
		return "", redis.Nil
	}
	return e.val, nil
}

func (m *memRedis) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.strs[key]
	n, _ := strconv.ParseInt(e.val, 10, 64)
	n++
	e.val = strconv.FormatInt(n, 10)
	m.strs[key] = e
	return n, nil
}

func (m *memRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.strs[key]; ok {
		e.deadline = time.Now().Add(expiration)
		m.strs[key] = e
	}
	return nil
}

func (m *memRedis) PTTL(ctx context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.strs[key]
	if !ok || m.expired(e) {
		return pttlMissingKey, nil
	}
	if e.deadline.IsZero() {
		return pttlNoExpiry, nil
	}
	return time.Until(e.deadline), nil
}

func (m *memRedis) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.strs, k)
		delete(m.zsets, k)
		delete(m.hashes, k)
	}
	return nil
}

func (m *memRedis) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(match, "*")
	var keys []string
	for k, e := range m.strs {
		if strings.HasPrefix(k, prefix) && !m.expired(e) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, 0, nil
}

func (m *memRedis) ZAdd(ctx context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	z := m.zsets[key]
	if z == nil {
		z = map[string]float64{}
		m.zsets[key] = z
	}
	z[member] = score
	return nil
}

func (m *memRedis) ZRem(ctx context.Context, key string, members ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	z := m.zsets[key]
	var n int64
	for _, mem := range members {
		if _, ok := z[mem]; ok {
			delete(z, mem)
			n++
		}
	}
	return n, nil
}

func (m *memRedis) zDesc(key string) []string {
	type pair struct {
		member string
		score  float64
	}
	var ps []pair
	for mem, sc := range m.zsets[key] {
		ps = append(ps, pair{mem, sc})
	}
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].score != ps[j].score {
			return ps[i].score > ps[j].score
		}
		return ps[i].member < ps[j].member
	})
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.member
	}
	return out
}

func (m *memRedis) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.zDesc(key)
	if start >= int64(len(all)) {
		return nil, nil
	}
	if stop >= int64(len(all)) {
		stop = int64(len(all)) - 1
	}
	return all[start : stop+1], nil
}

func (m *memRedis) ZRevRank(ctx context.Context, key, member string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, mem := range m.zDesc(key) {
		if mem == member {
			return int64(i), nil
		}
	}
	return 0, redis.Nil
}

func (m *memRedis) ZCard(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.zsets[key])), nil
}

func (m *memRedis) HSet(ctx context.Context, key, field string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hashes[key]
	if h == nil {
		h = map[string]string{}
		m.hashes[key] = h
	}
	h[field] = toString(value)
	return nil
}

func (m *memRedis) HGet(ctx context.Context, key, field string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.hashes[key][field]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memRedis) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hashes[key]
	var n int64
	for _, f := range fields {
		if _, ok := h[f]; ok {
			delete(h, f)
			n++
		}
	}
	return n, nil
}

func (m *memRedis) HLen(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.hashes[key])), nil
}

func (m *memRedis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for f, v := range m.hashes[key] {
		out[f] = v
	}
	return out, nil
}

// Eval only understands the compare-and-delete unlock script.
func (m *memRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(keys) == 1 && len(args) == 1 {
		if e, ok := m.strs[keys[0]]; ok && e.val == toString(args[0]) {
			delete(m.strs, keys[0])
			return int64(1), nil
		}
	}
	return int64(0), nil
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return ""
	}
}
