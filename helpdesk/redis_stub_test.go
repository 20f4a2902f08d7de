package helpdesk

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// stubRedis is an in-memory RedisClient for unit tests.
type stubRedis struct {
	strings map[string]string
	ttl     map[string]time.Duration
	hashes  map[string]map[string]string
	zsets   map[string]map[string]float64

	hsetErr    error
	getErr     error
	hgetallErr error
	delErr     error
}

func newStubRedis() *stubRedis {
	return &stubRedis{
		strings: map[string]string{},
		ttl:     map[string]time.Duration{},
		hashes:  map[string]map[string]string{},
		zsets:   map[string]map[string]float64{},
	}
}

func (s *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if s.getErr != nil {
		cmd.SetErr(s.getErr)
		return cmd
	}
	v, ok := s.strings[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (s *stubRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	s.strings[key] = value.(string)
	s.ttl[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

func (s *stubRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	_, ok := s.strings[key]
	if ok {
		s.ttl[key] = expiration
	}
	cmd.SetVal(ok)
	return cmd
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if s.delErr != nil {
		cmd.SetErr(s.delErr)
		return cmd
	}
	var n int64
	for _, k := range keys {
		if _, ok := s.strings[k]; ok {
			delete(s.strings, k)
			delete(s.ttl, k)
			n++
		}
		if _, ok := s.hashes[k]; ok {
			delete(s.hashes, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func (s *stubRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	n, _ := strconv.ParseInt(s.strings[key], 10, 64)
	n++
	s.strings[key] = strconv.FormatInt(n, 10)
	cmd.SetVal(n)
	return cmd
}

func (s *stubRedis) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if s.hsetErr != nil {
		cmd.SetErr(s.hsetErr)
		return cmd
	}
	h := s.hash(key)
	var added int64
	for i := 0; i+1 < len(values); i += 2 {
		field := values[i].(string)
		if _, ok := h[field]; !ok {
			added++
		}
		h[field] = values[i+1].(string)
	}
	cmd.SetVal(added)
	return cmd
}

func (s *stubRedis) HSetNX(ctx context.Context, key, field string, value interface{}) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	h := s.hash(key)
	if _, ok := h[field]; ok {
		cmd.SetVal(false)
		return cmd
	}
	h[field] = value.(string)
	cmd.SetVal(true)
	return cmd
}

func (s *stubRedis) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	cmd := redis.NewMapStringStringCmd(ctx)
	if s.hgetallErr != nil {
		cmd.SetErr(s.hgetallErr)
		return cmd
	}
	out := map[string]string{}
	for k, v := range s.hashes[key] {
		out[k] = v
	}
	cmd.SetVal(out)
	return cmd
}

func (s *stubRedis) ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	z, ok := s.zsets[key]
	if !ok {
		z = map[string]float64{}
		s.zsets[key] = z
	}
	for _, m := range members {
		z[m.Member.(string)] = m.Score
	}
	cmd.SetVal(int64(len(members)))
	return cmd
}

func (s *stubRedis) ZPopMax(ctx context.Context, key string, count ...int64) *redis.ZSliceCmd {
	cmd := redis.NewZSliceCmd(ctx)
	z := s.zsets[key]
	members := make([]redis.Z, 0, len(z))
	for m, score := range z {
		members = append(members, redis.Z{Member: m, Score: score})
	}
	// redis orders equal scores lexicographically; ZPOPMAX takes the greatest
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].Member.(string) > members[j].Member.(string)
	})
	n := int64(1)
	if len(count) > 0 {
		n = count[0]
	}
	if int64(len(members)) > n {
		members = members[:n]
	}
	for _, m := range members {
		delete(z, m.Member.(string))
	}
	cmd.SetVal(members)
	return cmd
}

func (s *stubRedis) ZCard(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(s.zsets[key])))
	return cmd
}

func (s *stubRedis) hash(key string) map[string]string {
	h, ok := s.hashes[key]
	if !ok {
		h = map[string]string{}
		s.hashes[key] = h
	}
	return h
}
