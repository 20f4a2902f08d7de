package cache

import (
	"context"
	"errors"
	"time"
)

// ErrValueTooLarge is returned by Set when a value exceeds WithMaxValueBytes
// after compression.
var ErrValueTooLarge = errors.New("cache: value exceeds max size")

// valueCodec is one reversible step between callers and a backend. decode
// must hand back bodies it does not recognise untouched, unless the codec
// requires its own framing.
type valueCodec interface {
	encode(key string, value []byte) ([]byte, error)
	decode(key string, body []byte) ([]byte, error)
}

// envelopeStore pipes values through its codecs in order on Set and in
// reverse order on Get. Expiry and deletion go straight to the backend.
type envelopeStore struct {
	inner  Store
	codecs []valueCodec
}

func wrapStore(inner Store, codecs ...valueCodec) Store {
	var kept []valueCodec
	for _, c := range codecs {
		if c != nil {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return inner
	}
	return &envelopeStore{inner: inner, codecs: kept}
}

func (s *envelopeStore) Driver() Driver { return s.inner.Driver() }

func (s *envelopeStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return body, ok, err
	}
	for i := len(s.codecs) - 1; i >= 0; i-- {
		if body, err = s.codecs[i].decode(key, body); err != nil {
			return nil, false, err
		}
	}
	return body, true, nil
}

func (s *envelopeStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	body := value
	for _, c := range s.codecs {
		var err error
		if body, err = c.encode(key, body); err != nil {
			return err
		}
	}
	return s.inner.Set(ctx, key, body, ttl)
}

func (s *envelopeStore) Touch(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.inner.Touch(ctx, key, ttl)
}

func (s *envelopeStore) Delete(ctx context.Context, key string) (bool, error) {
	return s.inner.Delete(ctx, key)
}

func (s *envelopeStore) DeleteMany(ctx context.Context, keys ...string) error {
	return s.inner.DeleteMany(ctx, keys...)
}

func (s *envelopeStore) Flush(ctx context.Context) error { return s.inner.Flush(ctx) }

// sizeLimit rejects encoded values over max bytes.
type sizeLimit int

func newSizeLimit(max int) valueCodec {
	if max <= 0 {
		return nil
	}
	return sizeLimit(max)
}

func (l sizeLimit) encode(_ string, value []byte) ([]byte, error) {
	if len(value) > int(l) {
		return nil, ErrValueTooLarge
	}
	return value, nil
}

func (l sizeLimit) decode(_ string, body []byte) ([]byte, error) { return body, nil }
