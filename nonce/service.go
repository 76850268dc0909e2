// Package nonce implements ChallengeManager (component E): issuing
// short-lived, audience-bound anti-replay nonces and validating them
// exactly once. It re-specifies the contract core/nonce_test.go in the
// teacher documents (NewNonceService/Nonce/Valid) against a Redis-
// equivalent expiring store, since spec.md §1/§6 requires that
// capability rather than the teacher's in-memory windowed counter.
package nonce

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/jmhodges/clock"

	"github.com/88448844/self-sovereign-identity-SSI/core"
)

const ttlSeconds = 300

// validateScript atomically inspects the stored "<aud>|<exp>" value and
// decides whether to delete it, implementing the spec.md §4.E
// "scripted get-and-delete": deletion happens only when the nonce is
// consumed successfully, or lazily on expiry detection; a bare
// audience mismatch leaves the nonce untouched for retry.
const validateScript = `
local v = redis.call('GET', KEYS[1])
if not v then
  return {0, 'nonce not found'}
end
local sep = string.find(v, '|')
if not sep then
  return {0, 'nonce not found'}
end
local aud = string.sub(v, 1, sep - 1)
local exp = tonumber(string.sub(v, sep + 1))
if aud ~= ARGV[1] then
  return {0, 'aud mismatch'}
end
if exp < tonumber(ARGV[2]) then
  redis.call('DEL', KEYS[1])
  return {0, 'expired'}
end
redis.call('DEL', KEYS[1])
return {1, 'ok'}
`

// Service issues and validates challenges against an ExpiringStore.
type Service struct {
	Store core.ExpiringStore
	Clock clock.Clock
}

func New(store core.ExpiringStore, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.New()
	}
	return &Service{Store: store, Clock: clk}
}

func key(nonce string) string { return "ch:" + nonce }

// Issue mints a fresh nonce bound to aud, valid for 300 seconds.
func (s *Service) Issue(ctx context.Context, aud string) (core.Challenge, error) {
	raw := make([]byte, 12)
	if _, err := rand.Read(raw); err != nil {
		return core.Challenge{}, fmt.Errorf("nonce: generating random bytes: %w", err)
	}
	n := base64.RawURLEncoding.EncodeToString(raw)
	now := s.Clock.Now().Unix()
	exp := now + ttlSeconds

	value := fmt.Sprintf("%s|%d", aud, exp)
	if err := s.Store.Set(ctx, key(n), value, ttlSeconds); err != nil {
		return core.Challenge{}, fmt.Errorf("nonce: storing challenge: %w", err)
	}
	return core.Challenge{Nonce: n, Aud: aud, Exp: exp}, nil
}

// Validate consumes nonce if it exists, is bound to aud, and has not
// expired. A nonce may be validated at most once (spec.md §3 invariant
// 4, §8 single-use property).
func (s *Service) Validate(ctx context.Context, n, aud string) (bool, string, error) {
	now := s.Clock.Now().Unix()
	res, err := s.Store.Eval(ctx, validateScript, []string{key(n)}, aud, now)
	if err != nil {
		return false, "", fmt.Errorf("nonce: validating: %w", err)
	}
	ok, reason, err := decodeValidateResult(res)
	if err != nil {
		return false, "", err
	}
	return ok, reason, nil
}

// decodeValidateResult unpacks the {ok, reason} pair returned by
// validateScript. Redis client libraries typically surface a Lua table
// reply as []interface{}; this accepts that shape plus a couple of
// equally plausible decodings so test doubles can return whichever is
// convenient.
func decodeValidateResult(res interface{}) (bool, string, error) {
	switch v := res.(type) {
	case []interface{}:
		if len(v) != 2 {
			return false, "", fmt.Errorf("nonce: unexpected script result shape %#v", res)
		}
		ok, err := toBool(v[0])
		if err != nil {
			return false, "", err
		}
		reason, _ := v[1].(string)
		return ok, reason, nil
	case [2]interface{}:
		ok, err := toBool(v[0])
		if err != nil {
			return false, "", err
		}
		reason, _ := v[1].(string)
		return ok, reason, nil
	default:
		return false, "", fmt.Errorf("nonce: unexpected script result type %T", res)
	}
}

func toBool(v interface{}) (bool, error) {
	switch n := v.(type) {
	case int64:
		return n == 1, nil
	case int:
		return n == 1, nil
	case bool:
		return n, nil
	default:
		return false, fmt.Errorf("nonce: unexpected ok field type %T", v)
	}
}
