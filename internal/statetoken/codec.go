package statetoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/helion-labs/calconnect-core/internal/core/domain"
)

// DefaultTTL is how long a signed state remains valid.
const DefaultTTL = 15 * time.Minute

// Payload is the data carried through the OAuth redirect. The timestamp is
// Unix milliseconds and bounds the replay window.
type Payload struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Origin   string `json:"origin,omitempty"`
	TS       int64  `json:"ts"`
}

// Codec signs and verifies OAuth state tokens.
// The token travels through an untrusted browser redirect: it needs
// integrity, not confidentiality. Wire format:
//
//	base64url(JSON payload) + "." + hex(HMAC-SHA256(base64 portion))
type Codec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithTTL overrides the default validity window.
func WithTTL(ttl time.Duration) Option {
	return func(c *Codec) { c.ttl = ttl }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec creates a state token codec signing with the given key.
func NewCodec(key []byte, opts ...Option) *Codec {
	c := &Codec{
		key: key,
		ttl: DefaultTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sign serializes the payload, stamping it with the current time if unset,
// and returns the signed token.
func (c *Codec) Sign(p Payload) (string, error) {
	if p.TS == 0 {
		p.TS = c.now().UnixMilli()
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return encoded + "." + c.signature(encoded), nil
}

// Verify checks the token's signature and replay window and returns the
// payload. Every failure mode collapses into domain.ErrInvalidState so the
// response cannot be used as an oracle for which check failed.
func (c *Codec) Verify(token string) (*Payload, error) {
	idx := strings.LastIndex(token, ".")
	if idx <= 0 || idx == len(token)-1 {
		return nil, domain.ErrInvalidState
	}

	encoded, sig := token[:idx], token[idx+1:]
	if !hmac.Equal([]byte(sig), []byte(c.signature(encoded))) {
		return nil, domain.ErrInvalidState
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, domain.ErrInvalidState
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, domain.ErrInvalidState
	}

	issued := time.UnixMilli(p.TS)
	if c.now().Sub(issued) > c.ttl {
		return nil, domain.ErrInvalidState
	}

	return &p, nil
}

func (c *Codec) signature(encoded string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(encoded))
	return hex.EncodeToString(mac.Sum(nil))
}
