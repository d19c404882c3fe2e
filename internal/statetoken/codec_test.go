package statetoken

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/helion-labs/calconnect-core/internal/core/domain"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestCodec_RoundTrip(t *testing.T) {
	codec := NewCodec(testKey)

	token, err := codec.Sign(Payload{
		TenantID: "tenant-a",
		UserID:   "user-1",
		Origin:   "https://app.example.com",
	})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	got, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if got.TenantID != "tenant-a" {
		t.Errorf("TenantID: got %q, want %q", got.TenantID, "tenant-a")
	}
	if got.UserID != "user-1" {
		t.Errorf("UserID: got %q, want %q", got.UserID, "user-1")
	}
	if got.Origin != "https://app.example.com" {
		t.Errorf("Origin: got %q, want %q", got.Origin, "https://app.example.com")
	}
	if got.TS == 0 {
		t.Error("expected TS to be stamped")
	}
}

func TestCodec_TokenFormat(t *testing.T) {
	codec := NewCodec(testKey)

	token, err := codec.Sign(Payload{TenantID: "tenant-a", UserID: "user-1"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		t.Fatalf("expected payload.signature, got %d parts", len(parts))
	}
	// hex-encoded HMAC-SHA256 is 64 characters
	if len(parts[1]) != 64 {
		t.Errorf("signature length: got %d, want 64", len(parts[1]))
	}
}

func TestCodec_TamperDetection(t *testing.T) {
	codec := NewCodec(testKey)

	token, err := codec.Sign(Payload{TenantID: "tenant-a", UserID: "user-1"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	// Flipping any byte of the token must invalidate it.
	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			continue
		}
		mutated := []byte(token)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		if string(mutated) == token {
			continue
		}
		if _, err := codec.Verify(string(mutated)); !errors.Is(err, domain.ErrInvalidState) {
			t.Errorf("byte %d: expected ErrInvalidState, got %v", i, err)
		}
	}
}

func TestCodec_WrongKey(t *testing.T) {
	signer := NewCodec(testKey)
	verifier := NewCodec([]byte("another-key-entirely-32-bytes-xx"))

	token, err := signer.Sign(Payload{TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := verifier.Verify(token); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestCodec_ReplayTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		age     time.Duration
		wantErr bool
	}{
		{"fresh", 0, false},
		{"14 minutes old", 14 * time.Minute, false},
		{"16 minutes old", 16 * time.Minute, true},
		{"a day old", 24 * time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec := NewCodec(testKey, WithClock(func() time.Time { return now }))

			token, err := codec.Sign(Payload{
				TenantID: "tenant-a",
				TS:       now.Add(-tt.age).UnixMilli(),
			})
			if err != nil {
				t.Fatalf("Sign: %v", err)
			}

			_, err = codec.Verify(token)
			if tt.wantErr && !errors.Is(err, domain.ErrInvalidState) {
				t.Errorf("expected ErrInvalidState, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected valid token, got %v", err)
			}
		})
	}
}

func TestCodec_MalformedTokens(t *testing.T) {
	codec := NewCodec(testKey)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"no separator", "eyJ0ZW5hbnQiOiJhIn0"},
		{"empty payload", ".deadbeef"},
		{"empty signature", "eyJ0ZW5hbnQiOiJhIn0."},
		{"garbage", "not-a-token-at-all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := codec.Verify(tt.token); !errors.Is(err, domain.ErrInvalidState) {
				t.Errorf("expected ErrInvalidState, got %v", err)
			}
		})
	}
}
