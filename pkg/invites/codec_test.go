package invites

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodec(t *testing.T) *TokenCodec {
	t.Helper()
	return NewTokenCodec(testProtector(t))
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	codec := testCodec(t)
	memberID := uuid.New()
	email := "kit@example.com"

	token, err := codec.Issue(memberID, email)
	require.NoError(t, err)

	assert.NoError(t, codec.Validate(token, memberID, email))
}

func TestTokenCodec_Validate_Failures(t *testing.T) {
	codec := testCodec(t)
	memberID := uuid.New()
	email := "kit@example.com"

	token, err := codec.Issue(memberID, email)
	require.NoError(t, err)

	t.Run("wrong member", func(t *testing.T) {
		err := codec.Validate(token, uuid.New(), email)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong email", func(t *testing.T) {
		err := codec.Validate(token, memberID, "other@example.com")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("empty token", func(t *testing.T) {
		err := codec.Validate("", memberID, email)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		err := codec.Validate("not-a-token", memberID, email)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("token sealed under another key", func(t *testing.T) {
		other := testCodec(t)
		foreign, err := other.Issue(memberID, email)
		require.NoError(t, err)

		assert.ErrorIs(t, codec.Validate(foreign, memberID, email), ErrInvalidToken)
	})

	t.Run("single character mutation", func(t *testing.T) {
		for i := 0; i < len(token); i++ {
			replacement := byte('A')
			if token[i] == 'A' {
				replacement = 'B'
			}
			mutated := token[:i] + string(replacement) + token[i+1:]
			if mutated == token {
				continue
			}

			if err := codec.Validate(mutated, memberID, email); err == nil {
				t.Fatalf("mutated token at position %d still validated", i)
			}
		}
	})
}

func TestTokenCodec_Validate_PayloadShape(t *testing.T) {
	codec := testCodec(t)
	memberID := uuid.New()
	email := "kit@example.com"
	issued := strconv.FormatInt(time.Now().UnixMilli(), 10)

	seal := func(t *testing.T, payload string) string {
		t.Helper()
		token, err := codec.protector.Seal(payload)
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name    string
		payload string
	}{
		{
			name:    "wrong field count",
			payload: strings.Join([]string{tokenMarker, memberID.String(), email}, " "),
		},
		{
			name:    "extra field",
			payload: strings.Join([]string{tokenMarker, memberID.String(), email, issued, "extra"}, " "),
		},
		{
			name:    "wrong marker",
			payload: strings.Join([]string{"password-reset", memberID.String(), email, issued}, " "),
		},
		{
			name:    "non-numeric issue instant",
			payload: strings.Join([]string{tokenMarker, memberID.String(), email, "yesterday"}, " "),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := seal(t, tt.payload)
			assert.ErrorIs(t, codec.Validate(token, memberID, email), ErrInvalidToken)
		})
	}
}

func TestTokenCodec_Expiry(t *testing.T) {
	codec := testCodec(t)
	memberID := uuid.New()
	email := "kit@example.com"

	issuedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	codec.Now = func() time.Time { return issuedAt }

	token, err := codec.Issue(memberID, email)
	require.NoError(t, err)

	t.Run("valid immediately", func(t *testing.T) {
		codec.Now = func() time.Time { return issuedAt }
		assert.NoError(t, codec.Validate(token, memberID, email))
	})

	t.Run("valid just inside the window", func(t *testing.T) {
		codec.Now = func() time.Time { return issuedAt.Add(ValidityWindow) }
		assert.NoError(t, codec.Validate(token, memberID, email))
	})

	t.Run("invalid past the window", func(t *testing.T) {
		codec.Now = func() time.Time { return issuedAt.Add(ValidityWindow + time.Second) }
		assert.ErrorIs(t, codec.Validate(token, memberID, email), ErrInvalidToken)
	})

	t.Run("invalid days later", func(t *testing.T) {
		codec.Now = func() time.Time { return issuedAt.Add(30 * 24 * time.Hour) }
		assert.ErrorIs(t, codec.Validate(token, memberID, email), ErrInvalidToken)
	})
}

func TestTokenCodec_ReissueProducesFreshWindow(t *testing.T) {
	codec := testCodec(t)
	memberID := uuid.New()
	email := "kit@example.com"

	issuedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	codec.Now = func() time.Time { return issuedAt }
	stale, err := codec.Issue(memberID, email)
	require.NoError(t, err)

	// Six days later the original token is dead; a reissued one works.
	later := issuedAt.Add(6 * 24 * time.Hour)
	codec.Now = func() time.Time { return later }

	fresh, err := codec.Issue(memberID, email)
	require.NoError(t, err)

	assert.ErrorIs(t, codec.Validate(stale, memberID, email), ErrInvalidToken)
	assert.NoError(t, codec.Validate(fresh, memberID, email))
}
