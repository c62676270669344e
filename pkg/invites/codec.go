package invites

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ValidityWindow is how long an issued invitation token remains acceptable.
const ValidityWindow = 5 * 24 * time.Hour

// tokenMarker makes tokens single-purpose: a sealed payload minted for any
// other flow can never pass invitation validation. It also anchors the payload
// format, so a revised layout can ship under a new marker while old tokens
// still validate.
const tokenMarker = "org-invite"

// ErrInvalidToken is returned for every validation failure: corruption, wrong
// key, malformed payload, member or email mismatch, and expiry all look the
// same to the caller.
var ErrInvalidToken = errors.New("invites: invalid token")

// TokenCodec issues and validates invitation tokens. A token binds the member
// identity, the invited email address, and the issue instant; nothing else is
// carried, and nothing is stored server-side.
type TokenCodec struct {
	protector *Protector

	// Now is the clock used for issue instants and expiry checks.
	// Overridable in tests.
	Now func() time.Time
}

// NewTokenCodec creates a codec over the given protector
func NewTokenCodec(protector *Protector) *TokenCodec {
	return &TokenCodec{
		protector: protector,
		Now:       time.Now,
	}
}

// Issue mints a token for the member and invitation email
func (c *TokenCodec) Issue(memberID uuid.UUID, email string) (string, error) {
	payload := strings.Join([]string{
		tokenMarker,
		memberID.String(),
		email,
		strconv.FormatInt(c.Now().UnixMilli(), 10),
	}, " ")
	return c.protector.Seal(payload)
}

// Validate checks a token against the expected member identity and email.
// Any failure is reported as ErrInvalidToken; callers must not try to tell
// forgery apart from expiry.
func (c *TokenCodec) Validate(token string, memberID uuid.UUID, email string) error {
	payload, err := c.protector.Open(token)
	if err != nil {
		return ErrInvalidToken
	}

	fields := strings.Split(payload, " ")
	if len(fields) != 4 {
		return ErrInvalidToken
	}
	if fields[0] != tokenMarker {
		return ErrInvalidToken
	}
	if fields[1] != memberID.String() {
		return ErrInvalidToken
	}
	if fields[2] != email {
		return ErrInvalidToken
	}

	issuedMilli, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return ErrInvalidToken
	}
	issued := time.UnixMilli(issuedMilli)
	if c.Now().Sub(issued) > ValidityWindow {
		return ErrInvalidToken
	}

	return nil
}
