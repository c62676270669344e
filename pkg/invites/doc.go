// Package invites issues and validates organization invitation tokens.
//
// # Overview
//
// Invitation tokens are AES-256-GCM sealed payloads binding a member identity,
// the invited email address, and the issue instant. They are handed to the
// invited party over email and presented back at accept time; nothing about an
// outstanding invitation is stored server-side beyond the member row itself.
//
// Tokens expire five days after issue. Every validation failure, whether
// tampering, a wrong member, a wrong email, or plain expiry, reports the same
// ErrInvalidToken so callers leak nothing about which check failed.
//
// # Usage Example
//
// Issue and validate:
//
//	key, _ := invites.ParseKey(cfg.Invites.TokenKey)
//	protector, _ := invites.NewProtector(key)
//	codec := invites.NewTokenCodec(protector)
//
//	token, err := codec.Issue(member.ID, member.Email)
//	...
//	if err := codec.Validate(token, member.ID, member.Email); err != nil {
//		// treat as a bad request, regardless of cause
//	}
//
// # Related Packages
//
//   - pkg/orgs: Issues tokens at invite time, validates at accept time
//   - pkg/config: Carries the sealing key
package invites
