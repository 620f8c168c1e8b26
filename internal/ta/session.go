package ta

import "time"

// Session is the per-OpenSession state the spec requires replacing any
// global singleton with (spec §9): a session_id, the caller identity
// presented at open time, the last accepted anti-replay nonce, and
// activity timestamps used for TTL expiry.
type Session struct {
	ID                string
	CallerIdentity    string
	AuthenticatedUser string
	LastNonce         uint64
	OpenedAt          time.Time
	LastActivity      time.Time
}

func (s *Session) expired(ttl time.Duration) bool {
	return time.Since(s.LastActivity) > ttl
}
