// Package ta implements the TA Dispatcher: the enclave-lifetime Context,
// per-session state, and the command pipeline that every invocation
// passes through (spec §4.1, §4.4, §9). It is the generalized
// replacement for the teacher's SessionManager
// (internal/signer/session.go) — same "keys never leave enclave-sealed
// storage, open momentarily" discipline, but holding a wallet store
// keyed by many wallet_ids behind many sessions instead of one signer
// key behind one session.
package ta

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/audit"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/config"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/entropy"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/factoryseed"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/sealedstore"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/secmem"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/taerr"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/wallet"
)

// Context is created once in TA_CreateEntryPoint's analogue (Create) and
// destroyed in Destroy; every session and wallet operation within the
// enclave's lifetime flows through it. Holding it explicit rather than
// as package-level state is what lets tests run many independent TAs in
// one process.
type Context struct {
	mu       sync.Mutex
	cfg      *config.TAConfig
	sessions map[string]*Session
	ttl      time.Duration

	store   *sealedstore.Store
	engine  *wallet.Engine
	audit   *audit.Logger
	limiter *audit.ClientRateLimiter
	log     *zap.Logger

	// Security-state counters backing VerifySecurityState/TestSecurityState.
	entropyFailures   atomic.Uint64
	rateLimitTrips    atomic.Uint64
	integrityFailures atomic.Uint64
}

// SecurityStatus summarizes TA health for the operator-facing status
// commands, derived from counters the dispatcher updates as it observes
// each failure class.
type SecurityStatus struct {
	Status            string // "ok", "degraded", or "compromised"
	Version           string
	AuditDropped      uint64
	EntropyFailures   uint64
	RateLimitTrips    uint64
	IntegrityFailures uint64
}

// securityStatus classifies current health: any integrity failure is
// compromised (the Sealed Store fails closed, but a past tamper event
// still taints trust); repeated entropy or rate-limit trouble is
// degraded; otherwise ok.
func (c *Context) securityStatus() SecurityStatus {
	s := SecurityStatus{
		Version:           Version,
		AuditDropped:      c.audit.Dropped(),
		EntropyFailures:   c.entropyFailures.Load(),
		RateLimitTrips:    c.rateLimitTrips.Load(),
		IntegrityFailures: c.integrityFailures.Load(),
	}
	switch {
	case s.IntegrityFailures > 0:
		s.Status = "compromised"
	case s.EntropyFailures > 2 || s.RateLimitTrips > 10:
		s.Status = "degraded"
	default:
		s.Status = "ok"
	}
	return s
}

// Create builds the enclave-lifetime Context: opens the Sealed Store,
// selects the factory-seed source, and starts the audit logger. It is
// the one place factoryseed.Emulated vs factoryseed.KMSBacked is chosen,
// per TAConfig.FactorySeedSource.
func Create(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Context, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var seedSrc factoryseed.Source
	switch cfg.TA.FactorySeedSource {
	case "kms":
		k, err := factoryseed.NewKMSBacked(ctx, cfg.TA.AWSRegion, cfg.TA.LocalStackEndpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("ta: init kms factory seed source: %w", err)
		}
		seedSrc = k
	default:
		seedSrc = factoryseed.NewEmulated()
	}

	// The audit MAC key and the Sealed Store's record key are both
	// derived from the factory seed but under distinct domain labels
	// inside their own packages, so compromising one log doesn't expose
	// wallet ciphertext.
	rootSeed, err := seedSrc.FactorySeed(ctx)
	if err != nil {
		return nil, fmt.Errorf("ta: read factory seed: %w", err)
	}

	store, err := sealedstore.Open(cfg.TA.SealedStoreDir, rootSeed)
	if err != nil {
		return nil, fmt.Errorf("ta: open sealed store: %w", err)
	}

	auditLog, err := audit.NewLogger(cfg.TA.SealedStoreDir+"/audit.log", rootSeed, log, audit.DefaultBuffer)
	if err != nil {
		return nil, fmt.Errorf("ta: open audit log: %w", err)
	}
	auditLog.Start()

	// rootSeed no longer needed in this scope once both derivations above
	// have copied what they need.
	secmem.Zero(rootSeed)

	eu := entropy.New(entropy.CryptoRandSource)
	engine := wallet.New(store, eu, seedSrc, auditLog, log)
	limiter := audit.NewClientRateLimiter(cfg.TA.RateLimitPerMinute, nil)

	ttl := time.Duration(cfg.TA.SessionTTLSec) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &Context{
		cfg:      &cfg.TA,
		sessions: make(map[string]*Session),
		ttl:      ttl,
		store:    store,
		engine:   engine,
		audit:    auditLog,
		limiter:  limiter,
		log:      log,
	}, nil
}

// OpenSession creates a new session bound to callerIdentity and returns
// its id. No secret material is touched here.
func (c *Context) OpenSession(callerIdentity string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Session{
		ID:             uuid.NewString(),
		CallerIdentity: callerIdentity,
		OpenedAt:       time.Now(),
		LastActivity:   time.Now(),
	}
	c.sessions[s.ID] = s
	c.audit.Log(audit.KindSessionOpened, s.ID, "", callerIdentity)
	return s, nil
}

// CloseSession tears down session state. Closing an unknown or
// already-closed session is not an error — CloseSession is idempotent by
// design, matching TEE_CloseSession's fire-and-forget semantics.
func (c *Context) CloseSession(sessionID string) {
	c.mu.Lock()
	_, existed := c.sessions[sessionID]
	delete(c.sessions, sessionID)
	c.mu.Unlock()

	c.limiter.Forget(sessionID)
	if existed {
		c.audit.Log(audit.KindSessionClosed, sessionID, "", "")
	}
}

func (c *Context) session(sessionID string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return nil, taerr.New(taerr.KindNoSession, "unknown or closed session")
	}
	if s.expired(c.ttl) {
		delete(c.sessions, sessionID)
		return nil, taerr.New(taerr.KindNoSession, "session expired")
	}
	s.LastActivity = time.Now()
	return s, nil
}

// checkNonce enforces the monotonic per-session anti-replay nonce for
// mutating commands: nonce must be strictly greater than the session's
// last accepted value. Per spec §8, sending the same nonce twice in a
// session is a BadParameters error, not an access-control failure.
func (c *Context) checkNonce(s *Session, nonce uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if nonce <= s.LastNonce {
		return taerr.New(taerr.KindBadParameters, "replayed or out-of-order nonce")
	}
	s.LastNonce = nonce
	return nil
}

// Destroy stops the audit logger and releases the Sealed Store. No
// Context method may be called afterward.
func (c *Context) Destroy(ctx context.Context) error {
	c.mu.Lock()
	c.sessions = nil
	c.mu.Unlock()

	if err := c.audit.Stop(ctx); err != nil {
		return err
	}
	c.store.Close()
	return nil
}
