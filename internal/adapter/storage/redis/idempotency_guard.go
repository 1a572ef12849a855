package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Each reference is one hash: state, token, checksum and, once committed, outcome.
// The key TTL is the lease while IN_PROGRESS and the retention window once COMMITTED,
// so a crashed holder's claim disappears on its own.
const (
	fieldState    = "state"
	fieldToken    = "token"
	fieldChecksum = "checksum"
	fieldOutcome  = "outcome"
)

// KEYS[1] reference key. ARGV: token, checksum, lease ms.
// Returns {1} when claimed, otherwise {0, state, checksum, outcome}.
var claimScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('HSET', KEYS[1], 'state', 'IN_PROGRESS', 'token', ARGV[1], 'checksum', ARGV[2])
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
	return {1}
end
local rec = redis.call('HMGET', KEYS[1], 'state', 'checksum', 'outcome')
return {0, rec[1] or '', rec[2] or '', rec[3] or ''}
`)

// KEYS[1] reference key. ARGV: token, outcome json, retention ms.
var commitScript = goredis.NewScript(`
local rec = redis.call('HMGET', KEYS[1], 'state', 'token')
if rec[1] ~= 'IN_PROGRESS' or rec[2] ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'state', 'COMMITTED', 'outcome', ARGV[2])
redis.call('HDEL', KEYS[1], 'token')
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// KEYS[1] reference key. ARGV: token.
var releaseScript = goredis.NewScript(`
local rec = redis.call('HMGET', KEYS[1], 'state', 'token')
if rec[1] == 'IN_PROGRESS' and rec[2] == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// IdempotencyGuard implements ports.IdempotencyGuard on Redis. Claim, commit and
// release are single Lua scripts, so they are atomic across every replica
// sharing the Redis instance.
type IdempotencyGuard struct {
	client    *goredis.Client
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewIdempotencyGuard creates a Redis-backed guard. Committed references are
// remembered for retention.
func NewIdempotencyGuard(client *goredis.Client, retention time.Duration) *IdempotencyGuard {
	return &IdempotencyGuard{
		client:    client,
		prefix:    "settlement:ref:",
		retention: retention,
		now:       time.Now,
	}
}

// Claim attempts to move referenceID from unclaimed to IN_PROGRESS.
func (g *IdempotencyGuard) Claim(ctx context.Context, referenceID, checksum string, leaseDuration time.Duration) (*domain.ClaimResult, error) {
	if leaseDuration <= 0 {
		return nil, fmt.Errorf("claim %s: lease duration must be positive", referenceID)
	}

	token := uuid.NewString()
	expiresAt := g.now().Add(leaseDuration)

	res, err := claimScript.Run(ctx, g.client, []string{g.key(referenceID)},
		token, checksum, leaseDuration.Milliseconds()).Slice()
	if err != nil {
		return nil, fmt.Errorf("redis claim %s: %w", referenceID, err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("redis claim %s: empty script reply", referenceID)
	}

	if claimed, _ := res[0].(int64); claimed == 1 {
		return &domain.ClaimResult{
			Status: domain.ClaimStatusClaimed,
			Lease: &domain.Lease{
				ReferenceID: referenceID,
				Token:       token,
				Checksum:    checksum,
				ExpiresAt:   expiresAt,
			},
		}, nil
	}

	if len(res) < 4 {
		return nil, fmt.Errorf("redis claim %s: malformed script reply", referenceID)
	}
	state, _ := res[1].(string)
	storedChecksum, _ := res[2].(string)
	rawOutcome, _ := res[3].(string)

	record := &domain.IdempotencyRecord{
		ReferenceID: referenceID,
		State:       domain.ClaimState(state),
		Checksum:    storedChecksum,
	}

	switch record.State {
	case domain.ClaimStateCommitted:
		outcome, err := decodeOutcome(rawOutcome)
		if err != nil {
			return nil, fmt.Errorf("redis claim %s: %w", referenceID, err)
		}
		record.Outcome = outcome
		return &domain.ClaimResult{Status: domain.ClaimStatusAlreadyCommitted, Record: record}, nil
	case domain.ClaimStateInProgress:
		return &domain.ClaimResult{Status: domain.ClaimStatusAlreadyInProgress, Record: record}, nil
	default:
		return nil, fmt.Errorf("redis claim %s: unexpected state %q", referenceID, state)
	}
}

// Commit records the outcome and keeps the reference for the retention window.
// Returns ports.ErrLeaseLost when the lease expired or another holder claimed since.
func (g *IdempotencyGuard) Commit(ctx context.Context, lease *domain.Lease, outcome *domain.SettlementOutcome) error {
	if lease == nil {
		return ports.ErrLeaseLost
	}
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}

	ok, err := commitScript.Run(ctx, g.client, []string{g.key(lease.ReferenceID)},
		lease.Token, string(payload), g.retention.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis commit %s: %w", lease.ReferenceID, err)
	}
	if ok != 1 {
		return fmt.Errorf("commit %s: %w", lease.ReferenceID, ports.ErrLeaseLost)
	}
	return nil
}

// Release deletes the IN_PROGRESS record if the lease still owns it.
func (g *IdempotencyGuard) Release(ctx context.Context, lease *domain.Lease) error {
	if lease == nil {
		return ports.ErrLeaseLost
	}
	n, err := releaseScript.Run(ctx, g.client, []string{g.key(lease.ReferenceID)}, lease.Token).Int()
	if err != nil {
		return fmt.Errorf("redis release %s: %w", lease.ReferenceID, err)
	}
	if n == 0 {
		return fmt.Errorf("release %s: %w", lease.ReferenceID, ports.ErrLeaseLost)
	}
	return nil
}

// Holds reports whether the lease still owns an IN_PROGRESS reference.
func (g *IdempotencyGuard) Holds(ctx context.Context, lease *domain.Lease) (bool, error) {
	if lease == nil || lease.Token == "" {
		return false, nil
	}
	vals, err := g.client.HMGet(ctx, g.key(lease.ReferenceID), fieldState, fieldToken).Result()
	if err != nil {
		return false, fmt.Errorf("redis holds %s: %w", lease.ReferenceID, err)
	}
	state, _ := vals[0].(string)
	token, _ := vals[1].(string)
	return state == string(domain.ClaimStateInProgress) && token == lease.Token, nil
}

// Get returns the stored record for referenceID, or nil if it is unclaimed.
func (g *IdempotencyGuard) Get(ctx context.Context, referenceID string) (*domain.IdempotencyRecord, error) {
	key := g.key(referenceID)
	fields, err := g.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", referenceID, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	record := &domain.IdempotencyRecord{
		ReferenceID: referenceID,
		State:       domain.ClaimState(fields[fieldState]),
		LeaseToken:  fields[fieldToken],
		Checksum:    fields[fieldChecksum],
	}
	if raw := fields[fieldOutcome]; raw != "" {
		if record.Outcome, err = decodeOutcome(raw); err != nil {
			return nil, fmt.Errorf("redis get %s: %w", referenceID, err)
		}
	}

	ttl, err := g.client.PTTL(ctx, key).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("redis ttl %s: %w", referenceID, err)
	}
	if ttl > 0 {
		record.ExpiresAt = g.now().Add(ttl)
	}
	return record, nil
}

func (g *IdempotencyGuard) key(referenceID string) string {
	return g.prefix + referenceID
}

func decodeOutcome(raw string) (*domain.SettlementOutcome, error) {
	if raw == "" {
		return nil, errors.New("committed reference has no outcome")
	}
	var outcome domain.SettlementOutcome
	if err := json.Unmarshal([]byte(raw), &outcome); err != nil {
		return nil, fmt.Errorf("decode outcome: %w", err)
	}
	return &outcome, nil
}
