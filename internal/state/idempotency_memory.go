package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type MemoryIdempotencyCache struct {
	mu      sync.RWMutex
	records map[string]map[string]map[string]IdempotencyRecord // actor -> endpoint -> keyhash -> record
}

func NewMemoryIdempotencyCache() *MemoryIdempotencyCache {
	return &MemoryIdempotencyCache{
		records: make(map[string]map[string]map[string]IdempotencyRecord),
	}
}

func (c *MemoryIdempotencyCache) GetIdempotency(ctx context.Context, actor string, endpoint string, idemKeyHash string) (IdempotencyRecord, bool, error) {
	c.mu.RLock()
	rec, ok := c.records[actor][endpoint][idemKeyHash]
	c.mu.RUnlock()

	if !ok {
		return IdempotencyRecord{}, false, nil
	}

	// TTL enforcement
	if time.Now().UTC().After(rec.ExpiresAt) {
		c.mu.Lock()
		delete(c.records[actor][endpoint], idemKeyHash)
		c.mu.Unlock()
		return IdempotencyRecord{}, false, nil
	}

	return rec, true, nil
}

func (c *MemoryIdempotencyCache) PutIdempotency(ctx context.Context, actor string, endpoint string, idemKeyHash string, rec IdempotencyRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	byActor, ok := c.records[actor]
	if !ok {
		byActor = make(map[string]map[string]IdempotencyRecord)
		c.records[actor] = byActor
	}
	ep, ok := byActor[endpoint]
	if !ok {
		ep = make(map[string]IdempotencyRecord)
		byActor[endpoint] = ep
	}
	ep[idemKeyHash] = rec
	return nil
}

// Helper for hashing idempotency keys deterministically
func HashIdempotencyKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
