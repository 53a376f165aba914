package service

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v2"
	"go.uber.org/zap"
)

const (
	codeMin   = 100000
	codeRange = 900000
)

// CodeCache holds the live one-time code of every email that asked for a
// password reset. Entries expire after the configured TTL and a new code
// for the same email replaces the previous one.
type CodeCache struct {
	// Guards the get-compare-remove sequence in Consume
	mu    sync.Mutex
	cache *ttlcache.Cache
}

func NewCodeCache(ttl time.Duration) (*CodeCache, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("one-time code ttl must be positive, got %v", ttl)
	}

	c := ttlcache.NewCache()
	c.SkipTTLExtensionOnHit(true)

	if err := c.SetTTL(ttl); err != nil {
		return nil, fmt.Errorf("failed to set code ttl, %w", err)
	}

	zap.L().Debug("One-time code cache ready", zap.Duration("ttl", ttl))

	return &CodeCache{cache: c}, nil
}

// Issue generates a fresh 6 digit code for email and stores it
func (c *CodeCache) Issue(email string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", fmt.Errorf("failed to generate code, %w", err)
	}

	code := fmt.Sprintf("%06d", n.Int64()+codeMin)

	if err := c.Put(email, code); err != nil {
		return "", err
	}

	return code, nil
}

// Put stores code for email, replacing any live one
func (c *CodeCache) Put(email, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.cache.Set(email, code); err != nil {
		return fmt.Errorf("failed to store code, %w", err)
	}

	return nil
}

// Consume reports whether code is the live code of email. A matching code
// is removed so it can't be used twice.
func (c *CodeCache) Consume(email, code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, err := c.cache.Get(email)
	if err != nil {
		if !errors.Is(err, ttlcache.ErrNotFound) {
			zap.L().Warn("Failed to read one-time code", zap.Error(err))
		}
		return false
	}

	live, ok := v.(string)
	if !ok || code == "" || subtle.ConstantTimeCompare([]byte(live), []byte(code)) != 1 {
		return false
	}

	if err := c.cache.Remove(email); err != nil {
		zap.L().Warn("Failed to remove used one-time code", zap.Error(err))
	}

	return true
}

// Revoke removes code if it is still the live code of email. A newer code
// issued in the meantime is left alone.
func (c *CodeCache) Revoke(email, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, err := c.cache.Get(email)
	if err != nil {
		return
	}

	if live, ok := v.(string); !ok || live != code {
		return
	}

	if err := c.cache.Remove(email); err != nil {
		zap.L().Warn("Failed to revoke one-time code", zap.Error(err))
	}
}

// Close stops the expiry goroutine of the cache
func (c *CodeCache) Close() error {
	return c.cache.Close()
}
