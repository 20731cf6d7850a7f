package server

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"blockstream/logger"
	"blockstream/parser"
)

// StreamSession is a cached streaming parse. Callers hold mu while feeding
// so each Feed sees a superset of the previous text.
type StreamSession struct {
	mu      sync.Mutex
	ID      string
	Session *parser.Session
	Created time.Time
}

// SessionCache keeps streaming sessions between requests. Idle sessions
// expire after the TTL and are removed by the cache janitor.
type SessionCache struct {
	cache *cache.Cache
	mu    sync.Mutex
	log   logger.Logger
}

// NewSessionCache creates a cache whose entries expire ttl after last use
func NewSessionCache(ttl time.Duration, log logger.Logger) *SessionCache {
	if log == nil {
		log = logger.Nop()
	}
	c := &SessionCache{cache: cache.New(ttl, cleanupInterval(ttl)), log: log}
	c.cache.OnEvicted(func(id string, _ interface{}) {
		c.log.Debug(logger.ComponentServer, logger.CategorySession, id, "Streaming session evicted", nil)
	})
	return c
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if interval := ttl / 2; interval > time.Second {
		return interval
	}
	return time.Second
}

// GetOrCreate returns the session for id, creating it on first use. Every
// call extends the session's lifetime.
func (c *SessionCache) GetOrCreate(id string) *StreamSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.cache.Get(id); ok {
		s := v.(*StreamSession)
		c.cache.SetDefault(id, s)
		return s
	}
	s := &StreamSession{ID: id, Session: parser.NewSession(c.log, id), Created: time.Now()}
	c.cache.SetDefault(id, s)
	c.log.Debug(logger.ComponentServer, logger.CategorySession, id, "Streaming session created", nil)
	return s
}

// Get returns an existing session
func (c *SessionCache) Get(id string) (*StreamSession, bool) {
	v, ok := c.cache.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*StreamSession), true
}

// Remove drops a session
func (c *SessionCache) Remove(id string) {
	c.cache.Delete(id)
}

// Len returns the number of live sessions
func (c *SessionCache) Len() int {
	return c.cache.ItemCount()
}

// CleanupExpiredSessions removes expired sessions now instead of waiting for
// the janitor
func (c *SessionCache) CleanupExpiredSessions() {
	c.cache.DeleteExpired()
}
