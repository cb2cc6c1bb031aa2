package tokenmanager

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/nkiryanov/llmgate/internal/logger"
)

// Set of refresh tokens considered live
// Implementations must be safe for concurrent use
type LiveSet interface {
	Add(token string)
	// Report whether the token was live
	Remove(token string) bool
	Contains(token string) bool
}

// In-process live set bounded both by size and by token lifetime
// Tokens are lost on restart
type MemoryLiveSet struct {
	lru    *expirable.LRU[string, struct{}]
	size   int
	logger logger.Logger
}

func NewMemoryLiveSet(size int, ttl time.Duration, l logger.Logger) *MemoryLiveSet {
	if l == nil {
		l = logger.NewNoOpLogger()
	}
	return &MemoryLiveSet{
		lru:    expirable.NewLRU[string, struct{}](size, nil, ttl),
		size:   size,
		logger: l,
	}
}

// Add token. When the set is full the least recently used session is dropped
func (s *MemoryLiveSet) Add(token string) {
	if evicted := s.lru.Add(token, struct{}{}); evicted {
		s.logger.Warn("Live refresh set is full, oldest session evicted", "size", s.size)
	}
}

// Expired but not yet reaped tokens are removed too, but not reported as live
func (s *MemoryLiveSet) Remove(token string) bool {
	_, live := s.lru.Get(token)
	removed := s.lru.Remove(token)
	return live && removed
}

// Get honours expiration, so use it instead of Contains
func (s *MemoryLiveSet) Contains(token string) bool {
	_, ok := s.lru.Get(token)
	return ok
}

func (s *MemoryLiveSet) Len() int {
	return s.lru.Len()
}
