package testutil

import (
	"fmt"
	"sync"
)

// StubTokenSource returns sequential link tokens ("token-1", "token-2")
// and audit codes ("100001", "100002"). Safe for concurrent use.
type StubTokenSource struct {
	mu     sync.Mutex
	tokens int
	codes  int
}

func NewStubTokenSource() *StubTokenSource {
	return &StubTokenSource{}
}

func (s *StubTokenSource) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens++
	return fmt.Sprintf("token-%d", s.tokens)
}

func (s *StubTokenSource) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes++
	return fmt.Sprintf("%06d", 100000+s.codes)
}
