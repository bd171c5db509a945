package protocol

import "sync"

// Session is the process-wide, single-entry session state. It is mutated
// only by the handshake pair.
type Session struct {
	mu          sync.RWMutex
	initialized bool
	clientInfo  ClientInfo
}

// NewSession returns an un-initialized session.
func NewSession() *Session {
	return &Session{}
}

// Initialized reports whether the handshake has completed.
func (s *Session) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// CompleteHandshake records clientInfo. It is idempotent: a repeated
// `initialize` simply overwrites clientInfo. It does not itself flip
// initialized; that happens on the following `initialized` notification.
func (s *Session) CompleteHandshake(clientInfo ClientInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientInfo = clientInfo
}

// MarkInitialized sets the session flag, in response to `initialized`.
func (s *Session) MarkInitialized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
}

// ClientInfo returns the client info recorded at handshake.
func (s *Session) ClientInfo() ClientInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientInfo
}
