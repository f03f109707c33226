// Package identity provides core.Identity implementations: a fixed account
// and a file-backed account that follows edits to the file.
package identity

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/JPrieve/web3-notes/pkg/core"
)

// Static is an account set in code. The zero value is disconnected.
type Static struct {
	mu   sync.RWMutex
	addr common.Address
}

var _ core.Identity = (*Static)(nil)

// NewStatic returns a Static connected as addr.
func NewStatic(addr common.Address) *Static {
	return &Static{addr: addr}
}

// Address implements core.Identity.
func (s *Static) Address() (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr, s.addr != (common.Address{})
}

// Set switches the account. The zero address disconnects.
func (s *Static) Set(addr common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addr = addr
}
