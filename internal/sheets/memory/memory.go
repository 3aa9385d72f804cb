package memory

import (
	"context"
	"fmt"
	"sync"

	"propledger/internal/core"
	ports "propledger/internal/sheets"
)

var _ ports.InstanceWriter = (*Store)(nil)

// Store keeps mirrored transactions in memory, for tests and local runs
// without Google credentials.
type Store struct {
	mu    sync.Mutex
	items []core.TransactionInstance
}

func New() *Store {
	return &Store{}
}

// AppendInstance stores the transaction and returns a synthetic row reference.
func (s *Store) AppendInstance(_ context.Context, inst core.TransactionInstance) (string, error) {
	if err := inst.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, inst)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Instances returns a copy of everything appended so far.
func (s *Store) Instances() []core.TransactionInstance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.TransactionInstance(nil), s.items...)
}
