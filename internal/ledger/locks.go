package ledger

import (
	"fmt"

	"annualstatement/internal/services"
)

// Acquire takes the in-process exclusive lock for a client key. A second
// acquisition before release fails; two runs must never organize the same
// client concurrently. Cross-process serialization is the run lock file,
// handled by the pipeline.
func (s *Store) Acquire(clientKey, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if holder, ok := s.held[clientKey]; ok {
		return services.Wrap(services.ErrConfiguration, "ledger", "acquire",
			fmt.Sprintf("client %s is already locked by run %s", clientKey, holder), nil)
	}
	s.held[clientKey] = runID
	return nil
}

// Release drops the lock for a client key. Releasing a lock held by a
// different run is a no-op.
func (s *Store) Release(clientKey, runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if holder, ok := s.held[clientKey]; ok && holder == runID {
		delete(s.held, clientKey)
	}
}
