package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agriexport/dispatchboard/core/dispatch"
	"github.com/agriexport/dispatchboard/core/model"
)

// Notifier mirrors the dispatch.Notifier interface.
type Notifier = dispatch.Notifier

// MockNotifier records notices in memory and answers immediately. It backs
// the CLI dry-run mode and tests.
type MockNotifier struct {
	Notices map[string]model.DispatchNotice
	// FailIDs makes publishing to these vehicles fail.
	FailIDs map[string]bool
	// RejectIDs makes these vehicles answer with a negative ack.
	RejectIDs map[string]bool
	// SilentIDs never answer, so WaitForAck times out.
	SilentIDs  map[string]bool
	AckResults map[string]bool
	mu         sync.Mutex
}

// NewMockNotifier creates a new MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		Notices:    make(map[string]model.DispatchNotice),
		FailIDs:    make(map[string]bool),
		RejectIDs:  make(map[string]bool),
		SilentIDs:  make(map[string]bool),
		AckResults: make(map[string]bool),
	}
}

// SendNotice records the notice or returns an error if configured to fail.
func (m *MockNotifier) SendNotice(_ context.Context, n model.DispatchNotice) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[n.VehicleID] {
		return "", fmt.Errorf("publish failed")
	}
	noticeID := fmt.Sprintf("notice-%s", n.AttemptID)
	m.Notices[noticeID] = n
	if !m.SilentIDs[n.VehicleID] {
		m.AckResults[noticeID] = !m.RejectIDs[n.VehicleID]
	}
	return noticeID, nil
}

// WaitForAck answers with the stored result, or waits for timeout when the
// vehicle is silent.
func (m *MockNotifier) WaitForAck(ctx context.Context, noticeID string, timeout time.Duration) (bool, error) {
	m.mu.Lock()
	_, known := m.Notices[noticeID]
	ok, answered := m.AckResults[noticeID]
	m.mu.Unlock()
	if !known {
		return false, fmt.Errorf("unknown notice")
	}
	if !answered {
		select {
		case <-time.After(timeout):
			return false, dispatch.ErrAckTimeout
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return ok, nil
}

// Sent returns how many notices were recorded.
func (m *MockNotifier) Sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Notices)
}
