package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/agriexport/dispatchboard/core/model"
)

// Notifier delivers the operator notice of an attempt.
//
// SendNotice hands the notice to the transport and returns the id to wait
// on. WaitForAck blocks until the operator answers: (true, nil) accepts,
// (false, nil) or an error wrapping ErrNoticeRejected refuses, and
// ErrAckTimeout reports that no answer arrived in time.
type Notifier interface {
	SendNotice(ctx context.Context, n model.DispatchNotice) (string, error)
	WaitForAck(ctx context.Context, noticeID string, timeout time.Duration) (bool, error)
}

var (
	// ErrAckTimeout is returned by WaitForAck when no acknowledgment arrived.
	ErrAckTimeout = errors.New("dispatch: ack timeout")
	// ErrNoticeRejected reports an explicit negative acknowledgment.
	ErrNoticeRejected = errors.New("dispatch: notice rejected by operator")
)
