package editor

import (
	"errors"
	"time"

	"github.com/trackmapper/editor/internal/queue"
)

// NoticeLevel ranks user-facing notices.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarning
	NoticeError
)

func (l NoticeLevel) String() string {
	switch l {
	case NoticeInfo:
		return "info"
	case NoticeWarning:
		return "warning"
	case NoticeError:
		return "error"
	default:
		return "unknown"
	}
}

// Notice is a message meant for the person driving the editor.
type Notice struct {
	Level   NoticeLevel
	Message string
	Time    time.Time
}

// Notifier receives user notices.
type Notifier interface {
	Notify(Notice)
}

// maxPendingNotices bounds the notice backlog; older notices are dropped.
const maxPendingNotices = 256

// NoticeQueue buffers notices until the front end drains them.
type NoticeQueue struct {
	q *queue.Queue[Notice]
}

// NewNoticeQueue creates an empty notice queue.
func NewNoticeQueue() *NoticeQueue {
	return &NoticeQueue{q: queue.New[Notice](maxPendingNotices)}
}

// Notify implements Notifier.
func (n *NoticeQueue) Notify(notice Notice) {
	if notice.Time.IsZero() {
		notice.Time = time.Now()
	}
	n.q.Push(notice)
}

// Drain returns every pending notice, oldest first.
func (n *NoticeQueue) Drain() []Notice {
	return n.q.Drain()
}

// Len returns the number of pending notices.
func (n *NoticeQueue) Len() int {
	return n.q.Len()
}

type discardNotifier struct{}

func (discardNotifier) Notify(Notice) {}

// reportedError marks an error that was already shown to the user as a
// notice.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

// Reported marks err as already delivered through a notice. It returns nil
// for a nil err.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// WasReported reports whether err carries the Reported mark. Errors joined
// to a reported one without the mark keep err visible.
func WasReported(err error) bool {
	if err == nil {
		return false
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if !WasReported(e) {
				return false
			}
		}
		return true
	}
	var r *reportedError
	return errors.As(err, &r)
}
