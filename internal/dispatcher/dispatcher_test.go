package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	require.NoError(t, err)

	return d, logger
}

func TestDispatcher_Handler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register("finish", func(_ context.Context, e Event) (any, error) {
		got = e
		return "result", nil
	})

	result, err := d.Dispatch(context.Background(), Event{Command: "finish", Args: []string{"arg1"}})
	require.NoError(t, err)
	assert.Equal(t, "result", result)
	assert.Equal(t, []string{"arg1"}, got.Args)
	assert.False(t, got.Timestamp.IsZero(), "timestamp is filled in")
}

func TestDispatcher_PassesContext(t *testing.T) {
	d, _ := newTestDispatcher(t)

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "value")

	d.Register("ctx", func(ctx context.Context, _ Event) (any, error) {
		return ctx.Value(key{}), nil
	})

	result, err := d.Dispatch(ctx, Event{Command: "ctx"})
	require.NoError(t, err)
	assert.Equal(t, "value", result)
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(context.Background(), Event{Command: "nope"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownCommand))
	assert.Contains(t, err.Error(), "nope")
}

func TestDispatcher_MinArgs(t *testing.T) {
	d, _ := newTestDispatcher(t)

	called := false
	d.Register("click", func(_ context.Context, _ Event) (any, error) {
		called = true
		return nil, nil
	}, MinArgs(2, "<lat> <lon>"))

	_, err := d.Dispatch(context.Background(), Event{Command: "click", Args: []string{"1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage: click <lat> <lon>")
	assert.False(t, called)

	_, err = d.Dispatch(context.Background(), Event{Command: "click", Args: []string{"1", "2"}})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "<lat> <lon>", d.Usage("click"))
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("ok", func(_ context.Context, _ Event) (any, error) {
		return "ok", nil
	}, Logged())
	d.Register("bad", func(_ context.Context, _ Event) (any, error) {
		return nil, errors.New("boom")
	}, Logged())

	_, err := d.Dispatch(context.Background(), Event{Command: "ok", Args: []string{"a", "b"}})
	require.NoError(t, err)
	_, err = d.Dispatch(context.Background(), Event{Command: "bad"})
	require.Error(t, err)

	logger.mu.Lock()
	defer logger.mu.Unlock()

	require.Len(t, logger.messages, 4)
	assert.Contains(t, logger.messages[0], "DEBUG: handling command")
	assert.Contains(t, logger.messages[1], "DEBUG: command complete")
	assert.Contains(t, logger.messages[3], "ERROR: command failed")
}

func TestDispatcher_Commands(t *testing.T) {
	d, _ := newTestDispatcher(t)
	noop := func(context.Context, Event) (any, error) { return nil, nil }

	d.Register("start", noop)
	d.Register("abandon", noop)
	d.Register("list", noop)

	assert.Equal(t, []string{"abandon", "list", "start"}, d.Commands())
	assert.True(t, d.HasHandler("list"))
	assert.False(t, d.HasHandler("status"))
}
