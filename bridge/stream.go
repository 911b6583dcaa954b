package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/gorilla/websocket"

	"github.com/fxsml/reactive/broker"
)

var errStreamClosed = errors.New("bridge: stream closed")

// stream is the subscriber behind one websocket connection. Every event
// becomes one JSON text frame.
type stream struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	logger       broker.Logger

	mu     sync.Mutex
	closed bool
}

var _ broker.Subscriber[cloudevents.Event] = (*stream)(nil)

func newStream(conn *websocket.Conn, writeTimeout time.Duration, logger broker.Logger) *stream {
	return &stream{
		conn:         conn,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

func (s *stream) OnNext(_ context.Context, event cloudevents.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := s.conn.WriteJSON(event); err != nil {
		// Closing makes the reader see the failure and unsubscribe.
		s.closed = true
		_ = s.conn.Close()
		return err
	}
	return nil
}

func (s *stream) OnError(err error) {
	if errors.Is(err, errStreamClosed) {
		return
	}
	var overflow *broker.OverflowError
	if errors.As(err, &overflow) {
		s.logger.Warn("[BRIDGE] Stream fell behind", slog.Int("dropped", overflow.Dropped))
		return
	}
	s.logger.Debug("[BRIDGE] Stream write failed", slog.Any("error", err))
}

// OnComplete tells the client the broker went away.
func (s *stream) OnComplete() {
	s.closeWith(websocket.CloseGoingAway, "broker shut down")
}

// closeWith sends a close frame. The connection itself is closed by the
// handler once the client answers or disconnects.
func (s *stream) closeWith(code int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	msg := websocket.FormatCloseMessage(code, text)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout))
}
