package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxsml/reactive/broker"
)

func newEvent(t *testing.T, id, state string) cloudevents.Event {
	t.Helper()
	e := cloudevents.NewEvent()
	e.SetID(id)
	e.SetSource("/test")
	e.SetType("task.status")
	require.NoError(t, e.SetData(cloudevents.ApplicationJSON, map[string]string{"state": state}))
	return e
}

type fixture struct {
	host    *broker.Host
	catalog *Catalog
	server  *httptest.Server
}

func newFixture(t *testing.T, cfg broker.Config) *fixture {
	t.Helper()
	f := &fixture{host: &broker.Host{}, catalog: NewCatalog(0)}
	_, err := f.host.Initialize(cfg)
	require.NoError(t, err)
	f.catalog.Register("tasks/status", 2)

	f.server = httptest.NewServer(NewHandler(f.host, f.catalog, Config{}))
	t.Cleanup(func() {
		_ = f.host.Shutdown(context.Background())
		f.server.Close()
	})
	return f
}

func (f *fixture) url(topic, route string) string {
	return f.server.URL + "/topics/" + strings.ReplaceAll(topic, "/", "%2F") + route
}

func (f *fixture) post(t *testing.T, topic string, e cloudevents.Event) *http.Response {
	t.Helper()
	body, err := json.Marshal(e)
	require.NoError(t, err)
	resp, err := http.Post(f.url(topic, "/events"), "application/cloudevents+json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *fixture) dial(t *testing.T, topic string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(f.url(topic, "/stream"), "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) cloudevents.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e cloudevents.Event
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func TestCatalog(t *testing.T) {
	c := NewCatalog(0)
	a := c.Register("b", 4)
	assert.Same(t, a, c.Register("b", 8), "re-registering returns the existing topic")
	assert.Equal(t, 4, a.Capacity())

	_, ok := c.Lookup("missing")
	assert.False(t, ok)

	c.Register("a", 1)
	assert.Equal(t, []string{"a", "b"}, c.Names())

	_, ok = c.Ensure("missing")
	assert.False(t, ok, "Ensure without auto-creation")

	auto := NewCatalog(16)
	_, ok = auto.Lookup("logs/events")
	assert.False(t, ok, "Lookup never creates")
	created, ok := auto.Ensure("logs/events")
	require.True(t, ok)
	assert.Equal(t, 16, created.Capacity())
	again, _ := auto.Lookup("logs/events")
	assert.Same(t, created, again)
}

func TestHandler_AutoCreateOnlyOnPublish(t *testing.T) {
	f := newFixture(t, broker.Config{})
	f.catalog.autoCreate = 4

	for _, route := range []string{"/retained", "/stream"} {
		resp, err := http.Get(f.url("made/up", route))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, route)
	}
	assert.Equal(t, []string{"tasks/status"}, f.catalog.Names(), "reads must not create topics")

	require.Equal(t, http.StatusAccepted, f.post(t, "made/up", newEvent(t, "1", "new")).StatusCode)
	assert.Equal(t, []string{"made/up", "tasks/status"}, f.catalog.Names())

	resp, err := http.Get(f.url("made/up", "/retained"))
	require.NoError(t, err)
	defer resp.Body.Close()
	var events []cloudevents.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	require.Len(t, events, 1)
	assert.Equal(t, "1", events[0].ID())
}

func TestHandler_PublishAndRetained(t *testing.T) {
	f := newFixture(t, broker.Config{})

	for i, state := range []string{"queued", "running", "done"} {
		resp := f.post(t, "tasks/status", newEvent(t, string(rune('a'+i)), state))
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	resp, err := http.Get(f.url("tasks/status", "/retained"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var events []cloudevents.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	require.Len(t, events, 2)
	assert.Equal(t, "b", events[0].ID())
	assert.Equal(t, "c", events[1].ID())

	var data map[string]string
	require.NoError(t, events[1].DataAs(&data))
	assert.Equal(t, "done", data["state"])
}

func TestHandler_PublishBinaryMode(t *testing.T) {
	f := newFixture(t, broker.Config{})

	req, err := http.NewRequest(http.MethodPost, f.url("tasks/status", "/events"), strings.NewReader(`{"state":"done"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ce-Specversion", "1.0")
	req.Header.Set("Ce-Id", "bin-1")
	req.Header.Set("Ce-Type", "task.status")
	req.Header.Set("Ce-Source", "/test")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body struct {
		Topic string   `json:"topic"`
		IDs   []string `json:"ids"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "tasks/status", body.Topic)
	assert.Equal(t, []string{"bin-1"}, body.IDs)
}

func TestHandler_ListTopics(t *testing.T) {
	f := newFixture(t, broker.Config{})
	f.catalog.Register("logs/events", 0)

	resp, err := http.Get(f.server.URL + "/topics")
	require.NoError(t, err)
	defer resp.Body.Close()

	var names []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&names))
	assert.Equal(t, []string{"logs/events", "tasks/status"}, names)
}

func TestHandler_PublishErrors(t *testing.T) {
	f := newFixture(t, broker.Config{})

	t.Run("unknown topic", func(t *testing.T) {
		resp := f.post(t, "nope", newEvent(t, "1", "x"))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("invalid event", func(t *testing.T) {
		resp, err := http.Post(f.url("tasks/status", "/events"), "application/cloudevents+json", strings.NewReader(`{"specversion":"1.0"`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing type", func(t *testing.T) {
		body := `{"specversion":"1.0","id":"1","source":"/test"}`
		resp, err := http.Post(f.url("tasks/status", "/events"), "application/cloudevents+json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHandler_NotInitialized(t *testing.T) {
	catalog := NewCatalog(0)
	catalog.Register("tasks/status", 2)
	server := httptest.NewServer(NewHandler(&broker.Host{}, catalog, Config{}))
	defer server.Close()

	resp, err := http.Get(server.URL + "/topics/tasks%2Fstatus/retained")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandler_Backpressure(t *testing.T) {
	f := newFixture(t, broker.Config{MailboxSize: 1, Overflow: broker.OverflowReject})
	topic, _ := f.catalog.Lookup("tasks/status")
	b, err := f.host.Broker()
	require.NoError(t, err)

	entered := make(chan struct{}, 1)
	_, err = broker.Subscribe[cloudevents.Event](b, topic, broker.SubscriberFuncs[cloudevents.Event]{
		Next: func(ctx context.Context, _ cloudevents.Event) error {
			entered <- struct{}{}
			<-ctx.Done()
			return ctx.Err()
		},
	})
	require.NoError(t, err)

	require.Equal(t, http.StatusAccepted, f.post(t, "tasks/status", newEvent(t, "1", "a")).StatusCode)
	<-entered
	require.Equal(t, http.StatusAccepted, f.post(t, "tasks/status", newEvent(t, "2", "b")).StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, f.post(t, "tasks/status", newEvent(t, "3", "c")).StatusCode)
}

func TestHandler_Stream(t *testing.T) {
	f := newFixture(t, broker.Config{})

	f.post(t, "tasks/status", newEvent(t, "1", "queued"))
	f.post(t, "tasks/status", newEvent(t, "2", "running"))

	conn := f.dial(t, "tasks/status")
	assert.Equal(t, "1", readEvent(t, conn).ID())
	assert.Equal(t, "2", readEvent(t, conn).ID())

	f.post(t, "tasks/status", newEvent(t, "3", "done"))
	assert.Equal(t, "3", readEvent(t, conn).ID())

	require.NoError(t, f.host.Shutdown(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "expected going away close, got %v", err)
}

func TestHandler_StreamDisconnectUnsubscribes(t *testing.T) {
	f := newFixture(t, broker.Config{})
	b, err := f.host.Broker()
	require.NoError(t, err)

	conn := f.dial(t, "tasks/status")
	require.Eventually(t, func() bool { return b.Stats().Subscribers == 1 }, 2*time.Second, time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return b.Stats().Subscribers == 0 }, 2*time.Second, time.Millisecond)
}
