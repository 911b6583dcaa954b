// Package bridge exposes broker topics carrying CloudEvents over HTTP.
//
// Routes:
//
//	GET  /topics                   registered topic names
//	POST /topics/{topic}/events    publish a binary, structured or batch CloudEvent
//	GET  /topics/{topic}/retained  retained events, oldest first
//	GET  /topics/{topic}/stream    websocket: retained events, then live ones
//
// Topic names containing a slash are sent path-escaped, for example
// /topics/tasks%2Fstatus/events.
package bridge

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fxsml/reactive/broker"
)

// Source provides the live broker. *broker.Host implements it.
type Source interface {
	Broker() (*broker.Broker, error)
}

// Config configures a Handler.
type Config struct {
	// WriteTimeout bounds a single websocket frame write.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ReadLimit is the largest frame accepted from a stream client.
	// Default: 4096
	ReadLimit int64 `yaml:"read_limit"`

	// Logger receives bridge logs. Default: slog.Default().
	Logger broker.Logger `yaml:"-"`
}

func (c Config) parse() Config {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 4096
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Handler serves the bridge routes.
type Handler struct {
	src      Source
	catalog  *Catalog
	cfg      Config
	upgrader websocket.Upgrader
	router   chi.Router
}

var _ http.Handler = (*Handler)(nil)

// NewHandler creates a Handler publishing to and streaming from the
// topics of catalog on the broker provided by src.
func NewHandler(src Source, catalog *Catalog, cfg Config) *Handler {
	h := &Handler{
		src:     src,
		catalog: catalog,
		cfg:     cfg.parse(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/topics", h.listTopics)
	r.Route("/topics/{topic}", func(r chi.Router) {
		r.Post("/events", h.publish)
		r.Get("/retained", h.retained)
		r.Get("/stream", h.stream)
	})
	h.router = r
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) listTopics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Names())
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	topic, b, ok := h.resolve(w, r, h.catalog.Ensure)
	if !ok {
		return
	}

	// Parse using SDK (handles binary + structured + batch)
	var events []cloudevents.Event
	if cehttp.IsHTTPBatch(r.Header) {
		var err error
		events, err = cehttp.NewEventsFromHTTPRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		event, err := cehttp.NewEventFromHTTPRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		events = []cloudevents.Event{*event}
	}

	for i := range events {
		if events[i].ID() == "" {
			events[i].SetID(uuid.NewString())
		}
		if err := events[i].Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	ids := make([]string, 0, len(events))
	for _, event := range events {
		if err := broker.Publish(r.Context(), b, topic, event); err != nil {
			h.publishError(w, topic.Name(), err)
			return
		}
		ids = append(ids, event.ID())
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"topic": topic.Name(), "ids": ids})
}

func (h *Handler) publishError(w http.ResponseWriter, topic string, err error) {
	switch {
	case errors.Is(err, broker.ErrBackpressure):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, broker.ErrNotInitialized):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.cfg.Logger.Warn("[BRIDGE] Publish failed", slog.String("topic", topic), slog.Any("error", err))
		http.Error(w, "publish failed", http.StatusInternalServerError)
	}
}

func (h *Handler) retained(w http.ResponseWriter, r *http.Request) {
	topic, b, ok := h.resolve(w, r, h.catalog.Lookup)
	if !ok {
		return
	}
	events, err := broker.Retained(b, topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	topic, b, ok := h.resolve(w, r, h.catalog.Lookup)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		return
	}
	conn.SetReadLimit(h.cfg.ReadLimit)

	s := newStream(conn, h.cfg.WriteTimeout, h.cfg.Logger)
	sub, err := broker.Subscribe[cloudevents.Event](b, topic, s)
	if err != nil {
		s.closeWith(websocket.CloseTryAgainLater, err.Error())
		_ = conn.Close()
		return
	}
	streams.Inc()
	defer streams.Dec()

	logger := h.cfg.Logger
	logger.Debug("[BRIDGE] Stream opened",
		slog.String("topic", topic.Name()),
		slog.String("subscription", sub.ID()),
		slog.String("remote", r.RemoteAddr))

	// Frames from the client are ignored; reading detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	sub.Unsubscribe()
	_ = conn.Close()
	logger.Debug("[BRIDGE] Stream closed",
		slog.String("topic", topic.Name()),
		slog.String("subscription", sub.ID()))
}

// resolve finds the topic of the request with lookup and the live broker,
// replying with 404 or 503 when either is missing.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, lookup func(string) (*Topic, bool)) (*Topic, *broker.Broker, bool) {
	name, err := url.PathUnescape(chi.URLParam(r, "topic"))
	if err != nil {
		http.Error(w, "invalid topic name", http.StatusBadRequest)
		return nil, nil, false
	}
	topic, ok := lookup(name)
	if !ok {
		http.Error(w, "unknown topic "+name, http.StatusNotFound)
		return nil, nil, false
	}
	b, err := h.src.Broker()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return nil, nil, false
	}
	return topic, b, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
