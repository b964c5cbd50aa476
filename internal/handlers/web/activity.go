package web

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"agora/internal/events"
	"agora/internal/models"
	"agora/internal/repositories"
	"agora/internal/response"
	"agora/internal/services"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ActivityHandler serves the event feed as JSON, RSS and a websocket
// live stream.
type ActivityHandler struct {
	events    services.EventService
	instances services.InstanceService
	baseURL   string
	logger    *zap.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	nextSub int64
	subs    map[int64]chan models.Event
}

// NewActivityHandler creates the handler and registers its live-feed
// fanout on the bus.
func NewActivityHandler(
	eventSvc services.EventService,
	instances services.InstanceService,
	bus *events.Bus,
	baseURL string,
	logger *zap.Logger,
) *ActivityHandler {
	h := &ActivityHandler{
		events:    eventSvc,
		instances: instances,
		baseURL:   baseURL,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		subs: make(map[int64]chan models.Event),
	}
	bus.Subscribe(events.HandlerFunc{
		ID:   "live-feed",
		Func: h.fanout,
	})
	return h
}

func (h *ActivityHandler) fanout(_ context.Context, event models.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
			// slow consumer, skip rather than stall the bus
		}
	}
	return nil
}

func (h *ActivityHandler) subscribe() (int64, chan models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSub++
	ch := make(chan models.Event, 32)
	h.subs[h.nextSub] = ch
	return h.nextSub, ch
}

func (h *ActivityHandler) unsubscribe(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

func (h *ActivityHandler) filter(r *http.Request) (repositories.EventFilter, error) {
	filter := repositories.EventFilter{}
	if key := r.URL.Query().Get("instance"); key != "" {
		instance, err := h.instances.GetByKey(r.Context(), key)
		if err != nil {
			return filter, err
		}
		filter.InstanceID = &instance.ID
	}
	if types, ok := r.URL.Query()["type"]; ok {
		filter.Types = types
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.Limit = n
		}
	}
	return filter, nil
}

// Feed handles GET /activity.
func (h *ActivityHandler) Feed(w http.ResponseWriter, r *http.Request) {
	filter, err := h.filter(r)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	list, err := h.events.Activity(r.Context(), filter)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, list)
}

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	GUID    string `xml:"guid"`
	PubDate string `xml:"pubDate"`
}

// RSS handles GET /activity.rss.
func (h *ActivityHandler) RSS(w http.ResponseWriter, r *http.Request) {
	filter, err := h.filter(r)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	list, err := h.events.Activity(r.Context(), filter)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}

	feed := rssFeed{
		Version: "2.0",
		Channel: rssChannel{
			Title:       "Activity",
			Link:        h.baseURL + "/activity",
			Description: "Recent activity",
		},
	}
	for _, e := range list {
		feed.Channel.Items = append(feed.Channel.Items, rssItem{
			Title:   eventTitle(e),
			Link:    h.baseURL + "/activity",
			GUID:    e.ID,
			PubDate: e.CreatedAt.Format(time.RFC1123Z),
		})
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(feed)
}

// Live handles GET /activity/live, streaming events over a websocket.
func (h *ActivityHandler) Live(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	id, ch := h.subscribe()
	defer h.unsubscribe(id)

	// drain client frames to notice the close handshake
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-ch:
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func eventTitle(e *models.Event) string {
	return fmt.Sprintf("%s by user %d", e.Type, e.ActorID)
}
