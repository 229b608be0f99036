package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
	"github.com/this-th/snomed-endoproc-lookup/internal/domain/providers"
)

// SSEHandler streams completed search events over Server-Sent Events
type SSEHandler struct {
	eventBus  providers.EventBus
	heartbeat time.Duration

	mu      sync.RWMutex
	clients int
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		heartbeat: 30 * time.Second,
	}
}

// StreamSearches handles GET /api/stream/searches[?zeroResults=true]
func (h *SSEHandler) StreamSearches(w http.ResponseWriter, r *http.Request) {
	zeroOnly := false
	if raw := r.URL.Query().Get("zeroResults"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid zeroResults parameter")
			return
		}
		zeroOnly = parsed
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventChan, err := h.eventBus.Subscribe(r.Context(), providers.EventChannelSearches)
	if err != nil {
		log.Error().Err(err).Str("channel", providers.EventChannelSearches).Msg("Failed to subscribe")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	h.register(1)
	defer h.register(-1)

	h.sendEvent(w, "connected", map[string]interface{}{
		"zeroResults": zeroOnly,
		"timestamp":   time.Now(),
	})
	flusher.Flush()

	clientChan := make(chan *entities.SearchEvent, 10)
	go h.forwardEvents(r.Context(), eventChan, clientChan, zeroOnly)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug().Msg("Client disconnected from search stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case event, ok := <-clientChan:
			if !ok {
				return
			}
			h.sendEvent(w, "search", event)
			flusher.Flush()
		}
	}
}

// forwardEvents copies matching events to the client channel and closes it
// when the subscription ends.
func (h *SSEHandler) forwardEvents(ctx context.Context, eventChan <-chan *entities.SearchEvent, clientChan chan<- *entities.SearchEvent, zeroOnly bool) {
	defer close(clientChan)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if zeroOnly && (event.Total > 0 || event.ErrorKind != "") {
				continue
			}
			select {
			case clientChan <- event:
			default:
				// Client channel full, skip event
			}
		}
	}
}

func (h *SSEHandler) register(delta int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients += delta
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// GetClientCount returns the number of connected clients
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients
}
