package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"dineqr/internal/domain"
	"dineqr/internal/metrics"
	"dineqr/internal/service"
	"dineqr/internal/socket"

	"github.com/fasthttp/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DefaultPollTimeout = 25 * time.Second
	DefaultPollIdle    = time.Minute
)

type Handler struct {
	Hub       service.HubInterface
	Publisher service.EventPublisher
	QR        service.QRGenerator
	Polls     *PollRegistry

	PollTimeout time.Duration

	upgrader websocket.Upgrader
	validate *validator.Validate
}

func NewHandler(hub service.HubInterface, publisher service.EventPublisher, qr service.QRGenerator, polls *PollRegistry) *Handler {
	if polls == nil {
		polls = NewPollRegistry(nil)
	}
	return &Handler{
		Hub:         hub,
		Publisher:   publisher,
		QR:          qr,
		Polls:       polls,
		PollTimeout: DefaultPollTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.healthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc(socket.PathWebsocket, h.serveWebsocket).Methods("GET")
	r.HandleFunc(socket.PathPollOpen, h.openPoll).Methods("POST")
	r.HandleFunc(socket.PathPoll, h.poll).Methods("GET")
	r.HandleFunc(socket.PathPollEmit, h.pollEmit).Methods("POST")

	r.HandleFunc("/api/events", h.publishEvent).Methods("POST")
	r.HandleFunc("/api/hotels/{hotelKey}/tables/{table}/qrcode", h.getTableQRCode).Methods("GET")
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"service":   "relay-svc",
		"timestamp": time.Now().Format(time.RFC3339),
		"polling":   h.Polls.Len(),
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading websocket for client %s: %v", r.Header.Get(socket.ClientHeader), err)
		return
	}

	peer := newWSPeer(uuid.NewString(), conn)
	metrics.PeerConnected(peer.Transport())
	defer func() {
		h.Hub.Leave(peer)
		peer.Close()
		metrics.PeerDisconnected(peer.Transport())
	}()

	for {
		var env socket.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Warning: websocket peer %s: %v", peer.ID(), err)
			}
			return
		}
		h.handleInbound(peer, env)
	}
}

// handleInbound applies one client frame. Clients only ever ask to join a
// channel.
func (h *Handler) handleInbound(peer service.Peer, env socket.Envelope) {
	var scope domain.Scope
	if err := json.Unmarshal(env.Data, &scope); err != nil {
		log.Printf("Warning: ignoring %s from %s: %v", env.Event, peer.ID(), err)
		return
	}
	if err := h.Hub.Join(peer, env.Event, scope); err != nil {
		log.Printf("Error joining %s for %s: %v", env.Event, peer.ID(), err)
	}
}

func (h *Handler) openPoll(w http.ResponseWriter, r *http.Request) {
	peer := h.Polls.Open(uuid.NewString())
	writeJSON(w, http.StatusOK, map[string]string{"sid": peer.ID()})
}

func (h *Handler) lookupPoll(w http.ResponseWriter, r *http.Request) (*PollPeer, bool) {
	peer, ok := h.Polls.Get(r.URL.Query().Get("sid"))
	if !ok {
		http.Error(w, "Unknown poll session", http.StatusNotFound)
		return nil, false
	}
	peer.touch()
	return peer, true
}

func (h *Handler) poll(w http.ResponseWriter, r *http.Request) {
	peer, ok := h.lookupPoll(w, r)
	if !ok {
		return
	}
	defer peer.touch()

	timer := time.NewTimer(h.PollTimeout)
	defer timer.Stop()

	batch, err := peer.wait(timer.C, r.Context().Done())
	if err != nil {
		http.Error(w, err.Error(), http.StatusGone)
		return
	}
	if len(batch) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (h *Handler) pollEmit(w http.ResponseWriter, r *http.Request) {
	peer, ok := h.lookupPoll(w, r)
	if !ok {
		return
	}

	var env socket.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.handleInbound(peer, env)
	w.WriteHeader(http.StatusAccepted)
}

// ReapIdlePolls drops poll sessions whose client stopped polling.
func (h *Handler) ReapIdlePolls(window time.Duration) int {
	idle := h.Polls.Idle(window)
	for _, peer := range idle {
		h.Hub.Drop(peer)
	}
	if len(idle) > 0 {
		log.Printf("Reaped %d idle poll sessions", len(idle))
	}
	return len(idle)
}

func (h *Handler) publishEvent(w http.ResponseWriter, r *http.Request) {
	var event domain.PushEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(event); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if err := h.Publisher.Publish(r.Context(), event); err != nil {
		log.Printf("Error publishing %s for hotel %s: %v", event.Event, event.HotelKey, err)
		http.Error(w, "Failed to publish event", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *Handler) getTableQRCode(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	png, err := h.QR.Generate(vars["hotelKey"], vars["table"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `inline; filename="`+service.QRFileName(vars["hotelKey"], vars["table"])+`"`)
	w.Write(png)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
