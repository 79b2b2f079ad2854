package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/RACOAI-Official/ems-realtime/contract"
	"github.com/RACOAI-Official/ems-realtime/domain"
	"github.com/RACOAI-Official/ems-realtime/domain/event"
	apperrors "github.com/RACOAI-Official/ems-realtime/errors"
	"github.com/RACOAI-Official/ems-realtime/runtime"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	joinTimeout   = 10 * time.Second
	maxFrameBytes = 64 * 1024
)

// frame is the wire shape of every client-to-server message:
// {"event": "...", "data": {...}}. Server-to-client frames reuse
// event.Event, which marshals identically.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinPayload struct {
	UserID string `json:"userId"`
}

type locationPayload struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// Handler upgrades HTTP requests to WebSocket connections and bridges
// them into the realtime core: join registers the connection with the
// presence tracker, a writer goroutine drains the connection's event
// queue, and inbound frames are routed until the socket dies.
type Handler struct {
	log         *slog.Logger
	presence    *runtime.PresenceTracker
	broadcaster contract.IBroadcaster
	directory   contract.IDirectory
	buffer      int
}

func NewHandler(log *slog.Logger, presence *runtime.PresenceTracker, broadcaster contract.IBroadcaster, directory contract.IDirectory, buffer int) *Handler {
	return &Handler{
		log:         log,
		presence:    presence,
		broadcaster: broadcaster,
		directory:   directory,
		buffer:      buffer,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Error("Failed to accept WebSocket", "error", err)
		return
	}
	ws.SetReadLimit(maxFrameBytes)

	ctx := r.Context()

	userID, err := h.awaitJoin(ctx, ws)
	if err != nil {
		h.log.Warn("Connection rejected before join", "remote_addr", r.RemoteAddr, "error", err)
		ws.Close(websocket.StatusPolicyViolation, "join required")
		return
	}

	conn := runtime.NewConnection(userID, h.buffer)
	h.presence.Connect(ctx, conn)
	h.log.Info("Client joined", "user", userID, "connection", conn.ID())

	// Writes must not share the read loop; the writer drains the
	// connection's queue until it closes or the socket dies.
	writerCtx, cancelWriter := context.WithCancel(ctx)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(writerCtx, ws, conn)
	}()

	h.readLoop(ctx, ws, userID)

	// The request context is already dying here; the offline transition
	// must still be recorded.
	h.presence.Disconnect(context.Background(), conn.ID())
	cancelWriter()
	<-writerDone
	ws.Close(websocket.StatusNormalClosure, "")
	h.log.Info("Client left", "user", userID, "connection", conn.ID())
}

// awaitJoin reads the first frame, which must be a join naming a known
// directory user.
func (h *Handler) awaitJoin(ctx context.Context, ws *websocket.Conn) (string, error) {
	joinCtx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	var f frame
	if err := wsjson.Read(joinCtx, ws, &f); err != nil {
		return "", err
	}
	if f.Event != event.NameJoin {
		return "", apperrors.ErrValidation
	}
	var join joinPayload
	if err := json.Unmarshal(f.Data, &join); err != nil || join.UserID == "" {
		return "", apperrors.ErrValidation
	}
	if _, err := h.directory.GetUser(joinCtx, join.UserID); err != nil {
		if errors.Is(err, apperrors.ErrUnknownUser) || errors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.ErrUnknownUser
		}
		return "", err
	}
	return join.UserID, nil
}

func (h *Handler) writeLoop(ctx context.Context, ws *websocket.Conn, conn *runtime.Connection) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.Done():
			return
		case e := <-conn.Events():
			if err := wsjson.Write(ctx, ws, e); err != nil {
				h.log.Debug("Write failed, dropping connection", "user", conn.UserID(), "error", err)
				return
			}
		}
	}
}

// readLoop routes inbound frames until the socket closes. Unknown frame
// names are logged and skipped, never fatal.
func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, userID string) {
	for {
		var f frame
		if err := wsjson.Read(ctx, ws, &f); err != nil {
			h.log.Debug("Read stopped", "user", userID, "reason", err)
			return
		}

		switch f.Event {
		case event.NameShareLocation:
			var loc locationPayload
			if err := json.Unmarshal(f.Data, &loc); err != nil {
				h.log.Warn("Malformed location frame", "user", userID, "error", err)
				continue
			}
			h.broadcaster.EmitToRole(ctx, domain.RoleAdmin, event.NewLocationUpdate(event.LocationUpdate{
				UserID: userID,
				Lat:    loc.Lat,
				Long:   loc.Long,
			}))
		case event.NameJoin:
			// Already joined; a second join is a client bug.
			h.log.Warn("Duplicate join frame", "user", userID)
		default:
			h.log.Warn("Unknown frame", "user", userID, "event", f.Event)
		}
	}
}
