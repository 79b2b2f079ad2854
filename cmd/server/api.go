package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/RACOAI-Official/ems-realtime/errors"
	"github.com/RACOAI-Official/ems-realtime/repositories"
	"github.com/RACOAI-Official/ems-realtime/services"
	"github.com/RACOAI-Official/ems-realtime/storage"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/database"
)

const maxAttachmentBytes = 25 << 20

// newAPIMux builds the JSON request layer in front of the services, plus
// the WebSocket endpoint. Identity comes from headers and parameters;
// authentication itself belongs to the deployment's front layer.
func newAPIMux(log *slog.Logger,
	chat services.IChatService,
	notifications services.INotificationService,
	files *storage.DiskFileStore,
	ws http.Handler) *http.ServeMux {

	mux := http.NewServeMux()
	mux.Handle("GET /ws", ws)

	mux.HandleFunc("POST /messages", func(w http.ResponseWriter, r *http.Request) {
		var cmd services.SendMessageCommand
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			writeError(w, log, apperrors.ErrValidation)
			return
		}
		sent, err := chat.SendMessage(r.Context(), cmd)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, sent)
	})

	mux.HandleFunc("GET /conversations/{a}/{b}", func(w http.ResponseWriter, r *http.Request) {
		messages, err := chat.GetConversation(r.Context(), r.PathValue("a"), r.PathValue("b"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, messages)
	})

	mux.HandleFunc("POST /conversations/{sender}/read", func(w http.ResponseWriter, r *http.Request) {
		changed, err := chat.MarkRead(r.Context(), r.Header.Get("X-User-Id"), r.PathValue("sender"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"changed": changed})
	})

	mux.HandleFunc("DELETE /messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, log, apperrors.ErrValidation)
			return
		}
		if err := chat.DeleteMessage(r.Context(), id, r.Header.Get("X-User-Id")); err != nil {
			writeError(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("DELETE /conversations/{counterpart}", func(w http.ResponseWriter, r *http.Request) {
		deleted, err := chat.DeleteConversationSide(r.Context(), r.Header.Get("X-User-Id"), r.PathValue("counterpart"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
	})

	mux.HandleFunc("GET /contacts", func(w http.ResponseWriter, r *http.Request) {
		contacts, err := chat.GetContacts(r.Context(), r.Header.Get("X-User-Id"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, contacts)
	})

	mux.HandleFunc("GET /conversations/{counterpart}/search", func(w http.ResponseWriter, r *http.Request) {
		hits, err := chat.SearchConversation(r.Context(),
			r.Header.Get("X-User-Id"), r.PathValue("counterpart"), r.URL.Query().Get("q"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, hits)
	})

	mux.HandleFunc("GET /notifications", func(w http.ResponseWriter, r *http.Request) {
		unread, err := notifications.ListUnread(r.Context(), r.Header.Get("X-User-Id"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, unread)
	})

	mux.HandleFunc("POST /notifications/{target}/read", func(w http.ResponseWriter, r *http.Request) {
		changed, err := notifications.MarkRead(r.Context(), r.PathValue("target"), r.Header.Get("X-User-Id"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"changed": changed})
	})

	mux.HandleFunc("POST /attachments", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			writeError(w, log, apperrors.ErrValidation)
			return
		}
		ref, mime, err := files.Store(r.Context(), name, http.MaxBytesReader(w, r.Body, maxAttachmentBytes))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"ref": ref, "mime": mime})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrUnknownUser):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrForbidden):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		log.Error("Request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// MessageMapper decodes the CBOR payloads behind msg:/ntf: keys for the
// Badger debug inspector.
func MessageMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	switch {
	case strings.HasPrefix(key, "msg:"):
		var m repositories.DiskMessage
		if err := cbor.Unmarshal(val, &m); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "MESSAGE"
		row.Namespace = m.Sender + "->" + m.Receiver
		row.Timestamp = time.Unix(0, m.CreatedAt).UTC().Format("15:04:05")
		row.Detail = m.Body
	case strings.HasPrefix(key, "ntf:"):
		var n repositories.DiskNotification
		if err := cbor.Unmarshal(val, &n); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "NOTIFICATION"
		row.Namespace = n.Target
		row.Timestamp = time.Unix(0, n.CreatedAt).UTC().Format("15:04:05")
		row.Detail = n.Title + " | " + n.Body
	case strings.HasPrefix(key, "msgid:"), strings.HasPrefix(key, "ntfid:"):
		row.Type = "INDEX"
		row.Detail = string(val)
	}
	return row
}
