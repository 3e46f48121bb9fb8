package api

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/whytehoux-projecty/Bank-sub001/internal/domain"
)

const maxBatchBodyBytes = 1 << 20

type batchActionRequest struct {
	EntityType string          `json:"entityType"`
	Action     string          `json:"action"`
	IDs        []string        `json:"ids"`
	Data       json.RawMessage `json:"data"`
}

// BatchHandler validates the request shape and runs the batch. Per-item failures
// are part of the 200 response body; only malformed requests get a 4xx.
func (h *Handlers) BatchHandler(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req batchActionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBodyBytes)).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=batch outcome=reject reason=invalid_json actor_id=%s err=%v", userID, err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids must contain at least one id")
		return
	}
	action := domain.BatchAction(strings.TrimSpace(req.Action))
	if !action.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid action")
		return
	}
	payload, err := domain.DecodeBatchPayload(action, req.Data)
	if err != nil {
		log.Printf("level=warn component=api endpoint=batch outcome=reject reason=invalid_payload actor_id=%s action=%s err=%v", userID, action, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.batch.Execute(r.Context(), domain.BatchActionRequest{
		EntityType: domain.EntityType(strings.TrimSpace(req.EntityType)),
		Action:     action,
		IDs:        req.IDs,
		Data:       payload,
		Actor: domain.BatchActor{
			UserID:    userID,
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
		},
	})

	log.Printf("level=info component=api endpoint=batch actor_id=%s entity_type=%s action=%s total=%d processed=%d failed=%d",
		userID, req.EntityType, action, result.TotalItems, result.ProcessedItems, result.FailedItems)
	writeJSON(w, http.StatusOK, result)
}

// clientIP prefers X-Real-IP and falls back to the connection address.
func clientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
