package controllers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/api/middleware"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/api/responses"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/api/validators"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/ingest"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/journal"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/query"
	pkgerrors "github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/errors"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/logger"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/pagination"
)

type publishEventRequest struct {
	MessageID string          `json:"message_id" validate:"required"`
	EventType string          `json:"event_type" validate:"required"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	// PublishedTimestamp is the producer's claimed publish time; the journal
	// clamps values past the receive time.
	PublishedTimestamp *time.Time `json:"published_timestamp,omitempty"`
}

// PublishEvent records one producer delivery in the journal. First deliveries
// answer 201; redeliveries answer 200 with was_duplicate set.
func PublishEvent(svc ingest.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ingestion service unavailable"))
			return
		}

		username := middleware.UsernameFromContext(r.Context())
		if username == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload publishEventRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := ingest.PublishInput{
			Username:  username,
			MessageID: strings.TrimSpace(payload.MessageID),
			EventType: strings.TrimSpace(payload.EventType),
			Payload:   []byte(payload.Payload),
		}
		if payload.PublishedTimestamp != nil {
			input.PublishedAt = *payload.PublishedTimestamp
		}

		result, err := svc.Publish(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.WasDuplicate {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// GetEvent loads the record stored for one (message_id, event_type) pair.
func GetEvent(svc query.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "query service unavailable"))
			return
		}

		username := middleware.UsernameFromContext(r.Context())
		if username == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		eventType, err := pathParam(r, "eventType")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		messageID, err := pathParam(r, "messageID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.GetByKey(r.Context(), username, messageID, eventType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, record)
	}
}

// ListEvents scans the journal forward from the `since` timestamp, paging with
// an opaque cursor.
func ListEvents(svc query.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "query service unavailable"))
			return
		}

		username := middleware.UsernameFromContext(r.Context())
		if username == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		since, err := validators.ParseQueryTime(r, "since")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListSince(r.Context(), username, journal.ListParams{
			Since:     since,
			EventType: strings.TrimSpace(r.URL.Query().Get("event_type")),
			Limit:     limit,
			Cursor:    strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// pathParam returns a decoded, non-empty chi URL parameter. Keys arrive
// percent-encoded so event types with dots or slashes survive the path.
func pathParam(r *http.Request, key string) (string, error) {
	raw := chi.URLParam(r, key)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "path parameter required").WithDetails(map[string]any{"field": key})
	}
	return decoded, nil
}
