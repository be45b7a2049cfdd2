package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/api/middleware"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/ingest"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/journal"
	pkgerrors "github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/errors"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/pagination"
)

type stubIngest struct {
	input  ingest.PublishInput
	result *journal.IngestResult
	err    error
}

func (s *stubIngest) Publish(ctx context.Context, input ingest.PublishInput) (*journal.IngestResult, error) {
	s.input = input
	return s.result, s.err
}

type stubQuery struct {
	username   string
	messageID  string
	eventType  string
	listParams journal.ListParams
	record     *journal.EventRecord
	list       *journal.ListResult
	err        error
}

func (s *stubQuery) GetByKey(ctx context.Context, username, messageID, eventType string) (*journal.EventRecord, error) {
	s.username = username
	s.messageID = messageID
	s.eventType = eventType
	return s.record, s.err
}

func (s *stubQuery) ListSince(ctx context.Context, username string, params journal.ListParams) (*journal.ListResult, error) {
	s.username = username
	s.listParams = params
	return s.list, s.err
}

func TestPublishEventFirstDelivery(t *testing.T) {
	svc := &stubIngest{result: &journal.IngestResult{
		Record:       &journal.EventRecord{RecordID: 1, MessageID: "msg-1", EventType: "device.reading"},
		WasDuplicate: false,
	}}
	handler := PublishEvent(svc, nil)

	body := strings.NewReader(`{"message_id":"msg-1","event_type":"device.reading","payload":{"temp":21.4}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", body)
	req = req.WithContext(middleware.WithUsername(req.Context(), "sensor-a"))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if svc.input.Username != "sensor-a" {
		t.Fatalf("unexpected username: %q", svc.input.Username)
	}
	if svc.input.MessageID != "msg-1" || svc.input.EventType != "device.reading" {
		t.Fatalf("unexpected key: %q/%q", svc.input.MessageID, svc.input.EventType)
	}
	if string(svc.input.Payload) != `{"temp":21.4}` {
		t.Fatalf("unexpected payload: %s", svc.input.Payload)
	}

	var envelope struct {
		Data journal.IngestResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.WasDuplicate {
		t.Fatal("expected was_duplicate false")
	}
	if envelope.Data.Record == nil || envelope.Data.Record.MessageID != "msg-1" {
		t.Fatalf("unexpected record: %+v", envelope.Data.Record)
	}
}

func TestPublishEventRedelivery(t *testing.T) {
	svc := &stubIngest{result: &journal.IngestResult{
		Record:       &journal.EventRecord{RecordID: 1, MessageID: "msg-1", EventType: "device.reading"},
		WasDuplicate: true,
	}}
	handler := PublishEvent(svc, nil)

	body := strings.NewReader(`{"message_id":"msg-1","event_type":"device.reading"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", body)
	req = req.WithContext(middleware.WithUsername(req.Context(), "sensor-a"))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data journal.IngestResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.WasDuplicate {
		t.Fatal("expected was_duplicate true")
	}
}

func TestPublishEventForwardsPublishedTimestamp(t *testing.T) {
	svc := &stubIngest{result: &journal.IngestResult{Record: &journal.EventRecord{}}}
	handler := PublishEvent(svc, nil)

	body := strings.NewReader(`{"message_id":"msg-2","event_type":"device.reading","published_timestamp":"2026-04-01T10:00:00Z"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", body)
	req = req.WithContext(middleware.WithUsername(req.Context(), "sensor-a"))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	want := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	if !svc.input.PublishedAt.Equal(want) {
		t.Fatalf("unexpected published time: %s", svc.input.PublishedAt)
	}
}

func TestPublishEventMissingIdentity(t *testing.T) {
	handler := PublishEvent(&stubIngest{}, nil)

	body := strings.NewReader(`{"message_id":"msg-1","event_type":"device.reading"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", body)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestPublishEventMissingFields(t *testing.T) {
	handler := PublishEvent(&stubIngest{}, nil)

	body := strings.NewReader(`{"event_type":"device.reading"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", body)
	req = req.WithContext(middleware.WithUsername(req.Context(), "sensor-a"))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestPublishEventDenied(t *testing.T) {
	svc := &stubIngest{err: pkgerrors.New(pkgerrors.CodeForbidden, "publish not permitted")}
	handler := PublishEvent(svc, nil)

	body := strings.NewReader(`{"message_id":"msg-1","event_type":"device.reading"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", body)
	req = req.WithContext(middleware.WithUsername(req.Context(), "viewer-1"))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func eventRouteContext(ctx context.Context, eventType, messageID string) context.Context {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("eventType", eventType)
	routeCtx.URLParams.Add("messageID", messageID)
	return context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
}

func TestGetEventSuccess(t *testing.T) {
	svc := &stubQuery{record: &journal.EventRecord{
		RecordID:  7,
		MessageID: "msg-7",
		EventType: "device.reading",
	}}
	handler := GetEvent(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/device.reading/msg-7", nil)
	ctx := middleware.WithUsername(req.Context(), "ops")
	req = req.WithContext(eventRouteContext(ctx, "device.reading", "msg-7"))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.username != "ops" {
		t.Fatalf("unexpected username: %q", svc.username)
	}
	if svc.messageID != "msg-7" || svc.eventType != "device.reading" {
		t.Fatalf("unexpected key: %q/%q", svc.messageID, svc.eventType)
	}

	var envelope struct {
		Data journal.EventRecord `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.RecordID != 7 {
		t.Fatalf("unexpected record id: %d", envelope.Data.RecordID)
	}
}

func TestGetEventDecodesEscapedParams(t *testing.T) {
	svc := &stubQuery{record: &journal.EventRecord{}}
	handler := GetEvent(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/device%2Freading/msg%201", nil)
	ctx := middleware.WithUsername(req.Context(), "ops")
	req = req.WithContext(eventRouteContext(ctx, "device%2Freading", "msg%201"))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.eventType != "device/reading" || svc.messageID != "msg 1" {
		t.Fatalf("unexpected decoded key: %q/%q", svc.eventType, svc.messageID)
	}
}

func TestGetEventNotFound(t *testing.T) {
	svc := &stubQuery{err: pkgerrors.New(pkgerrors.CodeNotFound, "event not found")}
	handler := GetEvent(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/device.reading/missing", nil)
	ctx := middleware.WithUsername(req.Context(), "ops")
	req = req.WithContext(eventRouteContext(ctx, "device.reading", "missing"))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestGetEventMissingParam(t *testing.T) {
	handler := GetEvent(&stubQuery{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/device.reading/", nil)
	ctx := middleware.WithUsername(req.Context(), "ops")
	req = req.WithContext(eventRouteContext(ctx, "device.reading", ""))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestListEventsDefaults(t *testing.T) {
	svc := &stubQuery{list: &journal.ListResult{Items: []journal.EventRecord{}}}
	handler := ListEvents(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req = req.WithContext(middleware.WithUsername(req.Context(), "ops"))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !svc.listParams.Since.IsZero() {
		t.Fatalf("expected zero since, got %s", svc.listParams.Since)
	}
	if svc.listParams.Limit != pagination.DefaultLimit {
		t.Fatalf("expected default limit, got %d", svc.listParams.Limit)
	}
}

func TestListEventsForwardsParams(t *testing.T) {
	svc := &stubQuery{list: &journal.ListResult{Cursor: "next"}}
	handler := ListEvents(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?since=2026-04-01T10:00:00Z&event_type=device.reading&limit=10&cursor=abc", nil)
	req = req.WithContext(middleware.WithUsername(req.Context(), "ops"))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	want := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	if !svc.listParams.Since.Equal(want) {
		t.Fatalf("unexpected since: %s", svc.listParams.Since)
	}
	if svc.listParams.EventType != "device.reading" {
		t.Fatalf("unexpected event type: %q", svc.listParams.EventType)
	}
	if svc.listParams.Limit != 10 {
		t.Fatalf("unexpected limit: %d", svc.listParams.Limit)
	}
	if svc.listParams.Cursor != "abc" {
		t.Fatalf("unexpected cursor: %q", svc.listParams.Cursor)
	}

	var envelope struct {
		Data journal.ListResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Cursor != "next" {
		t.Fatalf("unexpected cursor: %q", envelope.Data.Cursor)
	}
}

func TestListEventsBadSince(t *testing.T) {
	handler := ListEvents(&stubQuery{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?since=yesterday", nil)
	req = req.WithContext(middleware.WithUsername(req.Context(), "ops"))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
