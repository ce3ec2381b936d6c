// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from gateway commands.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventbot/internal/gateway"
	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

// Dispatcher runs a parsed command for a requester.
type Dispatcher interface {
	Dispatch(ctx context.Context, req model.Requester, cmd gateway.Command) (gateway.Result, error)
}

// EventHandler holds all HTTP handlers for the event API.
type EventHandler struct {
	dispatch Dispatcher
	table    *gateway.Table
	baseURL  string
	log      *zap.Logger
}

// NewEventHandler constructs an EventHandler. baseURL is the public address
// encoded into event QR codes.
func NewEventHandler(dispatch Dispatcher, table *gateway.Table, baseURL string, log *zap.Logger) *EventHandler {
	return &EventHandler{dispatch: dispatch, table: table, baseURL: baseURL, log: log.Named("http")}
}

var validate = validator.New()

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// decodeValid decodes the body into dst and runs its validate tags.
func decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

// statusFor maps core errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound), errors.Is(err, gateway.ErrUnknownCommand):
		return http.StatusNotFound
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, model.ErrDuplicateTitle),
		errors.Is(err, model.ErrCapacityExceeded),
		errors.Is(err, model.ErrAlreadyJoined),
		errors.Is(err, model.ErrNotAJoinedMember),
		errors.Is(err, model.ErrEventClosed),
		errors.Is(err, model.ErrNotStarted):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidCapacity),
		errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, model.ErrTargetNotAParticipant):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrIO):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *EventHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, model.ErrorResponse{Error: msg, Retryable: model.Retryable(err)})
}

func toResponse(e model.Event) (model.EventResponse, error) {
	var resp model.EventResponse
	if err := copier.Copy(&resp, &e); err != nil {
		return resp, err
	}
	resp.Status = string(e.Status)
	resp.Capacity, resp.Remaining = nil, nil
	if e.Capacity != model.Unlimited {
		c := int(e.Capacity)
		rem := e.Capacity.Remaining(len(e.Participants))
		resp.Capacity, resp.Remaining = &c, &rem
	}
	if resp.Participants == nil {
		resp.Participants = []model.Participant{}
	}
	return resp, nil
}

func toResponses(events []model.Event) ([]model.EventResponse, error) {
	out := make([]model.EventResponse, 0, len(events))
	for _, e := range events {
		resp, err := toResponse(e)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, nil
}

// run dispatches cmd and writes the event it returned.
func (h *EventHandler) run(w http.ResponseWriter, r *http.Request, status int, cmd gateway.Command) {
	res, err := h.dispatch.Dispatch(r.Context(), requesterFrom(r.Context()), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if res.Event == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	resp, err := toResponse(*res.Event)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, status, resp)
}

func eventTarget(r *http.Request) gateway.Target {
	return gateway.Target{Community: communityFrom(r.Context()), Ref: chi.URLParam(r, "id")}
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
// The requester becomes the host. A missing capacity means unlimited.
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if !decodeValid(w, r, &req) {
		return
	}
	capacity := model.Unlimited
	if req.Capacity != nil {
		capacity = model.Capacity(*req.Capacity)
	}
	h.run(w, r, http.StatusCreated, gateway.Create{
		Community:   req.CommunityID,
		Title:       req.Title,
		Description: req.Description,
		Start:       req.Start,
		Capacity:    capacity,
	})
}

// ListEvents handles GET /events
// Returns the events of the requester's community, or of ?community=.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	community := r.URL.Query().Get("community")
	if community == "" {
		community = communityFrom(r.Context())
	}
	res, err := h.dispatch.Dispatch(r.Context(), requesterFrom(r.Context()), gateway.List{Community: community})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := toResponses(res.Events)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// SearchTitles handles GET /events/search?prefix=&limit=
// Title autocomplete over live events.
func (h *EventHandler) SearchTitles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	res, err := h.dispatch.Dispatch(r.Context(), requesterFrom(r.Context()), gateway.Search{
		Community: communityFrom(r.Context()),
		Prefix:    q.Get("prefix"),
		Limit:     limit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if res.Titles == nil {
		res.Titles = []string{}
	}
	writeJSON(w, http.StatusOK, res.Titles)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, gateway.Show{Target: eventTarget(r)})
}

// EditEvent handles PATCH /events/{id}
// Changes exactly one field, named by "field".
func (h *EventHandler) EditEvent(w http.ResponseWriter, r *http.Request) {
	var req model.EditEventRequest
	if !decodeValid(w, r, &req) {
		return
	}
	change := model.Edit{Field: model.Field(req.Field)}
	missing := false
	switch change.Field {
	case model.FieldStart:
		missing = req.Start == nil
		if !missing {
			change.Start = *req.Start
		}
	case model.FieldDescription:
		missing = req.Description == nil
		if !missing {
			change.Description = *req.Description
		}
	case model.FieldCapacity:
		change.Capacity = model.Unlimited
		if req.Capacity != nil {
			change.Capacity = model.Capacity(*req.Capacity)
		}
	case model.FieldTitle:
		missing = req.Title == nil
		if !missing {
			change.Title = *req.Title
		}
	}
	if missing {
		writeError(w, http.StatusUnprocessableEntity, "missing value for field "+req.Field)
		return
	}
	h.run(w, r, http.StatusOK, gateway.Edit{Target: eventTarget(r), Change: change})
}

// JoinEvent handles POST /events/{id}/join
func (h *EventHandler) JoinEvent(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, gateway.Join{Target: eventTarget(r)})
}

// LeaveEvent handles POST /events/{id}/leave
func (h *EventHandler) LeaveEvent(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, gateway.Leave{Target: eventTarget(r)})
}

// CompleteEvent handles POST /events/{id}/complete
func (h *EventHandler) CompleteEvent(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, gateway.Complete{Target: eventTarget(r)})
}

// TransferHost handles POST /events/{id}/transfer
func (h *EventHandler) TransferHost(w http.ResponseWriter, r *http.Request) {
	var req model.TransferHostRequest
	if !decodeValid(w, r, &req) {
		return
	}
	h.run(w, r, http.StatusOK, gateway.Transfer{Target: eventTarget(r), NewHost: req.NewHostID})
}

// RemoveParticipant handles DELETE /events/{id}/participants/{userID}
func (h *EventHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, gateway.Remove{Target: eventTarget(r), UserID: chi.URLParam(r, "userID")})
}

// DeleteEvent handles DELETE /events/{id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	_, err := h.dispatch.Dispatch(r.Context(), requesterFrom(r.Context()), gateway.Delete{Target: eventTarget(r)})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAllEvents handles DELETE /communities/{community}/events
// Admin only. Partial failures still report how many were deleted.
func (h *EventHandler) DeleteAllEvents(w http.ResponseWriter, r *http.Request) {
	res, err := h.dispatch.Dispatch(r.Context(), requesterFrom(r.Context()),
		gateway.DeleteAll{Community: chi.URLParam(r, "community")})
	if err != nil {
		status := statusFor(err)
		writeJSON(w, status, map[string]any{
			"error":     err.Error(),
			"deleted":   res.Deleted,
			"retryable": model.Retryable(err),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": res.Deleted})
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
