package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/eventbot/internal/gateway"
)

// CommandInfo describes one entry of the command table.
type CommandInfo struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Usage string `json:"usage"`
}

// CommandResponse is the JSON view of a gateway.Result.
type CommandResponse struct {
	Kind    string   `json:"kind"`
	Event   any      `json:"event,omitempty"`
	Events  any      `json:"events,omitempty"`
	Titles  []string `json:"titles,omitempty"`
	Deleted int      `json:"deleted,omitempty"`
}

// ListCommands handles GET /commands
func (h *EventHandler) ListCommands(w http.ResponseWriter, r *http.Request) {
	bindings := h.table.Bindings()
	out := make([]CommandInfo, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, CommandInfo{Name: b.Name, Kind: b.Kind.String(), Usage: b.Usage})
	}
	writeJSON(w, http.StatusOK, out)
}

// RunCommand handles POST /commands/{name}
// The body is a flat JSON object of named arguments, as a chat user would
// type them.
func (h *EventHandler) RunCommand(w http.ResponseWriter, r *http.Request) {
	args := map[string]string{}
	if err := decodeJSON(w, r, &args); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cmd, err := h.table.Parse(chi.URLParam(r, "name"), gateway.Request{
		Community: communityFrom(r.Context()),
		Args:      args,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.dispatch.Dispatch(r.Context(), requesterFrom(r.Context()), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := CommandResponse{Kind: res.Kind.String(), Titles: res.Titles, Deleted: res.Deleted}
	if res.Event != nil {
		if out.Event, err = toResponse(*res.Event); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if res.Events != nil {
		if out.Events, err = toResponses(res.Events); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, out)
}
