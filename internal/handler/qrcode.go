package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gosimple/slug"
	"github.com/skip2/go-qrcode"

	"github.com/Shivanand-hulikatti/eventbot/internal/gateway"
)

const qrSize = 256

// QRCode handles GET /events/{id}/qrcode
// Returns a PNG that encodes the event's public link.
func (h *EventHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	res, err := h.dispatch.Dispatch(r.Context(), requesterFrom(r.Context()), gateway.Show{Target: eventTarget(r)})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	link := fmt.Sprintf("%s/events/%s", strings.TrimRight(h.baseURL, "/"), res.Event.ID)
	png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		h.fail(w, r, fmt.Errorf("encode qr code: %w", err))
		return
	}
	name := slug.Make(res.Event.Title)
	if name == "" {
		name = res.Event.ID
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name+".png"))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
