// Package handler exposes read-only audit trail queries. There is no write
// endpoint; entries are recorded only by services alongside the transitions
// they describe.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bluecarbon/internal/audit"
	dErrors "bluecarbon/pkg/domain-errors"
	"bluecarbon/pkg/platform/httputil"
)

// Handler wires audit query endpoints to the recorder.
type Handler struct {
	recorder *audit.Recorder
	logger   *slog.Logger
}

// New constructs an audit handler.
func New(recorder *audit.Recorder, logger *slog.Logger) *Handler {
	return &Handler{recorder: recorder, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit", h.HandleQuery)
}

// EntriesResponse wraps a list of audit entries.
type EntriesResponse struct {
	Entries []audit.Entry `json:"entries"`
	Count   int           `json:"count"`
}

// HandleQuery handles GET /audit. Exactly one filter dimension is applied:
// resource (resource_type + resource_id), actor, or a [from, to) time range.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	resourceType := q.Get("resource_type")
	resourceID := q.Get("resource_id")
	actor := q.Get("actor")
	fromRaw := q.Get("from")
	toRaw := q.Get("to")

	switch {
	case resourceType != "" || resourceID != "":
		if resourceType == "" || resourceID == "" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "resource queries require both resource_type and resource_id"))
			return
		}
		entries, err := h.recorder.ByResource(ctx, resourceType, resourceID)
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "audit query failed"))
			return
		}
		writeEntries(w, entries)

	case actor != "":
		entries, err := h.recorder.ByActor(ctx, actor)
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "audit query failed"))
			return
		}
		writeEntries(w, entries)

	case fromRaw != "" || toRaw != "":
		from, to, err := parseRange(fromRaw, toRaw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		entries, err := h.recorder.Between(ctx, from, to)
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "audit query failed"))
			return
		}
		writeEntries(w, entries)

	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "a resource, actor, or time range filter is required"))
	}
}

func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	if fromRaw == "" || toRaw == "" {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeValidation, "time range queries require both from and to")
	}
	from, err := time.Parse(time.RFC3339, fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeValidation, "from must be an RFC 3339 timestamp")
	}
	to, err := time.Parse(time.RFC3339, toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeValidation, "to must be an RFC 3339 timestamp")
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeValidation, "to must be after from")
	}
	return from, to, nil
}

func writeEntries(w http.ResponseWriter, entries []audit.Entry) {
	httputil.WriteJSON(w, http.StatusOK, EntriesResponse{Entries: entries, Count: len(entries)})
}
