// Package handler exposes the carbon calculation endpoints. Calculations
// are pure and read-only; nothing here touches storage.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bluecarbon/internal/allometry"
	"bluecarbon/internal/measurement"
	dErrors "bluecarbon/pkg/domain-errors"
	"bluecarbon/pkg/platform/httputil"
	"bluecarbon/pkg/requestcontext"
)

// Handler wires carbon calculation endpoints to the allometric calculator.
type Handler struct {
	calc   *allometry.Calculator
	logger *slog.Logger
}

// New constructs a carbon handler.
func New(calc *allometry.Calculator, logger *slog.Logger) *Handler {
	return &Handler{calc: calc, logger: logger}
}

// Register mounts carbon endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/carbon/tree", h.HandleTree)
	r.Post("/carbon/forest", h.HandleForest)
	r.Post("/carbon/validate", h.HandleValidate)
	r.Get("/carbon/species", h.HandleListSpecies)
	r.Get("/carbon/species/{code}", h.HandleGetSpecies)
}

// TreeRequest is the body for POST /carbon/tree and /carbon/validate.
type TreeRequest struct {
	Tree measurement.RawTree `json:"tree"`
}

// ForestRequest is the body for POST /carbon/forest.
type ForestRequest struct {
	Trees        []measurement.RawTree `json:"trees"`
	AreaHectares float64               `json:"area_ha"`
}

// ValidationResult is the body for POST /carbon/validate responses.
type ValidationResult struct {
	Valid        bool                         `json:"valid"`
	Error        string                       `json:"error,omitempty"`
	Normalized   *measurement.TreeMeasurement `json:"normalized,omitempty"`
	KnownSpecies bool                         `json:"known_species"`
}

// HandleTree handles POST /carbon/tree.
func (h *Handler) HandleTree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.Decode[TreeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	tree, err := measurement.NormalizeTree(req.Tree)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.calc.ComputeTree(tree))
}

// HandleForest handles POST /carbon/forest.
func (h *Handler) HandleForest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.Decode[ForestRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if len(req.Trees) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "at least one tree is required"))
		return
	}
	if req.AreaHectares < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "area_ha must not be negative"))
		return
	}

	trees := make([]measurement.TreeMeasurement, 0, len(req.Trees))
	for _, raw := range req.Trees {
		tree, err := measurement.NormalizeTree(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		trees = append(trees, tree)
	}

	result, err := h.calc.ComputeForest(ctx, trees, req.AreaHectares)
	if err != nil {
		h.logger.ErrorContext(ctx, "forest calculation failed",
			"request_id", requestID,
			"tree_count", len(trees),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "forest calculation failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleValidate handles POST /carbon/validate. Unlike /carbon/tree this
// never fails on bad measurements; it reports whether they would be accepted.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.Decode[TreeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result := ValidationResult{
		KnownSpecies: h.calc.Species().Known(req.Tree.Species),
	}
	tree, err := measurement.NormalizeTree(req.Tree)
	if err != nil {
		result.Error = dErrors.MessageOf(err)
	} else {
		result.Valid = true
		result.Normalized = &tree
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleListSpecies handles GET /carbon/species.
func (h *Handler) HandleListSpecies(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"species": h.calc.Species().List(),
	})
}

// HandleGetSpecies handles GET /carbon/species/{code}.
func (h *Handler) HandleGetSpecies(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !h.calc.Species().Known(code) {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "species %q not found", code))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.calc.Species().Lookup(code))
}
