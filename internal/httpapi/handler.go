// Package httpapi is the host surface for the map core: it feeds user
// gestures into the interaction controller over JSON and serves the marker
// board the controller renders into.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"geopanel/map-core/internal/hierarchy"
	"geopanel/map-core/internal/interact"
	"geopanel/map-core/internal/metrics"
)

// Pinger is the readiness dependency; *store.Store satisfies this. A nil
// Pinger reports ready, so the service can run from pushed data alone.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	log     zerolog.Logger
	ctrl    *interact.Controller
	board   *Board
	pinger  Pinger
	metrics *metrics.Metrics
}

func NewHandler(log zerolog.Logger, ctrl *interact.Controller, board *Board, pinger Pinger, m *metrics.Metrics) *Handler {
	return &Handler{log: log, ctrl: ctrl, board: board, pinger: pinger, metrics: m}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Get("/metrics", h.metrics.Handler().ServeHTTP)

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Route("/map", func(r chi.Router) {
				r.Get("/", h.handleGetMap)
				r.Post("/data", h.handleUpdateData)
				r.Post("/reset", h.handleReset)

				r.Get("/filters", h.handleGetFilters)
				r.Post("/filters", h.handleApplyFilters)
				r.Get("/filters/options", h.handleFilterOptions)

				r.Post("/zoom", h.handleZoom)
				r.Post("/zoom/level", h.handleZoomToLevel)

				r.Get("/selection", h.handleGetSelection)
				r.Delete("/selection", h.handleClearSelection)

				r.Route("/markers/{id}", func(r chi.Router) {
					r.Post("/click", h.handleClick)
					r.Post("/dblclick", h.handleDoubleClick)
					r.Post("/hover", h.handleHover)
				})
				r.Delete("/hover", h.handleHoverEnd)
			})
		})
	})

	return r
}

type mapResponse struct {
	Level         int                 `json:"level"`
	Scale         float64             `json:"scale"`
	TranslateX    float64             `json:"translate_x"`
	TranslateY    float64             `json:"translate_y"`
	ParentID      *string             `json:"parent_id,omitempty"`
	Filters       hierarchy.FilterSet `json:"filters"`
	Transitioning bool                `json:"transitioning"`
	Markers       []interact.Marker   `json:"markers"`
}

func (h *Handler) mapResponse() mapResponse {
	st := h.ctrl.Snapshot()
	resp := mapResponse{
		Level:         st.Level,
		Scale:         st.Scale,
		TranslateX:    st.TranslateX,
		TranslateY:    st.TranslateY,
		Filters:       st.Filters,
		Transitioning: st.Transitioning,
		Markers:       h.board.Markers(),
	}
	if st.ParentID != "" {
		resp.ParentID = &st.ParentID
	}
	return resp
}

func (h *Handler) handleGetMap(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.mapResponse())
}

func (h *Handler) handleUpdateData(w http.ResponseWriter, r *http.Request) {
	var body hierarchy.Data
	if err := decodeJSONStrict(r, &body); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body", map[string]any{"error": err.Error()})
		return
	}

	res, ok := h.ctrl.UpdateData(&body)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_data", "tree failed validation", map[string]any{"errors": res.Errors})
		return
	}
	h.writeJSON(w, http.StatusOK, h.mapResponse())
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Reset()
	h.writeJSON(w, http.StatusOK, h.mapResponse())
}

func (h *Handler) handleGetFilters(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.ctrl.GetFilters())
}

func (h *Handler) handleApplyFilters(w http.ResponseWriter, r *http.Request) {
	var body hierarchy.FilterSet
	if err := decodeJSONStrict(r, &body); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body", map[string]any{"error": err.Error()})
		return
	}

	h.ctrl.ApplyFilters(body)
	h.writeJSON(w, http.StatusOK, h.mapResponse())
}

func (h *Handler) handleFilterOptions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.ctrl.FilterOptions())
}

func (h *Handler) handleZoom(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Scale      float64 `json:"scale"`
		TranslateX float64 `json:"translate_x"`
		TranslateY float64 `json:"translate_y"`
	}
	if err := decodeJSONStrict(r, &body); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body", map[string]any{"error": err.Error()})
		return
	}
	if body.Scale <= 0 {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "scale must be positive", map[string]any{"scale": body.Scale})
		return
	}

	h.ctrl.HandleZoom(body.Scale, body.TranslateX, body.TranslateY)
	h.writeJSON(w, http.StatusOK, h.mapResponse())
}

func (h *Handler) handleZoomToLevel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Level int `json:"level"`
	}
	if err := decodeJSONStrict(r, &body); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body", map[string]any{"error": err.Error()})
		return
	}
	if body.Level < hierarchy.LevelRegion || body.Level > hierarchy.LevelSite {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "level must be 1, 2 or 3", map[string]any{"level": body.Level})
		return
	}

	h.ctrl.ZoomToLevel(body.Level)
	h.writeJSON(w, http.StatusOK, h.mapResponse())
}

type selectionResponse struct {
	Level int             `json:"level"`
	Nodes []selectionNode `json:"nodes"`
}

type selectionNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func (h *Handler) selectionResponse() selectionResponse {
	nodes := h.ctrl.GetSelection()
	resp := selectionResponse{
		Level: h.ctrl.SelectionLevel(),
		Nodes: make([]selectionNode, 0, len(nodes)),
	}
	for _, n := range nodes {
		resp.Nodes = append(resp.Nodes, selectionNode{ID: n.ID, Label: n.Label})
	}
	return resp
}

func (h *Handler) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.selectionResponse())
}

func (h *Handler) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	h.ctrl.ClearSelection()
	h.writeJSON(w, http.StatusOK, h.selectionResponse())
}

func (h *Handler) handleClick(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		MultiSelect bool `json:"multi_select"`
	}
	// An empty body means a plain single click.
	if err := decodeJSONStrict(r, &body); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body", map[string]any{"error": err.Error()})
		return
	}

	// Resolution waits out the double-click disambiguation window, so the
	// request is accepted rather than completed.
	h.ctrl.ClickMarker(id, body.MultiSelect)
	h.writeJSON(w, http.StatusAccepted, map[string]any{"status": "pending"})
}

func (h *Handler) handleDoubleClick(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.ctrl.DoubleClickMarker(id)
	h.writeJSON(w, http.StatusOK, h.mapResponse())
}

type tooltipResponse struct {
	Visible bool   `json:"visible"`
	Content string `json:"content,omitempty"`
}

func (h *Handler) tooltipResponse() tooltipResponse {
	content, visible := h.board.Tooltip()
	if !visible {
		return tooltipResponse{}
	}
	return tooltipResponse{Visible: true, Content: content}
}

func (h *Handler) handleHover(w http.ResponseWriter, r *http.Request) {
	h.ctrl.HoverMarker(chi.URLParam(r, "id"))
	h.writeJSON(w, http.StatusOK, h.tooltipResponse())
}

func (h *Handler) handleHoverEnd(w http.ResponseWriter, r *http.Request) {
	h.ctrl.HoverEnd()
	h.writeJSON(w, http.StatusOK, h.tooltipResponse())
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "not_ready", "database unreachable", nil)
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.metrics.ObserveHTTPRequest(r.Method, r.URL.Path, ww.Status(), time.Since(start))
		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}
