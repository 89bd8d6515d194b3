package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lectern-labs/lectern/internal/domain"
	"github.com/lectern-labs/lectern/internal/domain/annotation"
	"github.com/lectern-labs/lectern/internal/domain/geometry"
	annotateuc "github.com/lectern-labs/lectern/internal/usecase/annotate"
	healthuc "github.com/lectern-labs/lectern/internal/usecase/health"
	layoutuc "github.com/lectern-labs/lectern/internal/usecase/layout"
	queryuc "github.com/lectern-labs/lectern/internal/usecase/query"
	textsearchuc "github.com/lectern-labs/lectern/internal/usecase/textsearch"
)

// Error codes returned in JSON error bodies.
const (
	codeBadRequest         = "bad_request"
	codeRoomNotFound       = "room_not_found"
	codeAnnotationNotFound = "annotation_not_found"
	codeNotPermitted       = "not_permitted"
	codeRemoteWriteFailed  = "remote_write_failed"
	codeIndexing           = "indexing"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the annotation engine over HTTP for a single document.
type Server struct {
	query         *queryuc.Service
	search        *textsearchuc.Service
	layout        *layoutuc.Service
	annotate      *annotateuc.Service
	health        *healthuc.Service
	docRoomID     string
	maxResults    int
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. maxResults caps search responses; zero
// means no cap beyond the search window itself.
func NewServer(
	query *queryuc.Service,
	search *textsearchuc.Service,
	layout *layoutuc.Service,
	annotate *annotateuc.Service,
	health *healthuc.Service,
	docRoomID string,
	maxResults int,
	logger *zap.Logger,
) *Server {
	s := &Server{
		query:      query,
		search:     search,
		layout:     layout,
		annotate:   annotate,
		health:     health,
		docRoomID:  docRoomID,
		maxResults: maxResults,
		logger:     logger,
	}
	s.errorHandlers = []errorHandler{
		permissionHandler,
		sentinelHandler(domain.ErrRoomNotFound, http.StatusNotFound, codeRoomNotFound),
		sentinelHandler(domain.ErrAnnotationNotFound, http.StatusNotFound, codeAnnotationNotFound),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrIndexing, http.StatusServiceUnavailable, codeIndexing),
		sentinelHandler(domain.ErrRemoteWrite, http.StatusBadGateway, codeRemoteWriteFailed),
	}
	return s
}

// Routes mounts all handlers onto the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1/documents/{room}", func(r chi.Router) {
		r.Use(s.requireDocument)
		r.Get("/annotations", s.ListAnnotations)
		r.Post("/annotations", s.CreateAnnotation)
		r.Post("/annotations/{id}/close", s.CloseAnnotation)
		r.Post("/annotations/{id}/messages", s.PostMessage)
		r.Get("/search", s.SearchText)
		r.Get("/last-viewed", s.GetLastViewed)
		r.Put("/last-viewed", s.PutLastViewed)
	})
}

// requireDocument rejects requests for any room other than the one this
// instance reconciles.
func (s *Server) requireDocument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "room") != s.docRoomID {
			writeError(w, http.StatusNotFound, codeRoomNotFound, domain.ErrRoomNotFound.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

type tabPlacement struct {
	Side   string          `json:"side"`
	Offset float64         `json:"offset"`
	Rect   geometry.Rect   `json:"rect"`
	Rects  []geometry.Rect `json:"rects,omitempty"`
}

type annotationItem struct {
	ID           string                 `json:"id"`
	Page         int                    `json:"page"`
	Kind         string                 `json:"kind"`
	Status       string                 `json:"status"`
	Creator      string                 `json:"creator"`
	Private      bool                   `json:"private"`
	SelectedText string                 `json:"selectedText,omitempty"`
	BoundingRect geometry.Rect          `json:"boundingRect"`
	ClientRects  []geometry.Rect        `json:"clientRects,omitempty"`
	X            float64                `json:"x,omitempty"`
	Y            float64                `json:"y,omitempty"`
	Timestamp    int64                  `json:"timestamp"`
	Unread       annotation.UnreadCount `json:"unread"`
	Tab          *tabPlacement          `json:"tab,omitempty"`
}

type annotationListResponse struct {
	Items []annotationItem `json:"items"`
	Total int              `json:"total"`
}

// ListAnnotations handles GET /v1/documents/{room}/annotations.
//
// A `filter` query parameter replaces the active filter expression before the
// list is derived. Optional `width`, `fit` and `zoom` parameters describe the
// caller's viewport; when width is given, tab placements are computed and
// attached per item.
func (s *Server) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Has("filter") {
		s.query.SetFilter(q.Get("filter"))
	}
	records := s.query.Annotations()

	var tabs map[string]layoutuc.Placement
	if q.Get("width") != "" {
		vp, err := viewportFromQuery(q.Get("width"), q.Get("fit"), q.Get("zoom"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
			return
		}
		placements := s.layout.Layout(records, vp)
		tabs = make(map[string]layoutuc.Placement, len(placements))
		for _, p := range placements {
			tabs[p.ID] = p
		}
	}

	items := make([]annotationItem, len(records))
	for i := range records {
		items[i] = annotationToItem(&records[i])
		if p, ok := tabs[records[i].ID()]; ok {
			items[i].Tab = &tabPlacement{
				Side:   p.Side.String(),
				Offset: p.Offset,
				Rect:   p.Tab,
				Rects:  p.Rects,
			}
		}
	}

	writeJSON(w, http.StatusOK, annotationListResponse{Items: items, Total: len(items)})
}

func viewportFromQuery(width, fit, zoom string) (layoutuc.Viewport, error) {
	vp := layoutuc.Viewport{FitRatio: 1, Zoom: 1}
	var err error
	if vp.WidthPx, err = strconv.ParseFloat(width, 64); err != nil {
		return layoutuc.Viewport{}, errors.New("width must be a number")
	}
	if fit != "" {
		if vp.FitRatio, err = strconv.ParseFloat(fit, 64); err != nil {
			return layoutuc.Viewport{}, errors.New("fit must be a number")
		}
	}
	if zoom != "" {
		if vp.Zoom, err = strconv.ParseFloat(zoom, 64); err != nil {
			return layoutuc.Viewport{}, errors.New("zoom must be a number")
		}
	}
	return vp, nil
}

func annotationToItem(rec *annotation.Record) annotationItem {
	x, y := rec.Point()
	return annotationItem{
		ID:           rec.ID(),
		Page:         rec.Page(),
		Kind:         string(rec.Kind()),
		Status:       string(rec.Status()),
		Creator:      rec.Creator(),
		Private:      rec.Private(),
		SelectedText: rec.SelectedText(),
		BoundingRect: rec.BoundingRect(),
		ClientRects:  rec.ClientRects(),
		X:            x,
		Y:            y,
		Timestamp:    rec.Timestamp(),
		Unread:       rec.Unread(),
	}
}

type createAnnotationRequest struct {
	Kind    string `json:"kind"`
	Page    int    `json:"page"`
	Private bool   `json:"private"`

	// Highlight fields.
	SelectedText  string          `json:"selectedText,omitempty"`
	ViewportRects []geometry.Rect `json:"viewportRects,omitempty"`
	PageAnchor    *geometry.Rect  `json:"pageAnchor,omitempty"`
	Scale         float64         `json:"scale,omitempty"`

	// Pindrop fields.
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`
}

type createAnnotationResponse struct {
	ID string `json:"id"`
}

// CreateAnnotation handles POST /v1/documents/{room}/annotations.
func (s *Server) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	var req createAnnotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	var (
		id  string
		err error
	)
	switch req.Kind {
	case string(annotation.KindPindrop):
		id, err = s.annotate.CreatePindrop(r.Context(), annotateuc.PindropInput{
			Page:    req.Page,
			X:       req.X,
			Y:       req.Y,
			Private: req.Private,
		})
	case string(annotation.KindHighlight), "":
		scale := req.Scale
		if scale == 0 {
			scale = 1
		}
		var anchor geometry.Rect
		if req.PageAnchor != nil {
			anchor = *req.PageAnchor
		}
		id, err = s.annotate.CreateHighlight(r.Context(), annotateuc.HighlightInput{
			Page:          req.Page,
			SelectedText:  req.SelectedText,
			ViewportRects: req.ViewportRects,
			PageAnchor:    anchor,
			Scale:         scale,
			Private:       req.Private,
		})
	default:
		writeError(w, http.StatusBadRequest, codeBadRequest, "kind must be highlight or pindrop")
		return
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createAnnotationResponse{ID: id})
}

// CloseAnnotation handles POST /v1/documents/{room}/annotations/{id}/close.
func (s *Server) CloseAnnotation(w http.ResponseWriter, r *http.Request) {
	if err := s.annotate.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type postMessageRequest struct {
	Body string `json:"body"`
}

// PostMessage handles POST /v1/documents/{room}/annotations/{id}/messages.
func (s *Server) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.annotate.Reply(r.Context(), chi.URLParam(r, "id"), req.Body); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type searchResponse struct {
	Query     string               `json:"query"`
	Items     []textsearchuc.Match `json:"items"`
	Total     int                  `json:"total"`
	Exhausted bool                 `json:"exhausted"`
}

// SearchText handles GET /v1/documents/{room}/search.
func (s *Server) SearchText(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "q parameter is required")
		return
	}

	if err := s.search.Search(q); err != nil {
		s.handleDomainError(w, err)
		return
	}

	limit := s.maxResults
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, codeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	results := s.search.Results()
	// The window expands in page steps; grow it until the cap is reached or
	// the document runs out.
	for limit > 0 && len(results) < limit && !s.search.Exhausted() {
		s.search.Expand()
		results = s.search.Results()
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []textsearchuc.Match{}
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Query:     q,
		Items:     results,
		Total:     len(results),
		Exhausted: s.search.Exhausted(),
	})
}

// GetLastViewed handles GET /v1/documents/{room}/last-viewed.
func (s *Server) GetLastViewed(w http.ResponseWriter, r *http.Request) {
	lv, ok, err := s.annotate.GetLastViewed(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, codeAnnotationNotFound, "no last viewed marker")
		return
	}
	writeJSON(w, http.StatusOK, lv)
}

type putLastViewedRequest struct {
	Page int `json:"page"`
}

// PutLastViewed handles PUT /v1/documents/{room}/last-viewed.
func (s *Server) PutLastViewed(w http.ResponseWriter, r *http.Request) {
	var req putLastViewedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.annotate.SetLastViewed(r.Context(), req.Page); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrRoomNotFound,
		domain.ErrAnnotationNotFound,
		domain.ErrNotPermitted,
		domain.ErrInvalidRequest,
		domain.ErrIndexing,
		domain.ErrRemoteWrite,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// permissionHandler handles ErrNotPermitted with the reported power level.
func permissionHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrNotPermitted) {
		return false
	}
	var pe *domain.PermissionError
	if errors.As(err, &pe) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"code":        codeNotPermitted,
			"message":     msg,
			"power_level": pe.PowerLevel,
		})
		return true
	}
	writeError(w, http.StatusForbidden, codeNotPermitted, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
