package query

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Handler exposes the query service over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Router assembles the read-only API surface.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/health", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/overview", h.handleOverview)
		r.Get("/trends", h.handleTrends)
		r.Get("/rankings", h.handleRankings)
		r.Get("/entities", h.handleSearch)
		r.Get("/entities/{uen}", h.handleEntity)
		r.Get("/ask", h.handleAsk)
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *Handler) handleTrends(w http.ResponseWriter, r *http.Request) {
	filter := TrendFilter{
		PlanningAreaID: r.URL.Query().Get("planning_area"),
		SSICPrefix:     r.URL.Query().Get("ssic"),
		FromMonth:      intParam(r, "from"),
		ToMonth:        intParam(r, "to"),
	}
	points, err := h.service.Trends(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (h *Handler) handleRankings(w http.ResponseWriter, r *http.Request) {
	dimension := r.URL.Query().Get("by")
	if dimension == "" {
		dimension = RankByPlanningArea
	}
	ranks, err := h.service.Rankings(r.Context(), dimension, intParam(r, "limit"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ranks)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q parameter required"})
		return
	}
	entities, err := h.service.SearchEntities(r.Context(), term, intParam(r, "limit"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entities)
}

func (h *Handler) handleEntity(w http.ResponseWriter, r *http.Request) {
	uen := chi.URLParam(r, "uen")
	entity, err := h.service.GetEntity(r.Context(), uen)
	if err != nil {
		writeError(w, err)
		return
	}
	if entity == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "entity not found"})
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

// handleAsk classifies a free-text question and dispatches to the matching
// structured query.
func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("q")
	if question == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q parameter required"})
		return
	}

	intent := Classify(question)

	var (
		result any
		err    error
	)
	switch intent.Kind {
	case KindOverview:
		result, err = h.service.Overview(r.Context())
	case KindTrend:
		result, err = h.service.Trends(r.Context(), TrendFilter{
			FromMonth: intent.FromMonth,
			ToMonth:   intent.ToMonth,
		})
	case KindRanking:
		result, err = h.service.Rankings(r.Context(), intent.Dimension, 10)
	default:
		result, err = h.service.SearchEntities(r.Context(), intent.Term, 20)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"intent": intent.Kind, "result": result})
}

func intParam(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	zap.L().Error("query failed", zap.String("cause", eris.ToString(err, false)))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
