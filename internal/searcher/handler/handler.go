// Package handler serves the public, read-only query surface.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/entry"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/club-directory/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/metrics"
)

type Searcher interface {
	Filter(q indexer.Query) []entry.Entry
}

type Handler struct {
	store       Searcher
	cache       *cache.QueryCache
	metrics     *metrics.Metrics
	maxKeywords int
	logger      *slog.Logger
}

// New builds the handler. queryCache may be nil to query the store directly.
func New(store Searcher, queryCache *cache.QueryCache, m *metrics.Metrics, maxKeywords int) *Handler {
	return &Handler{
		store:       store,
		cache:       queryCache,
		metrics:     m,
		maxKeywords: maxKeywords,
		logger:      slog.Default().With("component", "query-handler"),
	}
}

func (h *Handler) Hello(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Hello!"))
}

// List returns every visible entry ordered by name.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, &parser.QueryPlan{Query: indexer.Query{Order: entry.ByName}})
}

// Query serves GET /query/{avail}/{search}.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	plan, err := parser.Parse(r.PathValue("avail"), r.PathValue("search"), r.URL.Query().Get("order"), h.maxKeywords)
	if err != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.run(w, r, plan)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, plan *parser.QueryPlan) {
	start := time.Now()
	log := logger.FromContext(r.Context())

	compute := func() []entry.Entry {
		return h.store.Filter(plan.Query)
	}
	var (
		result   []entry.Entry
		cacheHit bool
	)
	if h.cache != nil {
		result, cacheHit = h.cache.GetOrCompute(r.Context(), plan.Query, compute)
	} else {
		result = compute()
	}

	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	resultType := "hit"
	if len(result) == 0 {
		resultType = "zero_result"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	h.metrics.SearchResultsCount.Observe(float64(len(result)))

	log.Debug("query served",
		"query", plan.RawQuery,
		"keywords", len(plan.Query.Keywords),
		"returned", len(result),
		"cache_hit", cacheHit,
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
