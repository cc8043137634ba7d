// Package chi implements the HTTP API: request decoding, domain error
// mapping and response encoding. Routing uses hand-written chi handlers.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/iocsight/internal/domain"
	"github.com/kailas-cloud/iocsight/internal/prompt"
	analysisuc "github.com/kailas-cloud/iocsight/internal/usecase/analysis"
	dashboarduc "github.com/kailas-cloud/iocsight/internal/usecase/dashboard"
	healthuc "github.com/kailas-cloud/iocsight/internal/usecase/health"
	searchuc "github.com/kailas-cloud/iocsight/internal/usecase/search"
	usageuc "github.com/kailas-cloud/iocsight/internal/usecase/usage"
)

// Error codes returned in JSON error bodies.
const (
	codeBadRequest            = "bad_request"
	codeValidationFailed      = "validation_failed"
	codeQuotaExceeded         = "quota_exceeded"
	codeRateLimited           = "rate_limited"
	codeRetrievalUnavailable  = "retrieval_unavailable"
	codeEmbeddingProvider     = "embedding_provider_error"
	codeGenerationUnavailable = "generation_unavailable"
	codeGenerationMalformed   = "generation_malformed"
	codeInternalError         = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the use case services behind the HTTP surface.
type Server struct {
	search        *searchuc.Service
	analysis      *analysisuc.Service
	dashboard     *dashboarduc.Service
	usage         *usageuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	analysis *analysisuc.Service,
	dashboard *dashboarduc.Service,
	usage *usageuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:    search,
		analysis:  analysis,
		dashboard: dashboard,
		usage:     usage,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrRetrievalUnavailable, http.StatusServiceUnavailable, codeRetrievalUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrGenerationUnavailable, http.StatusBadGateway, codeGenerationUnavailable),
		sentinelHandler(domain.ErrGenerationMalformed, http.StatusBadGateway, codeGenerationMalformed),
	}
	return s
}

// Routes registers all handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/ask", s.Ask)
	r.Post("/search-iocs", s.SearchIOCs)
	r.Post("/analyze-ioc", s.AnalyzeIOC)
	r.Post("/bcm-impact", s.BCMImpact)
	r.Post("/generate-report", s.GenerateReport)
	r.Get("/bcm-dashboard", s.BCMDashboard)
	r.Get("/feeds/status", s.FeedsStatus)
	r.Get("/alerts", s.Alerts)
	r.Get("/usage", s.GetUsage)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type iocRequest struct {
	IOC      string `json:"ioc"`
	IOCType  string `json:"ioc_type"`
	Severity string `json:"severity"`
	Sector   string `json:"sector,omitempty"`
}

type reportRequest struct {
	Type      string `json:"type"`
	Format    string `json:"format"`
	TimeRange struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"timeRange"`
	IncludeCharts          *bool `json:"includeCharts"`
	IncludeRecommendations *bool `json:"includeRecommendations"`
}

type generationResponse struct {
	Response    string `json:"response"`
	ContextUsed string `json:"context_used"`
}

type matchItem struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

type dashboardEntry struct {
	IOCID      string  `json:"ioc_id"`
	Score      float64 `json:"score"`
	BCMSummary string  `json:"bcm_summary,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Ask handles POST /ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := s.analysis.Ask(r.Context(), req.Query)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generationResponse{
		Response:    result.Text,
		ContextUsed: result.ContextUsed,
	})
}

// SearchIOCs handles POST /search-iocs.
func (s *Server) SearchIOCs(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	matches, err := s.search.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]matchItem, len(matches))
	for i, m := range matches {
		items[i] = matchToItem(m)
	}

	writeJSON(w, http.StatusOK, map[string]any{"matches": items})
}

// AnalyzeIOC handles POST /analyze-ioc.
func (s *Server) AnalyzeIOC(w http.ResponseWriter, r *http.Request) {
	var req iocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := s.analysis.Enrich(r.Context(), req.IOC, req.IOCType, req.Severity)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generationResponse{Response: result.Text})
}

// BCMImpact handles POST /bcm-impact.
func (s *Server) BCMImpact(w http.ResponseWriter, r *http.Request) {
	var req iocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := s.analysis.AssessImpact(r.Context(), req.IOC, req.IOCType, req.Severity, req.Sector)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generationResponse{Response: result.Text})
}

// GenerateReport handles POST /generate-report.
func (s *Server) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	params := prompt.ReportParams{
		Type:   req.Type,
		Format: req.Format,
		TimeRange: prompt.TimeRange{
			Start: req.TimeRange.Start,
			End:   req.TimeRange.End,
		},
		IncludeCharts:          derefBool(req.IncludeCharts, true),
		IncludeRecommendations: derefBool(req.IncludeRecommendations, true),
	}

	result, err := s.analysis.GenerateReport(r.Context(), params)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generationResponse{Response: result.Text})
}

// BCMDashboard handles GET /bcm-dashboard.
func (s *Server) BCMDashboard(w http.ResponseWriter, r *http.Request) {
	seed := r.URL.Query().Get("seed")

	topK := 0
	if v := r.URL.Query().Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "top_k must be a positive integer")
			return
		}
		topK = n
	}

	entries, err := s.dashboard.Aggregate(r.Context(), seed, topK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	results := make([]dashboardEntry, len(entries))
	for i, e := range entries {
		results[i] = dashboardEntry{
			IOCID:      e.MatchID,
			Score:      e.Score,
			BCMSummary: e.Summary,
			Error:      e.FailureReason,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"bcm_results": results})
}

// FeedsStatus handles GET /feeds/status.
func (s *Server) FeedsStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"feeds": []map[string]string{
			{"name": "AbuseIPDB", "status": "active"},
			{"name": "URLhaus", "status": "active"},
			{"name": "PhishTank", "status": "active"},
		},
	})
}

// Alerts handles GET /alerts.
func (s *Server) Alerts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": []map[string]string{
			{
				"id":       "A-2025-001",
				"title":    "Suspicious IP Contact",
				"severity": "High",
				"status":   "open",
			},
			{
				"id":       "A-2025-002",
				"title":    "Phishing URL Detected",
				"severity": "Medium",
				"status":   "investigating",
			},
		},
	})
}

// GetUsage handles GET /usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period := usageuc.Period(r.URL.Query().Get("period"))
	report := s.usage.GetReport(r.Context(), period)
	writeJSON(w, http.StatusOK, report)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func matchToItem(m domain.Match) matchItem {
	md := make(map[string]any)
	if m.Metadata.Type != "" {
		md["type"] = m.Metadata.Type
	}
	if m.Metadata.Value != "" {
		md["value"] = m.Metadata.Value
	}
	if m.Metadata.Severity != "" {
		md["severity"] = m.Metadata.Severity
	}
	if m.Metadata.Confidence != "" {
		md["confidence"] = m.Metadata.Confidence
	}
	if m.Metadata.Sector != "" {
		md["sector"] = m.Metadata.Sector
	}
	return matchItem{ID: m.ID, Score: m.Score, Metadata: md}
}

func derefBool(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrQuotaExceeded,
		domain.ErrRateLimited,
		domain.ErrRetrievalUnavailable,
		domain.ErrEmbeddingProviderError,
		domain.ErrGenerationUnavailable,
		domain.ErrGenerationMalformed,
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
