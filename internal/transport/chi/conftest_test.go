package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/iocsight/internal/domain"
	analysisuc "github.com/kailas-cloud/iocsight/internal/usecase/analysis"
	dashboarduc "github.com/kailas-cloud/iocsight/internal/usecase/dashboard"
	healthuc "github.com/kailas-cloud/iocsight/internal/usecase/health"
	searchuc "github.com/kailas-cloud/iocsight/internal/usecase/search"
	usageuc "github.com/kailas-cloud/iocsight/internal/usecase/usage"
)

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return m.result, m.err
}

type mockIndex struct {
	matches []domain.Match
	err     error
}

func (m *mockIndex) Query(_ context.Context, _ []float32, _ int, _ string) ([]domain.Match, error) {
	return m.matches, m.err
}

type mockGenerator struct {
	result domain.GenerationResult
	err    error
}

func (m *mockGenerator) Generate(_ context.Context, _ domain.GenerationRequest) (domain.GenerationResult, error) {
	return m.result, m.err
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// testDeps are the mocked pipeline stages behind a test server.
type testDeps struct {
	embed  *mockEmbedder
	index  *mockIndex
	gen    *mockGenerator
	pinger *mockPinger
}

func defaultDeps() *testDeps {
	return &testDeps{
		embed: &mockEmbedder{result: domain.EmbeddingResult{
			Embedding: []float32{0.1, 0.2}, TotalTokens: 4,
		}},
		index: &mockIndex{matches: []domain.Match{
			{
				ID:    "ioc-1",
				Score: 0.91,
				Metadata: domain.Metadata{
					Type: "ip", Value: "1.2.3.4", Severity: "high", Confidence: "90",
				},
			},
		}},
		gen:    &mockGenerator{result: domain.GenerationResult{Text: "generated answer", TotalTokens: 20}},
		pinger: &mockPinger{},
	}
}

// newTestServer wires the full route table against mocked dependencies.
func newTestServer(t *testing.T, deps *testDeps) http.Handler {
	t.Helper()

	logger := zap.NewNop()
	analysis := analysisuc.New(deps.embed, deps.index, deps.gen, "iocs")
	srv := NewServer(
		searchuc.New(deps.embed, deps.index, "iocs"),
		analysis,
		dashboarduc.New(deps.embed, deps.index, analysis, "iocs", "", 0, 2, nil, logger),
		usageuc.New(nil),
		healthuc.New(deps.pinger, nil, nil),
		logger,
	)

	r := chirouter.NewRouter()
	srv.Routes(r)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
