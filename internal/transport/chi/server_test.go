package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/kailas-cloud/iocsight/internal/domain"
)

func decodeBody(t *testing.T, rr interface{ Result() *http.Response }, v any) {
	t.Helper()
	res := rr.Result()
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestAsk_OK(t *testing.T) {
	deps := defaultDeps()
	h := newTestServer(t, deps)

	rr := doRequest(t, h, "POST", "/ask", `{"query":"what is 1.2.3.4"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp generationResponse
	decodeBody(t, rr, &resp)
	if resp.Response != "generated answer" {
		t.Errorf("response = %q", resp.Response)
	}
	if resp.ContextUsed == "" {
		t.Error("expected non-empty context_used")
	}
}

func TestAsk_EmptyQuery_400(t *testing.T) {
	h := newTestServer(t, defaultDeps())

	rr := doRequest(t, h, "POST", "/ask", `{"query":""}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}

	var errResp map[string]string
	decodeBody(t, rr, &errResp)
	if errResp["code"] != codeValidationFailed {
		t.Errorf("code = %s, want %s", errResp["code"], codeValidationFailed)
	}
}

func TestAsk_InvalidJSON_400(t *testing.T) {
	h := newTestServer(t, defaultDeps())

	rr := doRequest(t, h, "POST", "/ask", `{not json`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestAsk_RetrievalDown_503(t *testing.T) {
	deps := defaultDeps()
	deps.index.err = domain.ErrRetrievalUnavailable
	h := newTestServer(t, deps)

	rr := doRequest(t, h, "POST", "/ask", `{"query":"q"}`)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}

	var errResp map[string]string
	decodeBody(t, rr, &errResp)
	if errResp["code"] != codeRetrievalUnavailable {
		t.Errorf("code = %s, want %s", errResp["code"], codeRetrievalUnavailable)
	}
}

func TestAsk_GenerationDown_502(t *testing.T) {
	deps := defaultDeps()
	deps.gen.err = domain.ErrGenerationUnavailable
	h := newTestServer(t, deps)

	rr := doRequest(t, h, "POST", "/ask", `{"query":"q"}`)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusBadGateway)
	}
}

func TestAsk_QuotaExceeded_402(t *testing.T) {
	deps := defaultDeps()
	deps.embed.err = domain.ErrQuotaExceeded
	h := newTestServer(t, deps)

	rr := doRequest(t, h, "POST", "/ask", `{"query":"q"}`)

	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusPaymentRequired)
	}
}

func TestAsk_UnknownError_500(t *testing.T) {
	deps := defaultDeps()
	deps.embed.err = errors.New("surprise")
	h := newTestServer(t, deps)

	rr := doRequest(t, h, "POST", "/ask", `{"query":"q"}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusInternalServerError)
	}

	var errResp map[string]string
	decodeBody(t, rr, &errResp)
	// Internal details never reach the client.
	if errResp["message"] != "internal error" {
		t.Errorf("message = %q, must not leak internals", errResp["message"])
	}
}

func TestSearchIOCs_OK(t *testing.T) {
	h := newTestServer(t, defaultDeps())

	rr := doRequest(t, h, "POST", "/search-iocs", `{"query":"botnet","top_k":3}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp struct {
		Matches []matchItem `json:"matches"`
	}
	decodeBody(t, rr, &resp)
	if len(resp.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(resp.Matches))
	}
	m := resp.Matches[0]
	if m.ID != "ioc-1" || m.Score != 0.91 {
		t.Errorf("unexpected match: %+v", m)
	}
	if m.Metadata["value"] != "1.2.3.4" {
		t.Errorf("metadata value = %v", m.Metadata["value"])
	}
	if _, ok := m.Metadata["sector"]; ok {
		t.Error("empty metadata fields must be omitted")
	}
}

func TestAnalyzeIOC_OK(t *testing.T) {
	h := newTestServer(t, defaultDeps())

	rr := doRequest(t, h, "POST", "/analyze-ioc",
		`{"ioc":"1.2.3.4","ioc_type":"ip","severity":"high"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp generationResponse
	decodeBody(t, rr, &resp)
	if resp.Response != "generated answer" {
		t.Errorf("response = %q", resp.Response)
	}
}

func TestAnalyzeIOC_UnknownType_400(t *testing.T) {
	h := newTestServer(t, defaultDeps())

	rr := doRequest(t, h, "POST", "/analyze-ioc",
		`{"ioc":"a@b.com","ioc_type":"email","severity":"low"}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestBCMImpact_OK(t *testing.T) {
	h := newTestServer(t, defaultDeps())

	rr := doRequest(t, h, "POST", "/bcm-impact",
		`{"ioc":"evil.example","ioc_type":"domain","severity":"medium","sector":"finance"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestGenerateReport_OK(t *testing.T) {
	h := newTestServer(t, defaultDeps())

	rr := doRequest(t, h, "POST", "/generate-report",
		`{"type":"technical","format":"pdf","timeRange":{"start":"2025-01-01","end":"2025-01-31"},"includeCharts":false}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestGenerateReport_EmptyBodyDefaults(t *testing.T) {
	h := newTestServer(t, defaultDeps())

	rr := doRequest(t, h, "POST", "/generate-report", `{}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestBCMDashboard_OK(t *testing.T) {
	deps := defaultDeps()
	deps.index.matches = []domain.Match{
		{ID: "ioc-1", Score: 0.91, Metadata: domain.Metadata{Value: "1.2.3.4"}},
		{ID: "ioc-2", Score: 0.77, Metadata: domain.Metadata{Value: "evil.example"}},
	}
	h := newTestServer(t, deps)

	rr := doRequest(t, h, "GET", "/bcm-dashboard", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp struct {
		Results []dashboardEntry `json:"bcm_results"`
	}
	decodeBody(t, rr, &resp)
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(resp.Results))
	}
	if resp.Results[0].IOCID != "ioc-1" || resp.Results[1].IOCID != "ioc-2" {
		t.Errorf("entries out of order: %+v", resp.Results)
	}
	for _, e := range resp.Results {
		if e.BCMSummary == "" {
			t.Errorf("entry %s missing summary", e.IOCID)
		}
		if e.Error != "" {
			t.Errorf("entry %s has unexpected error: %s", e.IOCID, e.Error)
		}
	}
}

func TestBCMDashboard_AssessmentFailureMarkers(t *testing.T) {
	deps := defaultDeps()
	deps.gen.err = domain.ErrGenerationUnavailable
	h := newTestServer(t, deps)

	rr := doRequest(t, h, "GET", "/bcm-dashboard", "")

	// Per-entry failures do not fail the batch.
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp struct {
		Results []dashboardEntry `json:"bcm_results"`
	}
	decodeBody(t, rr, &resp)
	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(resp.Results))
	}
	e := resp.Results[0]
	if e.Error == "" {
		t.Error("expected error marker on failed assessment")
	}
	if e.BCMSummary != "" {
		t.Errorf("failed entry must not carry a summary: %q", e.BCMSummary)
	}
}

func TestBCMDashboard_BadTopK_400(t *testing.T) {
	h := newTestServer(t, defaultDeps())

	for _, q := range []string{"top_k=abc", "top_k=0", "top_k=-3"} {
		rr := doRequest(t, h, "GET", "/bcm-dashboard?"+q, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want %d", q, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestFeedsStatus_Canned(t *testing.T) {
	h := newTestServer(t, defaultDeps())

	rr := doRequest(t, h, "GET", "/feeds/status", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp struct {
		Feeds []map[string]string `json:"feeds"`
	}
	decodeBody(t, rr, &resp)
	if len(resp.Feeds) != 3 {
		t.Fatalf("expected 3 feeds, got %d", len(resp.Feeds))
	}
	if resp.Feeds[0]["name"] != "AbuseIPDB" {
		t.Errorf("unexpected first feed: %v", resp.Feeds[0])
	}
}

func TestAlerts_Canned(t *testing.T) {
	h := newTestServer(t, defaultDeps())

	rr := doRequest(t, h, "GET", "/alerts", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp struct {
		Alerts []map[string]string `json:"alerts"`
	}
	decodeBody(t, rr, &resp)
	if len(resp.Alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(resp.Alerts))
	}
	if resp.Alerts[0]["id"] != "A-2025-001" {
		t.Errorf("unexpected first alert: %v", resp.Alerts[0])
	}
}

func TestGetUsage_OK(t *testing.T) {
	h := newTestServer(t, defaultDeps())

	rr := doRequest(t, h, "GET", "/usage?period=day", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp map[string]any
	decodeBody(t, rr, &resp)
	if resp["period"] != "day" {
		t.Errorf("period = %v, want day", resp["period"])
	}
}

func TestHealthCheck_OK(t *testing.T) {
	h := newTestServer(t, defaultDeps())

	rr := doRequest(t, h, "GET", "/health", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestHealthCheck_Degraded_503(t *testing.T) {
	deps := defaultDeps()
	deps.pinger.err = errors.New("redis down")
	h := newTestServer(t, deps)

	rr := doRequest(t, h, "GET", "/health", "")

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}
