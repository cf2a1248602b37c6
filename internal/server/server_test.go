package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/rfp-intake/internal/intake"
	"github.com/spigell/rfp-intake/internal/models"
)

type fakeStore struct {
	mu        sync.Mutex
	vendors   []models.Vendor
	rfps      []models.RFP
	proposals []models.Proposal
	failAll   bool
}

func (f *fakeStore) VendorsByEmail(_ context.Context, email string) ([]models.Vendor, error) {
	var out []models.Vendor
	for _, v := range f.vendors {
		if strings.EqualFold(v.Email, email) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeStore) VendorByID(_ context.Context, id int64) (*models.Vendor, error) {
	for _, v := range f.vendors {
		if v.ID == id {
			return &v, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) RFPByID(_ context.Context, id int64) (*models.RFP, error) {
	for _, r := range f.rfps {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) RFPBySubject(_ context.Context, subject string) (*models.RFP, error) {
	subject = strings.ToLower(subject)
	for _, r := range f.rfps {
		title := strings.ToLower(r.Title)
		if strings.Contains(title, subject) || strings.Contains(subject, title) {
			return &r, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) RecordResponse(_ context.Context, p *models.Proposal) (*models.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errors.New("insert proposal: connection reset")
	}
	stored := *p
	stored.ID = int64(len(f.proposals) + 1)
	stored.CreatedAt = time.Now()
	f.proposals = append(f.proposals, stored)
	return &stored, nil
}

func (f *fakeStore) ProposalsByRFP(_ context.Context, rfpID int64) ([]models.VendorProposal, error) {
	out := []models.VendorProposal{}
	for _, p := range f.proposals {
		if p.RFPID == rfpID {
			v, _ := f.VendorByID(context.Background(), p.VendorID)
			out = append(out, models.VendorProposal{Proposal: p, VendorName: v.Name, VendorEmail: v.Email})
		}
	}
	return out, nil
}

func newFakeStore() *fakeStore {
	budget := 10000.0
	return &fakeStore{
		vendors: []models.Vendor{
			{ID: 1, Name: "Alpha", Email: "sales@shared.example"},
			{ID: 2, Name: "Beta", Email: "sales@shared.example"},
			{ID: 3, Name: "Solo", Email: "bids@solo.example"},
		},
		rfps: []models.RFP{
			{ID: 5, Title: "Office Chairs", Budget: &budget, CreatedAt: time.Now()},
		},
	}
}

const body = "Chairs: $9,000\nDelivery: $1,000\nTotal: $10,000\nPayment: Net 30"

func newTestServer(store *fakeStore, secret string, opts Options) *Server {
	svc := intake.NewService(store, nil, nil, zap.NewNop(), intake.Options{})
	return New(svc, intake.NewSignatureVerifier(secret), zap.NewNop(), opts)
}

func do(t *testing.T, s *Server, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func jsonRequest(method, target string, payload any) *http.Request {
	raw, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, target, strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	s := newTestServer(newFakeStore(), "", Options{})
	rec, out := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	s = newTestServer(newFakeStore(), "", Options{HealthCheck: func(context.Context) error { return errors.New("db down") }})
	rec, out = do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "db down", out["error"])
}

func TestEmailWebhookJSON(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(store, "", Options{})

	req := jsonRequest(http.MethodPost, "/api/webhooks/email", map[string]string{
		"from":    "Shared Sales <sales@shared.example>",
		"subject": "Re: RFP - Office Chairs",
		"text":    body,
	})
	req.Header.Set(requestIDHeader, "req-123")

	rec, out := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Proposal received and recorded for 2 vendor(s)", out["message"])
	assert.Equal(t, map[string]any{"id": float64(5), "title": "Office Chairs"}, out["rfp"])
	assert.Len(t, out["proposals"], 2)
	assert.Empty(t, out["failures"])
	assert.Len(t, store.proposals, 2)
}

func TestEmailWebhookForm(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(store, "", Options{})

	form := url.Values{}
	form.Set("from", "bids@solo.example")
	form.Set("subject", "Quote")
	form.Set("html", "<p>RFP_ID: 5</p><p>"+strings.ReplaceAll(body, "\n", "<br>")+"</p>")
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/email", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec, out := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, out["proposals"], 1)
	require.Len(t, store.proposals, 1)
	assert.Equal(t, int64(3), store.proposals[0].VendorID)
}

func TestEmailWebhookSignature(t *testing.T) {
	const secret = "whsec"
	payload := `{"from":"bids@solo.example","subject":"Office Chairs","text":"` + strings.ReplaceAll(body, "\n", `\n`) + `"}`

	tests := []struct {
		name      string
		signature string
		timestamp string
		want      int
	}{
		{name: "missing headers", want: http.StatusUnauthorized},
		{name: "wrong signature", signature: "bm9wZQ==", timestamp: "1700000000", want: http.StatusUnauthorized},
		{name: "valid", signature: intake.Sign(secret, "1700000000", []byte(payload)), timestamp: "1700000000", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			s := newTestServer(store, secret, Options{})

			req := httptest.NewRequest(http.MethodPost, "/api/webhooks/email", strings.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			if tt.signature != "" {
				req.Header.Set(intake.DefaultSignatureHeader, tt.signature)
				req.Header.Set(intake.DefaultTimestampHeader, tt.timestamp)
			}

			rec, _ := do(t, s, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want != http.StatusOK {
				assert.Empty(t, store.proposals)
			}
		})
	}
}

func TestEmailWebhookErrors(t *testing.T) {
	tests := []struct {
		name      string
		payload   map[string]string
		want      int
		wantError string
		wantHint  string
	}{
		{
			name:      "missing from",
			payload:   map[string]string{"text": body},
			want:      http.StatusBadRequest,
			wantError: intake.ErrMissingFields.Error(),
		},
		{
			name:      "short body",
			payload:   map[string]string{"from": "bids@solo.example", "text": "see attached"},
			want:      http.StatusBadRequest,
			wantError: intake.ErrBodyTooShort.Error(),
		},
		{
			name:      "unknown vendor",
			payload:   map[string]string{"from": "who@nowhere.example", "text": body},
			want:      http.StatusNotFound,
			wantError: intake.ErrVendorNotRegistered.Error(),
		},
		{
			name:      "unresolved rfp",
			payload:   map[string]string{"from": "bids@solo.example", "subject": "Hello", "text": body},
			want:      http.StatusNotFound,
			wantError: intake.ErrRFPUnresolved.Error(),
			wantHint:  intake.HintRFPMarker,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(newFakeStore(), "", Options{})
			rec, out := do(t, s, jsonRequest(http.MethodPost, "/api/webhooks/email", tt.payload))
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.wantError, out["error"])
			if tt.wantHint != "" {
				assert.Equal(t, tt.wantHint, out["hint"])
			}
		})
	}
}

func TestEmailWebhookNothingRecorded(t *testing.T) {
	store := newFakeStore()
	store.failAll = true
	s := newTestServer(store, "", Options{})

	rec, out := do(t, s, jsonRequest(http.MethodPost, "/api/webhooks/email", map[string]string{
		"from":    "sales@shared.example",
		"subject": "Office Chairs",
		"text":    body,
	}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, intake.ErrNothingRecorded.Error(), out["error"])
	assert.Len(t, out["failures"], 2)
}

func TestManualResponse(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(store, "", Options{})

	rec, out := do(t, s, jsonRequest(http.MethodPost, "/api/webhooks/manual-response", map[string]any{
		"vendorId":  2,
		"rfpId":     5,
		"emailBody": body,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, out["success"])
	require.Len(t, store.proposals, 1)
	assert.Equal(t, int64(2), store.proposals[0].VendorID)

	rec, out = do(t, s, jsonRequest(http.MethodPost, "/api/webhooks/manual-response", map[string]any{"rfpId": 5}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, intake.ErrMissingFields.Error(), out["error"])
	assert.Contains(t, out["details"], "vendorEmail")
}

func TestParse(t *testing.T) {
	s := newTestServer(newFakeStore(), "", Options{})

	rec, out := do(t, s, jsonRequest(http.MethodPost, "/api/proposals/parse", map[string]string{"text": body}))
	require.Equal(t, http.StatusOK, rec.Code)
	extraction, ok := out["proposal"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(10000), extraction["total"])
	assert.Equal(t, float64(95), extraction["score"])
	assert.Equal(t, "heuristic", extraction["method"])

	rec, _ = do(t, s, jsonRequest(http.MethodPost, "/api/proposals/parse", map[string]string{"text": " "}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompare(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(store, "", Options{})

	rec, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/api/proposals/compare/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out := do(t, s, httptest.NewRequest(http.MethodGet, "/api/proposals/compare/99", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, intake.ErrRFPNotFound.Error(), out["error"])

	do(t, s, jsonRequest(http.MethodPost, "/api/webhooks/manual-response", map[string]any{"vendorId": 3, "rfpId": 5, "emailBody": body}))

	rec, out = do(t, s, httptest.NewRequest(http.MethodGet, "/api/proposals/compare/5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	compared, ok := out["compared"].([]any)
	require.True(t, ok)
	require.Len(t, compared, 1)
	assert.Equal(t, float64(100), compared[0].(map[string]any)["score"])
}

func TestEmailTestEndpoint(t *testing.T) {
	s := newTestServer(newFakeStore(), "secret", Options{})
	rec, out := do(t, s, httptest.NewRequest(http.MethodGet, "/api/webhooks/email/test", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["signatureVerification"])
}
