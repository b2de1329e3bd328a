package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ms-booking/internal/gateway"
	"ms-booking/internal/logger"
)

func newTestClient(baseURL, apiKey string, production bool) *gateway.Client {
	return gateway.NewClient(
		baseURL,
		apiKey,
		"https://charters.example",
		production,
		60*time.Second,
		30*time.Minute,
		&http.Client{Timeout: 5 * time.Second},
		&logger.Logger{},
	)
}

func TestLinkIDClassification(t *testing.T) {
	assert.True(t, gateway.IsMockLinkID("mock-link-1717666200000-res1"))
	assert.True(t, gateway.IsMockLinkID("mock-abc"))
	assert.False(t, gateway.IsMockLinkID("MB-LINK-ABC123"))

	assert.True(t, gateway.IsRealLinkID("MB-LINK-ABC123"))
	assert.True(t, gateway.IsRealLinkID("mb-link-abc123"))
	assert.False(t, gateway.IsRealLinkID("mock-link-1717666200000-res1"))
	assert.False(t, gateway.IsRealLinkID(""))
}

func TestCreateLinkMockMode(t *testing.T) {
	client := newTestClient("https://unused.example", "", false)
	assert.True(t, client.MockMode())

	link, err := client.CreateLink(context.Background(), gateway.LinkRequest{
		Title:         "Payment - booking txn_1",
		Amount:        500,
		ReservationID: "res1",
	})

	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.ID, "mock-link-"))
	assert.True(t, strings.HasSuffix(link.ID, "-res1"))
	assert.Equal(t, "https://charters.example/pay/"+link.ID, link.URL)
}

func TestCreateLinkSendsProviderPayload(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":          "MB-LINK-XYZ789",
			"payment_url": "https://pay.mamopay.example/xyz",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "sk_test_123", false)

	link, err := client.CreateLink(context.Background(), gateway.LinkRequest{
		Title:             "Down payment - booking txn_1",
		Description:       "Down payment for charter 2026-06-06",
		Amount:            300,
		ReservationID:     "res1",
		InstallmentNumber: 0,
		TotalInstallments: 2,
	})

	assert.NoError(t, err)
	assert.Equal(t, "MB-LINK-XYZ789", link.ID)
	assert.Equal(t, "https://pay.mamopay.example/xyz", link.URL)

	assert.Equal(t, "/manage_api/v1/links", gotPath)
	assert.Equal(t, "Bearer sk_test_123", gotAuth)
	assert.Equal(t, "AED", gotBody["amount_currency"])
	assert.Equal(t, float64(300), gotBody["amount"])
	assert.Equal(t, "https://charters.example/payment-success", gotBody["return_url"])

	custom := gotBody["custom_data"].(map[string]interface{})
	assert.Equal(t, "res1", custom["external_id"])
	assert.Equal(t, float64(2), custom["total_installments"])
}

func TestCreateLinkTruncatesLongTitles(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "MB-LINK-A1", "payment_url": "https://pay.example/a"})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "sk_test_123", false)
	long := strings.Repeat("x", 120)

	_, err := client.CreateLink(context.Background(), gateway.LinkRequest{Title: long, Description: long, ReservationID: "res1"})
	assert.NoError(t, err)
	assert.Len(t, gotBody["title"], 75)
	assert.Len(t, gotBody["description"], 75)
}

func TestCreateLinkAuthFailureFallsBackOutsideProduction(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "sk_bad", false)

	link, err := client.CreateLink(context.Background(), gateway.LinkRequest{ReservationID: "res1"})
	assert.NoError(t, err)
	assert.True(t, gateway.IsMockLinkID(link.ID))
	assert.Equal(t, 1, requests)

	// The auth cooldown also pauses status checks without touching the
	// network
	captured, err := client.QueryCaptured(context.Background(), "MB-LINK-REAL1")
	assert.NoError(t, err)
	assert.False(t, captured)
	assert.Equal(t, 1, requests)
}

func TestCreateLinkAuthFailureFailsInProduction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "sk_bad", true)

	_, err := client.CreateLink(context.Background(), gateway.LinkRequest{ReservationID: "res1"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rejected credentials")
}

func TestQueryCapturedFollowsPagination(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		page := r.URL.Query().Get("page")
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))
		assert.Equal(t, "MB-LINK-ABC123", r.URL.Query().Get("payment_link_id"))

		if page == "1" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data":            []map[string]string{{"status": "failed", "payment_link_id": "MB-LINK-ABC123"}},
				"pagination_meta": map[string]interface{}{"next_page": 2},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data":            []map[string]string{{"status": "captured", "payment_link_id": "MB-LINK-ABC123"}},
			"pagination_meta": map[string]interface{}{"next_page": nil},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "sk_test_123", false)

	captured, err := client.QueryCaptured(context.Background(), "MB-LINK-ABC123")
	assert.NoError(t, err)
	assert.True(t, captured)
	assert.Equal(t, 2, requests)
}

func TestQueryCapturedStopsAtPageCap(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data":            []map[string]string{},
			"pagination_meta": map[string]interface{}{"next_page": requests + 1},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "sk_test_123", false)

	captured, err := client.QueryCaptured(context.Background(), "MB-LINK-ABC123")
	assert.NoError(t, err)
	assert.False(t, captured)
	assert.Equal(t, 2, requests)
}

func TestQueryCapturedRateLimitCooldown(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "sk_test_123", false)

	captured, err := client.QueryCaptured(context.Background(), "MB-LINK-ABC123")
	assert.NoError(t, err)
	assert.False(t, captured)
	assert.Equal(t, 1, requests)

	// Retry-After below the floor still cools down for at least five
	// seconds, so the next check makes no request
	captured, err = client.QueryCaptured(context.Background(), "MB-LINK-ABC123")
	assert.NoError(t, err)
	assert.False(t, captured)
	assert.Equal(t, 1, requests)
}

func TestQueryCapturedNeverQueriesMockLinks(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	client := newTestClient(server.URL, "sk_test_123", false)

	captured, err := client.QueryCaptured(context.Background(), "mock-link-1717666200000-res1")
	assert.NoError(t, err)
	assert.False(t, captured)

	captured, err = client.QueryCaptured(context.Background(), "")
	assert.NoError(t, err)
	assert.False(t, captured)

	assert.Equal(t, 0, requests)
}
