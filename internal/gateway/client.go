package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"ms-booking/internal/logger"
)

// maxChargePages bounds the captured-charge lookup. Links here carry a
// handful of charges at most, two pages of fifty is plenty.
const (
	maxChargePages = 2
	chargesPerPage = 50
)

const minRateLimitCooldown = 5 * time.Second

var realLinkPattern = regexp.MustCompile(`(?i)^MB-LINK-[A-Z0-9]+$`)

// IsMockLinkID reports whether the id was minted locally. Mock ids must
// never reach the provider's charge lookup.
func IsMockLinkID(id string) bool {
	return strings.HasPrefix(id, "mock-link-") || strings.HasPrefix(id, "mock-")
}

// IsRealLinkID matches the provider's link id format.
func IsRealLinkID(id string) bool {
	return realLinkPattern.MatchString(id)
}

// Scope holds cooldown state shared by all gateway calls in the
// process. It is injected so callers (and tests) control its lifetime;
// losing it on restart costs at most one early retry.
type Scope struct {
	mu               sync.Mutex
	rateLimitedUntil time.Time
	authFailedUntil  time.Time
}

func NewScope() *Scope {
	return &Scope{}
}

func (s *Scope) coolingDown(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Before(s.rateLimitedUntil) || now.Before(s.authFailedUntil)
}

func (s *Scope) setRateLimit(until time.Time) {
	s.mu.Lock()
	s.rateLimitedUntil = until
	s.mu.Unlock()
}

func (s *Scope) setAuthFailure(until time.Time) {
	s.mu.Lock()
	s.authFailedUntil = until
	s.mu.Unlock()
}

type LinkRequest struct {
	Title             string
	Description       string
	Amount            int64
	ReservationID     string
	InstallmentNumber int
	TotalInstallments int
}

type Link struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Client talks to the Mamo-style payment-link API. With no API key it
// runs in mock mode and fabricates links locally.
type Client struct {
	BaseURL     string
	APIKey      string
	FrontendURL string
	Production  bool

	RateLimitFallback time.Duration
	AuthCooldown      time.Duration

	HTTP   *http.Client
	Logger *logger.Logger
	Scope  *Scope

	Now func() time.Time
}

func NewClient(baseURL, apiKey, frontendURL string, production bool, rateLimitFallback, authCooldown time.Duration, httpClient *http.Client, log *logger.Logger) *Client {
	return &Client{
		BaseURL:           strings.TrimRight(baseURL, "/"),
		APIKey:            apiKey,
		FrontendURL:       strings.TrimRight(frontendURL, "/"),
		Production:        production,
		RateLimitFallback: rateLimitFallback,
		AuthCooldown:      authCooldown,
		HTTP:              httpClient,
		Logger:            log,
		Scope:             NewScope(),
		Now:               time.Now,
	}
}

// MockMode reports whether links are fabricated locally.
func (c *Client) MockMode() bool {
	return c.APIKey == ""
}

func (c *Client) mockLink(reservationID string) Link {
	id := fmt.Sprintf("mock-link-%d-%s", c.Now().UnixMilli(), reservationID)
	return Link{
		ID:  id,
		URL: fmt.Sprintf("%s/pay/%s", c.FrontendURL, id),
	}
}

type createLinkBody struct {
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Amount           int64          `json:"amount"`
	AmountCurrency   string         `json:"amount_currency"`
	ReturnURL        string         `json:"return_url"`
	FailureReturnURL string         `json:"failure_return_url"`
	CustomData       linkCustomData `json:"custom_data"`
}

type linkCustomData struct {
	ExternalID        string `json:"external_id"`
	InstallmentNumber int    `json:"installment_number,omitempty"`
	TotalInstallments int    `json:"total_installments,omitempty"`
}

type createLinkResponse struct {
	ID         string `json:"id"`
	PaymentURL string `json:"payment_url"`
	URL        string `json:"url"`
}

// CreateLink requests a hosted payment link. In mock mode, or when the
// provider rejects our credentials outside production, it fabricates a
// mock link instead of failing the booking.
func (c *Client) CreateLink(ctx context.Context, req LinkRequest) (Link, error) {
	if c.MockMode() {
		link := c.mockLink(req.ReservationID)
		c.Logger.LogPayment("CREATE", link.ID, "mock mode, fabricated local link")
		return link, nil
	}

	body := createLinkBody{
		Title:            truncate(req.Title, 75),
		Description:      truncate(req.Description, 75),
		Amount:           req.Amount,
		AmountCurrency:   "AED",
		ReturnURL:        c.FrontendURL + "/payment-success",
		FailureReturnURL: c.FrontendURL + "/payment-failure",
		CustomData: linkCustomData{
			ExternalID:        req.ReservationID,
			InstallmentNumber: req.InstallmentNumber,
			TotalInstallments: req.TotalInstallments,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Link{}, fmt.Errorf("marshal link request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/manage_api/v1/links", bytes.NewReader(payload))
	if err != nil {
		return Link{}, fmt.Errorf("build link request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return Link{}, fmt.Errorf("create payment link: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.Scope.setAuthFailure(c.Now().Add(c.AuthCooldown))
		if !c.Production {
			link := c.mockLink(req.ReservationID)
			c.Logger.Warn("GATEWAY", fmt.Sprintf("provider rejected credentials (%d), falling back to mock link %s", resp.StatusCode, link.ID))
			return link, nil
		}
		return Link{}, fmt.Errorf("payment provider rejected credentials: status %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Link{}, fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}

	var decoded createLinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Link{}, fmt.Errorf("decode link response: %w", err)
	}

	linkURL := decoded.PaymentURL
	if linkURL == "" {
		linkURL = decoded.URL
	}
	if decoded.ID == "" || linkURL == "" {
		return Link{}, fmt.Errorf("payment provider returned an incomplete link")
	}

	c.Logger.LogPayment("CREATE", decoded.ID, fmt.Sprintf("link created for reservation %s", req.ReservationID))
	return Link{ID: decoded.ID, URL: linkURL}, nil
}

type chargesResponse struct {
	Data []struct {
		Status        string `json:"status"`
		PaymentLinkID string `json:"payment_link_id"`
	} `json:"data"`
	PaginationMeta struct {
		NextPage *int `json:"next_page"`
	} `json:"pagination_meta"`
}

// QueryCaptured reports whether the link has a captured charge. Mock
// links and links queried during a cooldown report not-captured
// without touching the network. Exhausting the page cap without a
// match is also not-captured, not an error.
func (c *Client) QueryCaptured(ctx context.Context, linkID string) (bool, error) {
	if linkID == "" || IsMockLinkID(linkID) {
		return false, nil
	}
	now := c.Now()
	if c.Scope.coolingDown(now) {
		return false, nil
	}

	page := 1
	for fetched := 0; fetched < maxChargePages; fetched++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(chargesPerPage))
		query.Set("payment_link_id", linkID)

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/manage_api/v1/charges?"+query.Encode(), nil)
		if err != nil {
			return false, fmt.Errorf("build charges request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

		resp, err := c.HTTP.Do(httpReq)
		if err != nil {
			return false, fmt.Errorf("query charges: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			cooldown := c.retryAfter(resp)
			resp.Body.Close()
			c.Scope.setRateLimit(c.Now().Add(cooldown))
			c.Logger.Warn("GATEWAY", fmt.Sprintf("rate limited, backing off %s", cooldown))
			return false, nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			c.Scope.setAuthFailure(c.Now().Add(c.AuthCooldown))
			c.Logger.Error("GATEWAY", fmt.Sprintf("credentials rejected (%d), pausing status checks", resp.StatusCode))
			return false, nil
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			resp.Body.Close()
			return false, fmt.Errorf("charges lookup returned status %d", resp.StatusCode)
		}

		var decoded chargesResponse
		err = json.NewDecoder(resp.Body).Decode(&decoded)
		resp.Body.Close()
		if err != nil {
			return false, fmt.Errorf("decode charges response: %w", err)
		}

		for _, charge := range decoded.Data {
			if charge.Status == "captured" && charge.PaymentLinkID == linkID {
				return true, nil
			}
		}

		if decoded.PaginationMeta.NextPage == nil {
			break
		}
		page = *decoded.PaginationMeta.NextPage
	}

	return false, nil
}

func (c *Client) retryAfter(resp *http.Response) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if secs, err := strconv.Atoi(header); err == nil {
			cooldown := time.Duration(secs) * time.Second
			if cooldown < minRateLimitCooldown {
				cooldown = minRateLimitCooldown
			}
			return cooldown
		}
	}
	return c.RateLimitFallback
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
