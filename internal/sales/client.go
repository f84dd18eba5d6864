// Package sales talks to the payment platform: OAuth client-credentials
// auth, sales history polling and webhook payload mapping.
package sales

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/convtrack/convtrack/internal/model"
)

const (
	// ClientTimeout is the total request timeout.
	ClientTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 15 * time.Second

	// tokenSafetyMargin is subtracted from the reported token lifetime so a
	// token is refreshed before it can expire mid-request.
	tokenSafetyMargin = 60 * time.Second
)

// NewHTTPClient creates an HTTP client configured for platform API calls.
// It has appropriate timeouts and does not follow redirects.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			DisableCompression:    false,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Client is the payment platform API client with a cached bearer token.
type Client struct {
	authURL      string
	apiURL       string
	clientID     string
	clientSecret string

	httpClient *http.Client
	logger     *slog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a payment platform client.
func NewClient(authURL, apiURL, clientID, clientSecret string, logger *slog.Logger) *Client {
	return &Client{
		authURL:      authURL,
		apiURL:       apiURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   NewHTTPClient(),
		logger:       logger.With("component", "sales_client"),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token returns a valid bearer token, fetching a new one when the cached
// token is absent or expiring. The lock is held across the fetch so
// concurrent callers wait for one refresh instead of issuing their own.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+"?"+form.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: build token request: %v", ErrAuth, err)
	}

	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrAuth, resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", ErrAuth, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrAuth)
	}

	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSafetyMargin)

	c.logger.Debug("access token refreshed", "expires_in", tok.ExpiresIn)
	return c.token, nil
}

// salesHistoryResponse is the platform's sales history envelope.
type salesHistoryResponse struct {
	Items []struct {
		Purchase struct {
			Transaction string `json:"transaction"`
			OrderDate   int64  `json:"order_date"` // Unix milliseconds
			Status      string `json:"status"`
			Price       struct {
				Value        float64 `json:"value"`
				CurrencyCode string  `json:"currency_code"`
			} `json:"price"`
		} `json:"purchase"`
		Buyer struct {
			Email   string `json:"email"`
			Address struct {
				City    string `json:"city"`
				State   string `json:"state"`
				Country string `json:"country"`
				ZipCode string `json:"zip_code"`
			} `json:"address"`
		} `json:"buyer"`
		Product struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"product"`
	} `json:"items"`
}

// FetchRecentSales queries the sales history for transactions with the
// given status inside the window ending now.
func (c *Client) FetchRecentSales(ctx context.Context, window time.Duration, status model.SaleStatus, maxResults int) ([]*model.SaleRecord, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	q := url.Values{}
	q.Set("start_date", strconv.FormatInt(now.Add(-window).UnixMilli(), 10))
	q.Set("end_date", strconv.FormatInt(now.UnixMilli(), 10))
	q.Set("max_results", strconv.Itoa(maxResults))
	q.Set("transaction_status", string(status))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/sales/history?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFetch, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrFetch, resp.StatusCode, string(body))
	}

	var history salesHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrFetch, err)
	}

	records := make([]*model.SaleRecord, 0, len(history.Items))
	for _, item := range history.Items {
		if item.Purchase.Transaction == "" {
			continue
		}
		records = append(records, &model.SaleRecord{
			TransactionID:   item.Purchase.Transaction,
			PurchasedAt:     time.UnixMilli(item.Purchase.OrderDate).UTC(),
			Status:          model.SaleStatus(item.Purchase.Status),
			BuyerEmail:      item.Buyer.Email,
			BuyerCountry:    item.Buyer.Address.Country,
			BuyerState:      item.Buyer.Address.State,
			BuyerCity:       item.Buyer.Address.City,
			BuyerPostalCode: item.Buyer.Address.ZipCode,
			AmountCents:     toCents(item.Purchase.Price.Value),
			Currency:        item.Purchase.Price.CurrencyCode,
			ProductID:       strconv.FormatInt(item.Product.ID, 10),
			ProductName:     item.Product.Name,
		})
	}

	c.logger.Debug("sales history fetched", "count", len(records), "window", window)
	return records, nil
}
