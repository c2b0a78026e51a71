package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultRevenueCatEndpoint = "https://api.revenuecat.com"

type RevenueCat struct {
	apiKey        string
	entitlementID string
	endpoint      string
	timeout       time.Duration
	httpClient    *http.Client
	now           func() time.Time
}

var _ Entitlements = (*RevenueCat)(nil)

func NewRevenueCat(apiKey, entitlementID, endpoint string, timeout time.Duration) *RevenueCat {
	if endpoint == "" {
		endpoint = defaultRevenueCatEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RevenueCat{
		apiKey:        apiKey,
		entitlementID: entitlementID,
		endpoint:      strings.TrimRight(endpoint, "/"),
		timeout:       timeout,
		httpClient:    &http.Client{},
		now:           time.Now,
	}
}

type subscriberResponse struct {
	Subscriber struct {
		Entitlements map[string]struct {
			ExpiresDate       *string `json:"expires_date"`
			ProductIdentifier string  `json:"product_identifier"`
		} `json:"entitlements"`
	} `json:"subscriber"`
}

// IsPro looks up the subscriber. The whole call is bounded by the configured
// timeout so a provider that never answers does not hold up an extraction.
func (rc *RevenueCat) IsPro(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()

	u := rc.endpoint + "/v1/subscribers/" + url.PathEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+rc.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := rc.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("revenuecat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("revenuecat error (%d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var parsed subscriberResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false, fmt.Errorf("failed to decode revenuecat response: %w", err)
	}
	ent, ok := parsed.Subscriber.Entitlements[rc.entitlementID]
	if !ok {
		return false, nil
	}
	if ent.ExpiresDate == nil || *ent.ExpiresDate == "" {
		return true, nil // lifetime
	}
	expires, err := time.Parse(time.RFC3339, *ent.ExpiresDate)
	if err != nil {
		return false, fmt.Errorf("bad expires_date %q: %w", *ent.ExpiresDate, err)
	}
	return expires.After(rc.now()), nil
}
