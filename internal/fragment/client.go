// Package fragment implements the marketplace client: listing snapshots
// scraped from the sale pages and payment instructions from the
// getBidLink API endpoint.
package fragment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vkoval/fragsnipe/internal/common"
	"github.com/vkoval/fragsnipe/internal/model"
)

// DefaultBaseURL is the production marketplace endpoint.
const DefaultBaseURL = "https://fragment.com"

const (
	userAgent     = "Mozilla/5.0"
	snapshotTTL   = 5 * time.Second
	clientTimeout = 20 * time.Second
)

var apiHashRe = regexp.MustCompile(`api\?hash=([a-f0-9]{16,})`)

// Client talks to the marketplace for one listing category. It fetches
// the sale page, parses it into listings, and requests bid links. The
// sale snapshot is cached briefly so rapid polling does not hammer the
// site.
type Client struct {
	http    *http.Client
	baseURL string
	cookies map[string]string
	kind    model.ListingKind

	salePath string
	itemPath string // fmt pattern, e.g. "/number/%s"
	bidType  int    // marketplace asset type code for getBidLink

	mu          sync.Mutex
	cachedHTML  string
	cachedAt    time.Time
	apiHashByID map[string]string
}

// NewNumbersClient creates a client for the phone-number sale listings.
func NewNumbersClient(baseURL string, cookies map[string]string) *Client {
	return newClient(baseURL, cookies, model.KindNumbers, "/numbers?filter=sale", "/number/%s", 3)
}

// NewUsernamesClient creates a client for the username sale listings.
func NewUsernamesClient(baseURL string, cookies map[string]string) *Client {
	return newClient(baseURL, cookies, model.KindUsernames, "/?sort=price_asc&filter=sale", "/username/%s", 1)
}

func newClient(baseURL string, cookies map[string]string, kind model.ListingKind, salePath, itemPath string, bidType int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:        &http.Client{Timeout: clientTimeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		cookies:     cookies,
		kind:        kind,
		salePath:    salePath,
		itemPath:    itemPath,
		bidType:     bidType,
		apiHashByID: make(map[string]string),
	}
}

// Kind reports which listing category this client watches.
func (c *Client) Kind() model.ListingKind {
	return c.kind
}

// Fetch returns the current sale snapshot, parsed into listings.
func (c *Client) Fetch(ctx context.Context) ([]model.Listing, error) {
	html, err := c.saleHTML(ctx)
	if err != nil {
		return nil, err
	}
	return parseListings(c.kind, html)
}

// saleHTML fetches the sale page, reusing a snapshot younger than the TTL.
func (c *Client) saleHTML(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.cachedHTML != "" && time.Since(c.cachedAt) < snapshotTTL {
		html := c.cachedHTML
		c.mu.Unlock()
		return html, nil
	}
	c.mu.Unlock()

	body, err := c.get(ctx, c.salePath)
	if err != nil {
		return "", fmt.Errorf("failed to fetch sale page: %w", err)
	}

	c.mu.Lock()
	c.cachedHTML = body
	c.cachedAt = time.Now()
	c.mu.Unlock()

	return body, nil
}

// ItemAPIHash extracts the per-item API hash from the item page. Hashes
// are cached; the marketplace keeps them stable per session.
func (c *Client) ItemAPIHash(ctx context.Context, itemID string) (string, error) {
	c.mu.Lock()
	if h, ok := c.apiHashByID[itemID]; ok {
		c.mu.Unlock()
		return h, nil
	}
	c.mu.Unlock()

	body, err := c.get(ctx, fmt.Sprintf(c.itemPath, itemID))
	if err != nil {
		return "", fmt.Errorf("failed to fetch item page: %w", err)
	}

	m := apiHashRe.FindStringSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("no api hash on item page for %s", itemID)
	}

	c.mu.Lock()
	c.apiHashByID[itemID] = m[1]
	c.mu.Unlock()

	return m[1], nil
}

// bidLinkResponse mirrors the getBidLink JSON shape.
type bidLinkResponse struct {
	Transaction struct {
		Messages []struct {
			Address string          `json:"address"`
			Amount  json.RawMessage `json:"amount"`
			Payload string          `json:"payload"`
		} `json:"messages"`
	} `json:"transaction"`
	Error string `json:"error"`
}

// GetBidLink posts the bid to the marketplace API and returns the
// payment instruction. A response without a message, address, or
// positive amount is reported as ErrIncompleteQuote.
func (c *Client) GetBidLink(ctx context.Context, itemID string, bidTON int64, identity model.WalletIdentity) (model.BidLink, error) {
	apiHash, err := c.ItemAPIHash(ctx, itemID)
	if err != nil {
		return model.BidLink{}, err
	}

	account, err := json.Marshal(identity)
	if err != nil {
		return model.BidLink{}, fmt.Errorf("failed to encode account payload: %w", err)
	}
	device, err := json.Marshal(defaultDevicePayload())
	if err != nil {
		return model.BidLink{}, fmt.Errorf("failed to encode device payload: %w", err)
	}

	form := url.Values{
		"method":      {"getBidLink"},
		"transaction": {"1"},
		"type":        {strconv.Itoa(c.bidType)},
		"username":    {itemID},
		"bid":         {strconv.FormatInt(bidTON, 10)},
		"account":     {string(account)},
		"device":      {string(device)},
	}

	body, err := c.postForm(ctx, "/api?hash="+apiHash, form)
	if err != nil {
		return model.BidLink{}, fmt.Errorf("getBidLink request failed: %w", err)
	}

	var resp bidLinkResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return model.BidLink{}, fmt.Errorf("failed to decode getBidLink response: %w", err)
	}
	if len(resp.Transaction.Messages) == 0 {
		return model.BidLink{}, fmt.Errorf("%w: no messages in response", common.ErrIncompleteQuote)
	}

	msg := resp.Transaction.Messages[0]
	amount := parseAmount(msg.Amount)
	if msg.Address == "" || amount <= 0 {
		return model.BidLink{}, fmt.Errorf("%w: missing address or amount", common.ErrIncompleteQuote)
	}

	slog.Debug("Bid link received", "item_id", itemID, "to", msg.Address, "amount_nano", amount)

	return model.BidLink{Address: msg.Address, AmountNano: amount, PayloadB64: msg.Payload}, nil
}

// parseAmount tolerates both numeric and string-encoded amounts.
func parseAmount(raw json.RawMessage) int64 {
	s := strings.Trim(string(raw), `"`)
	if s == "" || s == "null" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (c *Client) get(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	return c.do(req)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (string, error) {
	req.Header.Set("User-Agent", userAgent)
	for k, v := range c.cookies {
		req.AddCookie(&http.Cookie{Name: k, Value: v})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", common.ErrRateLimit
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("marketplace returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ParseCookies turns a raw "k1=v1; k2=v2" cookie header into a map.
func ParseCookies(raw string) map[string]string {
	cookies := make(map[string]string)
	for _, pair := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		cookies[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return cookies
}

// defaultDevicePayload is the device descriptor the marketplace expects
// alongside a bid, matching a stock Tonkeeper client.
func defaultDevicePayload() map[string]any {
	return map[string]any{
		"platform":           "windows",
		"appName":            "tonkeeper",
		"appVersion":         "4.2.4",
		"maxProtocolVersion": 2,
		"features": []any{
			"SendTransaction",
			map[string]any{
				"name":                   "SendTransaction",
				"maxMessages":            255,
				"extraCurrencySupported": true,
			},
			map[string]any{"name": "SignData", "types": []string{"text", "binary", "cell"}},
		},
	}
}
