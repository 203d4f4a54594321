package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/codyseavey/tcg-portfolio/internal/config"
	"github.com/codyseavey/tcg-portfolio/internal/metrics"
	"github.com/codyseavey/tcg-portfolio/internal/models"
	"github.com/codyseavey/tcg-portfolio/internal/pricing"
)

// PriceTrackerClient talks to the upstream price feed
type PriceTrackerClient struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	historyDays int
	limiter     *rate.Limiter
}

func NewPriceTrackerClient(cfg config.PriceFeedConfig) *PriceTrackerClient {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = 2 * time.Second
	client.RetryWaitMax = 30 * time.Second
	client.HTTPClient.Timeout = cfg.Timeout

	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	historyDays := cfg.HistoryDays
	if historyDays <= 0 {
		historyDays = int(pricing.Window365D)
	}

	return &PriceTrackerClient{
		client:      client.StandardClient(),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		historyDays: historyDays,
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

// Configured reports whether an API key is present
func (c *PriceTrackerClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

// FeedQuery selects cards from the feed. SetID fetches a whole set.
type FeedQuery struct {
	Search      string
	SetID       string
	TCGPlayerID string
	Limit       int
	Offset      int
	// WithHistory asks for raw and graded price history
	WithHistory bool
}

func (q FeedQuery) values(historyDays int) url.Values {
	v := url.Values{}
	v.Set("language", "english")
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.SetID != "" {
		v.Set("setId", q.SetID)
		v.Set("fetchAllInSet", "true")
	}
	if q.TCGPlayerID != "" {
		v.Set("tcgPlayerId", q.TCGPlayerID)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	// offset switches the feed into 50-per-page mode, so only send it when paging
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.WithHistory {
		v.Set("includeHistory", "true")
		v.Set("includeEbay", "true")
		v.Set("includeBoth", "true")
		v.Set("days", strconv.Itoa(historyDays))
	}
	return v
}

// FeedPage is one page of feed results
type FeedPage struct {
	Cards    []FeedCard   `json:"data"`
	Metadata FeedMetadata `json:"metadata"`
}

type FeedMetadata struct {
	Total   int  `json:"total"`
	Count   int  `json:"count"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// FeedCard is a single product as returned by the feed
type FeedCard struct {
	ID           string                          `json:"id"`
	TCGPlayerID  FlexibleID                      `json:"tcgPlayerId"`
	Name         string                          `json:"name"`
	SetName      string                          `json:"setName"`
	SetID        FlexibleID                      `json:"setId"`
	CardNumber   string                          `json:"cardNumber"`
	Rarity       string                          `json:"rarity"`
	ImageURL     string                          `json:"imageUrl"`
	ImageCdnURL  string                          `json:"imageCdnUrl"`
	Prices       json.RawMessage                 `json:"prices"`
	PriceHistory FeedPriceHistory                `json:"priceHistory"`
	Ebay         *FeedEbay                       `json:"ebay"`
}

type FeedEbay struct {
	SalesByGrade map[string]json.RawMessage `json:"salesByGrade"`
	PriceHistory json.RawMessage            `json:"priceHistory"`
}

// FlexibleID accepts ids the feed sends either as strings or as numbers
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flexible id: %w", err)
	}
	*f = FlexibleID(n.String())
	return nil
}

// FeedPriceHistory is the feed's raw price history, sent as
// {"variants": {V: {C: {"history": [...]}}}}. Members of the wrong shape and
// undated entries are dropped so one bad series never fails a whole page.
type FeedPriceHistory pricing.VariantConditionHistory

func (h *FeedPriceHistory) UnmarshalJSON(data []byte) error {
	*h = nil
	var root struct {
		Variants map[string]json.RawMessage `json:"variants"`
	}
	if json.Unmarshal(data, &root) != nil {
		return nil
	}

	out := make(pricing.VariantConditionHistory)
	for variant, rawConditions := range root.Variants {
		var conditions map[string]json.RawMessage
		if json.Unmarshal(rawConditions, &conditions) != nil {
			continue
		}
		for condition, rawSeries := range conditions {
			var series struct {
				History []json.RawMessage `json:"history"`
			}
			if json.Unmarshal(rawSeries, &series) != nil {
				continue
			}
			var entries []pricing.HistoryEntry
			for _, rawEntry := range series.History {
				var e pricing.HistoryEntry
				if json.Unmarshal(rawEntry, &e) != nil || e.Date == "" {
					continue
				}
				entries = append(entries, e)
			}
			if len(entries) == 0 {
				continue
			}
			if out[variant] == nil {
				out[variant] = make(map[string][]pricing.HistoryEntry)
			}
			out[variant][condition] = entries
		}
	}
	if len(out) > 0 {
		*h = FeedPriceHistory(out)
	}
	return nil
}

type feedPrices struct {
	Market     *float64 `json:"market"`
	Conditions map[string]struct {
		Market *float64 `json:"market"`
	} `json:"conditions"`
}

// FetchCards fetches a single page
func (c *PriceTrackerClient) FetchCards(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/cards?%s", c.baseURL, q.values(c.historyDays).Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, br")

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.PriceFeedLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PriceFeedRequestsTotal.WithLabelValues("network").Inc()
		return nil, fmt.Errorf("failed to query price feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.PriceFeedRequestsTotal.WithLabelValues("http_error").Inc()
		return nil, fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}

	body, err := decodedBody(resp)
	if err != nil {
		metrics.PriceFeedRequestsTotal.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("failed to decompress response: %w", err)
	}
	defer body.Close()

	var page FeedPage
	if err := json.NewDecoder(body).Decode(&page); err != nil {
		metrics.PriceFeedRequestsTotal.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	metrics.PriceFeedRequestsTotal.WithLabelValues("ok").Inc()
	return &page, nil
}

// FetchSet pages through every card of a set
func (c *PriceTrackerClient) FetchSet(ctx context.Context, setID string) ([]FeedCard, error) {
	var all []FeedCard
	q := FeedQuery{SetID: setID, WithHistory: true}
	for {
		page, err := c.FetchCards(ctx, q)
		if err != nil {
			return all, err
		}
		all = append(all, page.Cards...)
		if !page.Metadata.HasMore || len(page.Cards) == 0 {
			return all, nil
		}
		count := page.Metadata.Count
		if count == 0 {
			count = len(page.Cards)
		}
		q.Offset += count
		log.Printf("Price feed: fetching more cards for set %s (offset=%d)", setID, q.Offset)
	}
}

// SearchCards runs a name search against the feed and returns catalog cards
func (c *PriceTrackerClient) SearchCards(ctx context.Context, query string) (*models.CardSearchResult, error) {
	page, err := c.FetchCards(ctx, FeedQuery{Search: query, Limit: 20})
	if err != nil {
		return nil, err
	}
	cards := make([]models.Card, 0, len(page.Cards))
	for _, fc := range page.Cards {
		if pricing.ClassifyPattern(fc.Name) != pricing.BasePattern {
			continue
		}
		cards = append(cards, fc.ToCard())
	}
	return &models.CardSearchResult{
		Cards:      cards,
		TotalCount: page.Metadata.Total,
		HasMore:    page.Metadata.HasMore,
	}, nil
}

func decodedBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	default:
		return io.NopCloser(resp.Body), nil
	}
}

// ToCard converts a feed product into a catalog card keyed by its TCGPlayer id
func (fc FeedCard) ToCard() models.Card {
	imageURL := fc.ImageURL
	if fc.ImageCdnURL != "" {
		imageURL = fc.ImageCdnURL
	}
	id := string(fc.TCGPlayerID)
	if id == "" {
		id = fc.ID
	}
	return models.Card{
		ID:          id,
		Name:        fc.Name,
		SetID:       string(fc.SetID),
		SetName:     fc.SetName,
		CardNumber:  fc.CardNumber,
		Rarity:      fc.Rarity,
		ImageURL:    imageURL,
		TCGPlayerID: string(fc.TCGPlayerID),
	}
}

// marketPriceCondition picks the headline market price and the condition it
// belongs to, preferring Near Mint among conditions that carry a market price.
func marketPriceCondition(raw json.RawMessage) (*float64, string) {
	var prices feedPrices
	if len(raw) == 0 || json.Unmarshal(raw, &prices) != nil {
		return nil, string(pricing.PriceConditionNearMint)
	}

	var names []string
	for name, cond := range prices.Conditions {
		if cond.Market != nil && *cond.Market > 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return prices.Market, string(pricing.PriceConditionNearMint)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == string(pricing.PriceConditionNearMint) {
			return prices.Market, name
		}
	}
	return prices.Market, names[0]
}

// TransformCard converts a feed product into the stored price record for
// cardID. History is sliced into the fixed windows relative to now and the
// window percent changes come from the primary variant/condition series.
func TransformCard(fc FeedCard, cardID string, now time.Time) models.CardPriceRecord {
	pattern := pricing.ClassifyPattern(fc.Name)
	rec := models.CardPriceRecord{
		CardID:             cardID,
		VariantPattern:     models.NormalizePattern(&pattern),
		TCGPlayerProductID: string(fc.TCGPlayerID),
		PriceUpdatedAt:     &now,
	}

	rec.CurrentMarketPrice, rec.CurrentMarketPriceCondition = marketPriceCondition(fc.Prices)
	rec.PricesRaw = models.EncodeJSON(fc.Prices)

	if fc.Ebay != nil {
		for _, g := range []pricing.Grade{pricing.GradePSA10, pricing.GradePSA9, pricing.GradePSA8} {
			rec.SetGrade(g, fc.Ebay.SalesByGrade[string(g)])
		}
		rec.EbayPriceHistory = models.EncodeJSON(fc.Ebay.PriceHistory)
	}

	var full pricing.VariantConditionHistory
	for _, w := range pricing.AllWindows() {
		sliced := pricing.SliceHistory(pricing.VariantConditionHistory(fc.PriceHistory), int(w), now)
		rec.SetHistory(w, sliced)
		if w == pricing.Window365D {
			full = sliced
		}
	}

	variants, conditions := pricing.TrackedKeys(full)
	rec.RawHistoryVariantsTracked = models.EncodeJSON(variants)
	rec.RawHistoryConditionsTracked = models.EncodeJSON(conditions)

	_, _, primary := pricing.PrimarySeries(full)
	rec.SetChanges(pricing.WindowChanges(primary))
	return rec
}

// RawPriceRecords flattens stored price records into the catalog's
// per-variant price array, one element per variant and pattern.
func RawPriceRecords(records []models.CardPriceRecord) []pricing.RawPriceRecord {
	var out []pricing.RawPriceRecord
	for i := range records {
		rec := records[i].ToPricing()
		if rec.PricesRaw == nil {
			continue
		}
		pattern := records[i].VariantPattern
		if pattern == "" {
			pattern = pricing.BasePattern
		}
		names := make([]string, 0, len(rec.PricesRaw.Variants))
		for name := range rec.PricesRaw.Variants {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			price, ok := rec.QuotedPrice(pricing.PriceVariant(name), pricing.PriceConditionNearMint)
			if !ok {
				continue
			}
			out = append(out, pricing.RawPriceRecord{
				SubTypeName:    name,
				MarketPrice:    price,
				VariantPattern: pattern,
			})
		}
	}
	return out
}
