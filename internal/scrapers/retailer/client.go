// Package retailer fetches order list and order detail pages from the retailer's website
// using the caller's existing session cookie. It cannot log in by itself.
package retailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"orderexport/internal/assert"
	"orderexport/internal/telemetry"
	"orderexport/lib/chrono"
	"orderexport/lib/restyutil"
	libtelemetry "orderexport/lib/telemetry"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

var (
	// ErrNotOrderPage is returned when the retailer answers with something other than
	// an order page, usually the sign in page of an expired session.
	ErrNotOrderPage     = errors.New("not on the orders page")
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Config struct {
	BaseUrl   string
	Cookie    string
	UserAgent string

	ListPath string
	// DetailPath contains an {id} placeholder.
	DetailPath string
	// ApiPaths are tried in order before DetailPath, each contains an {id} placeholder.
	ApiPaths []string

	StorePurchaseParam string

	RequestsPerSecond float64
	Timeout           time.Duration
	// PageSettleTimeout bounds how long NextPage waits for the next page to show orders.
	PageSettleTimeout  time.Duration
	PageSettleInterval time.Duration

	// Dump, when set, receives a copy of every request/response pair.
	Dump restyutil.InstrumentOutput
}

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	cfg   Config
	clock chrono.API
	tel   telemetry.API
}

func NewClient(cfg Config, clock chrono.API, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	assert.NotNil(clock)
	assert.NotEmptyStr(cfg.BaseUrl)

	tel = telemetry.NewScopedAPI("retailer_scraper", tel)

	parsedBaseUrl, err := url.Parse(cfg.BaseUrl)
	if err != nil {
		return nil, err
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.PageSettleInterval <= 0 {
		cfg.PageSettleInterval = 500 * time.Millisecond
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(cfg.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	httpClient.SetHeader("user-agent", cfg.UserAgent)
	httpClient.SetHeader("accept-language", "en-US,en;q=0.9")
	if cfg.Cookie != "" {
		httpClient.SetHeader("cookie", cfg.Cookie)
	}
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsedBaseUrl.Hostname()))
	httpClient.SetTimeout(cfg.Timeout)

	// max burst >= limit just means that no requests will be dropped
	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	rateLimiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	libtelemetry.InstrumentResty(httpClient, "orderexport/retailer")
	restyutil.InstrumentClient(httpClient, "retailer", cfg.Dump)

	return &Client{
		BaseUrl: parsedBaseUrl,
		Http:    httpClient,
		cfg:     cfg,
		clock:   clock,
		tel:     tel,
	}, nil
}

func (c *Client) detailPath(path, id string, isStore bool) string {
	endpoint := strings.ReplaceAll(path, "{id}", url.PathEscape(id))
	if isStore && c.cfg.StorePurchaseParam != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + c.cfg.StorePurchaseParam + "=true"
	}
	return endpoint
}

// get performs a GET and fails on any non 2xx status.
func (c *Client) get(ctx context.Context, endpoint string, accept string) (*resty.Response, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("accept", accept).
		Get(endpoint)
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return res, fmt.Errorf("%w: %s", ErrUnexpectedStatus, res.Status())
	}
	return res, nil
}

func (c *Client) resolve(endpoint string) *url.URL {
	ref, err := url.Parse(endpoint)
	if err != nil {
		return c.BaseUrl
	}
	return c.BaseUrl.ResolveReference(ref)
}

func finalUrl(res *resty.Response, fallback *url.URL) *url.URL {
	if res.RawResponse != nil && res.RawResponse.Request != nil && res.RawResponse.Request.URL != nil {
		return res.RawResponse.Request.URL
	}
	return fallback
}

// isSignInPage reports whether a response is the retailer's sign in flow rather than
// the page that was asked for.
func isSignInPage(pageUrl *url.URL, doc *goquery.Document) bool {
	if pageUrl != nil {
		path := strings.ToLower(pageUrl.Path)
		if strings.Contains(path, "/account/login") || strings.Contains(path, "/signin") {
			return true
		}
	}
	return doc.Find(`input[type="password"]`).Length() > 0
}

// getDocument fetches an HTML page and returns it with the URL it was finally served from.
func (c *Client) getDocument(ctx context.Context, endpoint string) (*goquery.Document, *url.URL, error) {
	res, err := c.get(ctx, endpoint, "text/html,application/xhtml+xml")
	if err != nil {
		return nil, nil, fmt.Errorf("fetch: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, nil, fmt.Errorf("parse: %w", err)
	}
	pageUrl := finalUrl(res, c.resolve(endpoint))
	if isSignInPage(pageUrl, doc) {
		return nil, pageUrl, ErrNotOrderPage
	}
	return doc, pageUrl, nil
}
