// Package paperless reads tagged documents from a Paperless-ngx instance.
package paperless

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/poolcosts/backend/src/logger"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

var ErrTagNotFound = errors.New("paperless tag not found")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("paperless request %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// RPS caps outgoing requests per second. Zero disables throttling.
	RPS float64
}

// Document is a Paperless document with correspondent and document type resolved to names.
type Document struct {
	ID            int64
	Title         string
	Content       string
	Created       *time.Time
	Correspondent string
	DocumentType  string
}

// ListOptions controls ListDocuments.
type ListOptions struct {
	PageSize int
	// CreatedAfter limits the listing to documents created after this date.
	CreatedAfter *time.Time
}

// Client talks to the Paperless REST API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	limiter *rate.Limiter
	names   *cache.Cache
}

// NewClient builds a client. The token is sent as "Authorization: Token <token>".
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid paperless base url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var transport http.RoundTripper = http.DefaultTransport
	if cfg.Token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Token"}),
			Base:   http.DefaultTransport,
		}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout, Transport: transport},
		limiter: limiter,
		names:   cache.New(30*time.Minute, time.Hour),
	}, nil
}

type tagList struct {
	Results []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"results"`
}

type documentPage struct {
	Count   int           `json:"count"`
	Next    *string       `json:"next"`
	Results []documentRaw `json:"results"`
}

type documentRaw struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	Created       string `json:"created"`
	Correspondent *int64 `json:"correspondent"`
	DocumentType  *int64 `json:"document_type"`
}

type namedObject struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// FindTagID returns the id of the tag whose name matches case-insensitively.
func (c *Client) FindTagID(ctx context.Context, name string) (int64, error) {
	q := url.Values{}
	q.Set("name__iexact", name)
	var tags tagList
	if err := c.getJSON(ctx, c.endpoint("/api/tags/", q), &tags); err != nil {
		return 0, err
	}
	if len(tags.Results) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrTagNotFound, name)
	}
	return tags.Results[0].ID, nil
}

// ListDocuments returns every document carrying the tag, following pagination.
func (c *Client) ListDocuments(ctx context.Context, tagID int64, opts ListOptions) ([]Document, error) {
	q := url.Values{}
	q.Set("tags__id__all", strconv.FormatInt(tagID, 10))
	if opts.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(opts.PageSize))
	}
	if opts.CreatedAfter != nil {
		q.Set("created__date__gt", opts.CreatedAfter.Format("2006-01-02"))
	}

	docs := []Document{}
	next := c.endpoint("/api/documents/", q)
	for next != "" {
		var page documentPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, raw := range page.Results {
			doc, err := c.resolve(ctx, raw)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}

		next = ""
		if page.Next != nil && *page.Next != "" {
			u, err := c.baseURL.Parse(*page.Next)
			if err != nil {
				return nil, fmt.Errorf("invalid next page link %q: %w", *page.Next, err)
			}
			next = u.String()
		}
	}
	logger.FromContext(ctx).Debug("Listed paperless documents", "tagID", tagID, "count", len(docs))
	return docs, nil
}

func (c *Client) resolve(ctx context.Context, raw documentRaw) (Document, error) {
	doc := Document{
		ID:      raw.ID,
		Title:   raw.Title,
		Content: raw.Content,
		Created: parseCreated(raw.Created),
	}
	var err error
	if raw.Correspondent != nil {
		if doc.Correspondent, err = c.lookupName(ctx, "correspondents", *raw.Correspondent); err != nil {
			return Document{}, err
		}
	}
	if raw.DocumentType != nil {
		if doc.DocumentType, err = c.lookupName(ctx, "document_types", *raw.DocumentType); err != nil {
			return Document{}, err
		}
	}
	return doc, nil
}

// lookupName resolves a correspondent or document type id. Deleted objects resolve to "".
func (c *Client) lookupName(ctx context.Context, kind string, id int64) (string, error) {
	key := kind + ":" + strconv.FormatInt(id, 10)
	if name, found := c.names.Get(key); found {
		return name.(string), nil
	}

	var obj namedObject
	err := c.getJSON(ctx, c.endpoint(fmt.Sprintf("/api/%s/%d/", kind, id), nil), &obj)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		logger.FromContext(ctx).Warn("Paperless object referenced by document no longer exists", "kind", kind, "id", id)
		c.names.Set(key, "", cache.DefaultExpiration)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	c.names.Set(key, obj.Name, cache.DefaultExpiration)
	return obj.Name, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paperless request %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, URL: rawURL, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode paperless response from %s: %w", rawURL, err)
	}
	logger.FromContext(ctx).Debug("Paperless request", "url", rawURL, "status", resp.StatusCode,
		"elapsedMs", time.Since(start).Milliseconds())
	return nil
}

// parseCreated keeps the wall-clock date Paperless reports, so a document created on
// 2025-05-20 in +02:00 stays on 2025-05-20 once stored in UTC.
func parseCreated(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
			return &wall
		}
	}
	return nil
}
