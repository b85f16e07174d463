/* Copyright (c) 2025 The delivery-dash authors
 * SPDX-License-Identifier: BSD-3-Clause */
package azdevops

import (
    "bytes"
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

    "github.com/rs/zerolog"

    "github.com/vivinfor/data-sync-pipeline-automation/internal/config"
)

const (
    apiVersion   = "6.0"
    detailFields = "System.Title,System.State,System.CreatedDate,System.ChangedDate,System.AssignedTo"
    wiqlQuery    = "SELECT [System.Id] FROM workitems"

    defaultRetryAfter = 5 * time.Second
)

// ErrRetryExhausted is returned after all transport-level attempts fail.
var ErrRetryExhausted = errors.New("azdevops: retry attempts exhausted")

// HTTPError carries a non-2xx response that is not a recoverable rate limit.
type HTTPError struct {
    StatusCode int
    Body       string
}

func (e *HTTPError) Error() string {
    return fmt.Sprintf("azdevops api status=%d body=%s", e.StatusCode, e.Body)
}

// WorkItemRecord holds the raw per-item detail fields as returned by the API.
// Dates stay in the source's ISO-8601 form until the transform stage.
type WorkItemRecord struct {
    ID          int64
    Title       string
    State       string
    CreatedDate string
    ChangedDate string
    AssignedTo  string
}

type Client struct {
    baseURL  string
    org      string
    project  string
    pat      string
    http     *http.Client
    log      zerolog.Logger
    attempts int
    backoff  time.Duration
    rateWait time.Duration
    sleep    func(time.Duration)
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{
        baseURL:  strings.TrimRight(cfg.AzdoBaseURL, "/"),
        org:      cfg.AzdoOrg,
        project:  cfg.AzdoProject,
        pat:      cfg.AzdoPAT,
        http:     &http.Client{Timeout: cfg.HTTPTimeout},
        log:      log,
        attempts: cfg.RetryAttempts,
        backoff:  cfg.RetryBackoff,
        rateWait: cfg.RateLimitBudget,
        sleep:    time.Sleep,
    }
}

// ListWorkItemIDs runs one wiql query and returns the ids in server order.
func (c *Client) ListWorkItemIDs(ctx context.Context) ([]int64, error) {
    q := url.Values{}
    q.Set("api-version", apiVersion)
    u := c.apiURL("/_apis/wit/wiql", q)
    out, err := c.doJSON(ctx, http.MethodPost, u, map[string]any{"query": wiqlQuery})
    if err != nil { return nil, err }
    items, _ := out["workItems"].([]any)
    ids := make([]int64, 0, len(items))
    for _, it := range items {
        m, _ := it.(map[string]any)
        if m == nil { continue }
        if f, ok := m["id"].(float64); ok { ids = append(ids, int64(f)) }
    }
    return ids, nil
}

// GetWorkItem fetches the detail fields for a single work item.
func (c *Client) GetWorkItem(ctx context.Context, id int64) (WorkItemRecord, error) {
    q := url.Values{}
    q.Set("api-version", apiVersion)
    q.Set("fields", detailFields)
    u := c.apiURL("/_apis/wit/workitems/"+strconv.FormatInt(id, 10), q)
    out, err := c.doJSON(ctx, http.MethodGet, u, nil)
    if err != nil { return WorkItemRecord{}, err }
    rec := WorkItemRecord{ID: id}
    if f, ok := out["id"].(float64); ok { rec.ID = int64(f) }
    fields, _ := out["fields"].(map[string]any)
    rec.Title = toStr(fields["System.Title"])
    rec.State = toStr(fields["System.State"])
    rec.CreatedDate = toStr(fields["System.CreatedDate"])
    rec.ChangedDate = toStr(fields["System.ChangedDate"])
    if at, ok := fields["System.AssignedTo"].(map[string]any); ok { rec.AssignedTo = toStr(at["displayName"]) }
    return rec, nil
}

func (c *Client) apiURL(path string, q url.Values) string {
    u := c.baseURL + "/" + url.PathEscape(c.org) + "/" + url.PathEscape(c.project) + path
    if len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

// doJSON issues a request and re-issues it after a server-directed pause for
// as long as the server keeps rate limiting, up to a total wait budget. The
// loop is deliberately flat: no recursion, no unbounded stack growth.
func (c *Client) doJSON(ctx context.Context, method, u string, body any) (map[string]any, error) {
    var payload []byte
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil { return nil, err }
        payload = b
    }
    var waited time.Duration
    for {
        out, retryAfter, err := c.attempt(ctx, method, u, payload)
        if err != nil { return nil, err }
        if retryAfter == 0 { return out, nil }
        if waited+retryAfter > c.rateWait {
            c.log.Error().Dur("waited", waited).Str("url", u).Msg("rate limit wait budget exceeded")
            return nil, fmt.Errorf("azdevops: rate limit wait budget exceeded after %s", waited)
        }
        c.log.Warn().Dur("retry_after", retryAfter).Str("url", u).Msg("rate limited, backing off")
        c.sleep(retryAfter)
        waited += retryAfter
    }
}

// attempt performs one logical request under the bounded transport retry
// policy: fixed backoff, capped attempts, terminal ErrRetryExhausted. A 429
// response is not a failure; it is reported back as a delay for the caller.
func (c *Client) attempt(ctx context.Context, method, u string, payload []byte) (map[string]any, time.Duration, error) {
    var lastErr error
    for i := 0; i < c.attempts; i++ {
        if i > 0 { c.sleep(c.backoff) }
        var r io.Reader
        if payload != nil { r = bytes.NewReader(payload) }
        req, err := http.NewRequestWithContext(ctx, method, u, r)
        if err != nil { return nil, 0, err }
        if payload != nil { req.Header.Set("Content-Type", "application/json") }
        req.SetBasicAuth("", c.pat)
        resp, err := c.http.Do(req)
        if err != nil {
            lastErr = err
            c.log.Warn().Err(err).Int("attempt", i+1).Str("url", u).Msg("request failed")
            continue
        }
        b, err := io.ReadAll(resp.Body)
        resp.Body.Close()
        if err != nil { lastErr = err; continue }
        if resp.StatusCode == http.StatusTooManyRequests {
            return nil, retryAfterDelay(resp.Header.Get("Retry-After")), nil
        }
        if resp.StatusCode >= 300 {
            return nil, 0, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
        }
        var out map[string]any
        if err := json.Unmarshal(b, &out); err != nil { return nil, 0, err }
        return out, 0, nil
    }
    c.log.Error().Err(lastErr).Int("attempts", c.attempts).Str("url", u).Msg("all attempts failed")
    return nil, 0, fmt.Errorf("%w: %v", ErrRetryExhausted, lastErr)
}

func retryAfterDelay(header string) time.Duration {
    if header != "" {
        if n, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && n > 0 {
            return time.Duration(n) * time.Second
        }
    }
    return defaultRetryAfter
}

func toStr(v any) string { s, _ := v.(string); return s }
