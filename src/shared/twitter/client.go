package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.twitter.com/2"
	defaultTimeout = 30 * time.Second

	// maxPageSize is the API ceiling for list member pages.
	maxPageSize = 100
)

// Member is one entry of the remote list.
type Member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// ListInfo is the list metadata, used mainly as a cheap rate-limit probe.
type ListInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
}

// AddResult reports whether the add was a no-op because the user was already a member.
type AddResult struct {
	AlreadyMember bool
}

// RemoveResult reports whether the remove was a no-op because the user was already absent.
type RemoveResult struct {
	AlreadyAbsent bool
}

// RateStatus is advisory quota telemetry captured from the x-rate-limit-* headers
// of every response. It is returned to the caller rather than held as shared state.
type RateStatus struct {
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	Observed  time.Time `json:"observed"`
	Limited   bool      `json:"limited"`
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	ListID      string
	BearerToken string
	HTTPClient  *http.Client
}

// Client talks to the Twitter API v2 for a single list.
type Client struct {
	baseURL    string
	listID     string
	bearer     string
	httpClient *http.Client
}

// NewClient creates a list API client.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		listID:     cfg.ListID,
		bearer:     cfg.BearerToken,
		httpClient: httpClient,
	}
}

// NormalizeHandle strips a leading @ and lowercases the handle.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}

// LookupUserID resolves a handle to its user id.
func (c *Client) LookupUserID(ctx context.Context, handle string) (string, RateStatus, error) {
	handle = NormalizeHandle(handle)

	status, body, rs, err := c.do(ctx, http.MethodGet, "/users/by/username/"+handle, nil)
	if err != nil {
		return "", rs, err
	}

	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", rs, &NotFoundError{Handle: handle}
	case http.StatusTooManyRequests:
		log.Printf("twitter: rate limit exceeded: lookup @%s (remaining %d, reset %s)", handle, rs.Remaining, rs.ResetAt)
		return "", rs, &RateLimitError{ResetAt: rs.ResetAt, Remaining: rs.Remaining}
	default:
		return "", rs, statusError(status, body)
	}

	var resp struct {
		Data *struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", rs, fmt.Errorf("parse user response: %w", err)
	}
	if resp.Data == nil || resp.Data.ID == "" {
		return "", rs, &NotFoundError{Handle: handle}
	}

	log.Printf("twitter: resolved @%s to user id %s", handle, resp.Data.ID)
	return resp.Data.ID, rs, nil
}

// AddMember adds a user to the list. A 403 "already a member" response counts as success.
func (c *Client) AddMember(ctx context.Context, userID string) (AddResult, RateStatus, error) {
	payload := map[string]string{"user_id": userID}

	status, body, rs, err := c.do(ctx, http.MethodPost, "/lists/"+c.listID+"/members", payload)
	if err != nil {
		return AddResult{}, rs, err
	}

	switch status {
	case http.StatusOK:
		log.Printf("twitter: added user %s to list %s", userID, c.listID)
		return AddResult{}, rs, nil
	case http.StatusTooManyRequests:
		log.Printf("twitter: rate limit exceeded: add user %s (remaining %d, reset %s)", userID, rs.Remaining, rs.ResetAt)
		return AddResult{}, rs, &RateLimitError{ResetAt: rs.ResetAt, Remaining: rs.Remaining}
	case http.StatusForbidden:
		if alreadyMember(body) {
			log.Printf("twitter: user %s already on list %s", userID, c.listID)
			return AddResult{AlreadyMember: true}, rs, nil
		}
		return AddResult{}, rs, statusError(status, body)
	default:
		return AddResult{}, rs, statusError(status, body)
	}
}

// RemoveMember removes a user from the list. A 404 counts as success (already absent).
func (c *Client) RemoveMember(ctx context.Context, userID string) (RemoveResult, RateStatus, error) {
	status, body, rs, err := c.do(ctx, http.MethodDelete, "/lists/"+c.listID+"/members/"+userID, nil)
	if err != nil {
		return RemoveResult{}, rs, err
	}

	switch status {
	case http.StatusOK:
		log.Printf("twitter: removed user %s from list %s", userID, c.listID)
		return RemoveResult{}, rs, nil
	case http.StatusNotFound:
		log.Printf("twitter: user %s not on list %s, treating remove as success", userID, c.listID)
		return RemoveResult{AlreadyAbsent: true}, rs, nil
	case http.StatusTooManyRequests:
		log.Printf("twitter: rate limit exceeded: remove user %s (remaining %d, reset %s)", userID, rs.Remaining, rs.ResetAt)
		return RemoveResult{}, rs, &RateLimitError{ResetAt: rs.ResetAt, Remaining: rs.Remaining}
	default:
		return RemoveResult{}, rs, statusError(status, body)
	}
}

// ListMembers fetches every member of the list, following pagination until the API
// stops returning a next token. Any page failure aborts the whole fetch; nothing
// partial is returned.
func (c *Client) ListMembers(ctx context.Context) ([]Member, RateStatus, error) {
	var (
		members   []Member
		pageToken string
		lastRS    RateStatus
	)

	for page := 1; ; page++ {
		path := fmt.Sprintf("/lists/%s/members?max_results=%d&user.fields=id,username,name", c.listID, maxPageSize)
		if pageToken != "" {
			path += "&pagination_token=" + pageToken
		}

		status, body, rs, err := c.do(ctx, http.MethodGet, path, nil)
		lastRS = rs
		if err != nil {
			return nil, lastRS, err
		}

		switch status {
		case http.StatusOK:
		case http.StatusTooManyRequests:
			log.Printf("twitter: rate limit exceeded: list members page %d, %d fetched so far (remaining %d, reset %s)",
				page, len(members), rs.Remaining, rs.ResetAt)
			return nil, lastRS, &RateLimitError{ResetAt: rs.ResetAt, Remaining: rs.Remaining}
		default:
			return nil, lastRS, statusError(status, body)
		}

		var resp struct {
			Data []Member `json:"data"`
			Meta struct {
				NextToken string `json:"next_token"`
			} `json:"meta"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, lastRS, fmt.Errorf("parse members page: %w", err)
		}

		members = append(members, resp.Data...)
		log.Printf("twitter: fetched %d members (total %d)", len(resp.Data), len(members))

		pageToken = resp.Meta.NextToken
		if pageToken == "" {
			break
		}
	}

	log.Printf("twitter: fetched %d total members from list %s", len(members), c.listID)
	return members, lastRS, nil
}

// ListInfo fetches the list metadata.
func (c *Client) ListInfo(ctx context.Context) (ListInfo, RateStatus, error) {
	status, body, rs, err := c.do(ctx, http.MethodGet, "/lists/"+c.listID, nil)
	if err != nil {
		return ListInfo{}, rs, err
	}

	switch status {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return ListInfo{}, rs, &RateLimitError{ResetAt: rs.ResetAt, Remaining: rs.Remaining}
	default:
		return ListInfo{}, rs, statusError(status, body)
	}

	var resp struct {
		Data ListInfo `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return ListInfo{}, rs, fmt.Errorf("parse list info: %w", err)
	}
	return resp.Data, rs, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (int, []byte, RateStatus, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, RateStatus{}, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, RateStatus{}, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, RateStatus{}, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, RateStatus{}, &TransientError{Err: err}
	}

	rs := rateStatusFromHeaders(resp)

	if resp.StatusCode >= http.StatusInternalServerError {
		log.Printf("twitter: API error: %d - %s", resp.StatusCode, string(body))
		return resp.StatusCode, body, rs, &TransientError{Status: resp.StatusCode}
	}

	return resp.StatusCode, body, rs, nil
}

func rateStatusFromHeaders(resp *http.Response) RateStatus {
	rs := RateStatus{
		Remaining: -1,
		Observed:  time.Now(),
		Limited:   resp.StatusCode == http.StatusTooManyRequests,
	}
	if v := resp.Header.Get("x-rate-limit-remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			rs.Remaining = n
		}
	}
	if v := resp.Header.Get("x-rate-limit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			rs.ResetAt = time.Unix(epoch, 0)
		}
	}
	return rs
}

func alreadyMember(body []byte) bool {
	var resp struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false
	}
	for _, e := range resp.Errors {
		if strings.Contains(strings.ToLower(e.Message), "already a member") {
			return true
		}
	}
	return false
}

func statusError(status int, body []byte) error {
	log.Printf("twitter: API error: %d - %s", status, string(body))
	return &APIError{Status: status, Body: body}
}
