package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// AuthResponse is the signup/login payload: a bearer token plus the account
// as the server rendered it.
type AuthResponse struct {
	Token   string         `json:"token"`
	Account map[string]any `json:"account"`
}

func (c *Client) Signup(ctx context.Context, name, email, password string) (AuthResponse, error) {
	var out AuthResponse
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"name":     name,
		"email":    email,
		"password": password,
	}, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	var out AuthResponse
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out)
	return out, err
}

func (c *Client) Profile(ctx context.Context, token string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/user/profile", token, nil, &out)
	return out, err
}

func (c *Client) UpdateProfile(ctx context.Context, token, name, bio, avatar string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPut, "/v1/user/profile", token, map[string]any{
		"name":   name,
		"bio":    bio,
		"avatar": avatar,
	}, &out)
	return out, err
}

func (c *Client) RecordChant(ctx context.Context, token string, confidence *float64) (map[string]any, error) {
	body := map[string]any{}
	if confidence != nil {
		body["confidence"] = *confidence
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/chants", token, body, &out)
	return out, err
}

func (c *Client) History(ctx context.Context, token string, page, limit int) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/chants/history?"+pageQuery(page, limit), token, nil, &out)
	return out, err
}

func (c *Client) Stats(ctx context.Context, token string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/chants/stats", token, nil, &out)
	return out, err
}

func (c *Client) Transactions(ctx context.Context, token, kind string, page, limit int) (map[string]any, error) {
	q := pageQuery(page, limit)
	if kind != "" {
		q += "&kind=" + url.QueryEscape(kind)
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/transactions?"+q, token, nil, &out)
	return out, err
}

func (c *Client) Achievements(ctx context.Context, token string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/achievements", token, nil, &out)
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context, token, period string, limit int) (map[string]any, error) {
	q := "limit=" + strconv.Itoa(limit)
	if period != "" {
		q += "&period=" + url.QueryEscape(period)
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/leaderboard?"+q, token, nil, &out)
	return out, err
}

func (c *Client) Withdraw(ctx context.Context, token string, amount int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/wallet/withdraw", token, map[string]any{
		"amount": amount,
	}, &out)
	return out, err
}

func pageQuery(page, limit int) string {
	return "page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(limit)
}

func (c *Client) jsonRequest(ctx context.Context, method, path, token string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
