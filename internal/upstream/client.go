// Package upstream is the HTTP client for the academy management API. The
// portal never owns academy data; everything here is fetched on behalf of the
// logged-in user with their bearer token.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"academyhub/internal/model"
)

var (
	// ErrUnreachable wraps transport-level failures: the API could not be
	// reached or did not produce a parseable response.
	ErrUnreachable = errors.New("academy api unreachable")
	// ErrUnauthorized is returned on 401 responses so callers can clear the
	// local session.
	ErrUnauthorized = errors.New("academy api rejected token")
)

// APIError is a business rejection: the API responded but declined the
// operation. Message carries the server-supplied text when present.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("academy api error (status %d)", e.Status)
}

// Client talks to the academy API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// envelope is the common response wrapper every academy endpoint uses.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type loginResponse struct {
	envelope
	User         *model.User `json:"user"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
}

type registerResponse struct {
	envelope
	User   *model.User `json:"user"`
	Tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"tokens"`
}

type verifyResponse struct {
	envelope
	User *model.User `json:"user"`
}

type refreshResponse struct {
	envelope
	AccessToken string `json:"accessToken"`
}

// Login exchanges credentials for a token pair and the canonical user record.
func (c *Client) Login(ctx context.Context, identifier, secret string) (*Credentials, error) {
	body := map[string]string{"identifier": identifier, "secret": secret}
	var res loginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &res); err != nil {
		return nil, err
	}
	if res.User == nil || res.Token == "" {
		return nil, &APIError{Status: http.StatusOK, Message: res.Message}
	}
	return &Credentials{User: res.User, Token: res.Token, RefreshToken: res.RefreshToken}, nil
}

// Register creates an account; on success the API logs the user straight in.
func (c *Client) Register(ctx context.Context, payload RegistrationPayload) (*Credentials, error) {
	var res registerResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", payload, &res); err != nil {
		return nil, err
	}
	if res.User == nil || res.Tokens.AccessToken == "" {
		return nil, &APIError{Status: http.StatusOK, Message: res.Message}
	}
	return &Credentials{
		User:         res.User,
		Token:        res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}, nil
}

// Logout invalidates the token server-side.
func (c *Client) Logout(ctx context.Context, token string) error {
	var res envelope
	return c.do(ctx, http.MethodPost, "/auth/logout", token, nil, &res)
}

// Verify checks the token and returns the canonical user record.
func (c *Client) Verify(ctx context.Context, token string) (*model.User, error) {
	var res verifyResponse
	if err := c.do(ctx, http.MethodGet, "/auth/verify", token, nil, &res); err != nil {
		return nil, err
	}
	if res.User == nil {
		return nil, &APIError{Status: http.StatusOK, Message: res.Message}
	}
	return res.User, nil
}

// Refresh exchanges a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	body := map[string]string{"refreshToken": refreshToken}
	var res refreshResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", "", body, &res); err != nil {
		return "", err
	}
	if res.AccessToken == "" {
		return "", &APIError{Status: http.StatusOK, Message: res.Message}
	}
	return res.AccessToken, nil
}

// UpdateProfile changes the editable profile fields and returns the updated
// user record.
func (c *Client) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*model.User, error) {
	var res verifyResponse
	if err := c.do(ctx, http.MethodPut, "/auth/profile", token, update, &res); err != nil {
		return nil, err
	}
	if res.User == nil {
		return nil, &APIError{Status: http.StatusOK, Message: res.Message}
	}
	return res.User, nil
}

// Dashboard returns the role-specific dashboard summary as-is.
func (c *Client) Dashboard(ctx context.Context, token string) (json.RawMessage, error) {
	var res struct {
		envelope
		Summary json.RawMessage `json:"summary"`
	}
	if err := c.do(ctx, http.MethodGet, "/dashboard", token, nil, &res); err != nil {
		return nil, err
	}
	return res.Summary, nil
}

// Roster lists the players of a team.
func (c *Client) Roster(ctx context.Context, token, teamID string) ([]Player, error) {
	var res struct {
		envelope
		Players []Player `json:"players"`
	}
	path := "/teams/" + url.PathEscape(teamID) + "/roster"
	if err := c.do(ctx, http.MethodGet, path, token, nil, &res); err != nil {
		return nil, err
	}
	return res.Players, nil
}

// Attendance lists attendance records for a team and date.
func (c *Client) Attendance(ctx context.Context, token, teamID, date string) ([]AttendanceRecord, error) {
	var res struct {
		envelope
		Records []AttendanceRecord `json:"records"`
	}
	query := url.Values{}
	if teamID != "" {
		query.Set("teamId", teamID)
	}
	if date != "" {
		query.Set("date", date)
	}
	path := "/attendance"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	if err := c.do(ctx, http.MethodGet, path, token, nil, &res); err != nil {
		return nil, err
	}
	return res.Records, nil
}

// MarkAttendance records a player's presence at a training session.
func (c *Client) MarkAttendance(ctx context.Context, token string, mark AttendanceMark) (*AttendanceRecord, error) {
	var res struct {
		envelope
		Record *AttendanceRecord `json:"record"`
	}
	if err := c.do(ctx, http.MethodPost, "/attendance", token, mark, &res); err != nil {
		return nil, err
	}
	return res.Record, nil
}

// Invoices lists billing lines visible to the current user.
func (c *Client) Invoices(ctx context.Context, token string) ([]Invoice, error) {
	var res struct {
		envelope
		Invoices []Invoice `json:"invoices"`
	}
	if err := c.do(ctx, http.MethodGet, "/billing/invoices", token, nil, &res); err != nil {
		return nil, err
	}
	return res.Invoices, nil
}

// MatchStats returns the statistics of a finished match.
func (c *Client) MatchStats(ctx context.Context, token, matchID string) (*MatchStatistics, error) {
	var res struct {
		envelope
		Statistics *MatchStatistics `json:"statistics"`
	}
	path := "/matches/" + url.PathEscape(matchID) + "/statistics"
	if err := c.do(ctx, http.MethodGet, path, token, nil, &res); err != nil {
		return nil, err
	}
	return res.Statistics, nil
}

// CheckinQR submits a scanned QR code for check-in.
func (c *Client) CheckinQR(ctx context.Context, token, code string) (*CheckinResult, error) {
	var res struct {
		envelope
		Checkin *CheckinResult `json:"checkin"`
	}
	body := map[string]string{"code": code}
	if err := c.do(ctx, http.MethodPost, "/checkin/qr", token, body, &res); err != nil {
		return nil, err
	}
	return res.Checkin, nil
}

// AdminOverview returns the admin panel aggregate as-is.
func (c *Client) AdminOverview(ctx context.Context, token string) (json.RawMessage, error) {
	var res struct {
		envelope
		Overview json.RawMessage `json:"overview"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/overview", token, nil, &res); err != nil {
		return nil, err
	}
	return res.Overview, nil
}

// do performs one request and decodes the response into out. It separates the
// three failure classes the session layer cares about: transport failures wrap
// ErrUnreachable, 401 maps to ErrUnauthorized, and everything else the API
// declines becomes an *APIError carrying the server message.
func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnreachable, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}

	if resp.StatusCode >= 400 {
		var env envelope
		_ = json.Unmarshal(raw, &env)
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnreachable, err)
	}

	// Some endpoints report failure through the envelope with a 200 status.
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}

	return nil
}
