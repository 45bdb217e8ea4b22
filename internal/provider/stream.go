package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StreamClient talks to the Stream Video REST API.
//
// Auth model: every request carries the api key as a query param and a
// short-lived server JWT signed with the api secret.
type StreamClient struct {
	baseURL   string
	apiKey    string
	apiSecret []byte
	http      *http.Client

	// tokenTTL bounds server token lifetime; short on purpose.
	tokenTTL time.Duration
	clock    func() time.Time
}

type StreamOptions struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

func NewStreamClient(opts StreamOptions) (*StreamClient, error) {
	if opts.APIKey == "" || opts.APISecret == "" {
		return nil, fmt.Errorf("provider: api key and secret are required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://video.stream-io-api.com"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &StreamClient{
		baseURL:   opts.BaseURL,
		apiKey:    opts.APIKey,
		apiSecret: []byte(opts.APISecret),
		http:      &http.Client{Timeout: opts.Timeout},
		tokenTTL:  time.Minute,
		clock:     time.Now,
	}, nil
}

func (c *StreamClient) Name() string { return "stream" }

func (c *StreamClient) HealthCheck(ctx context.Context) error {
	// Query with an empty id set; a 2xx proves auth and reachability.
	_, err := c.QueryCalls(ctx, nil)
	return err
}

func (c *StreamClient) GetCall(ctx context.Context, callID string) (CallState, error) {
	if callID == "" {
		return CallState{}, fmt.Errorf("provider: call id is required")
	}
	var resp getCallResponse
	if err := c.do(ctx, http.MethodGet, "/video/call/default/"+url.PathEscape(callID), nil, &resp); err != nil {
		return CallState{}, err
	}
	return resp.toState(), nil
}

func (c *StreamClient) QueryCalls(ctx context.Context, callIDs []string) ([]CallState, error) {
	cids := make([]string, 0, len(callIDs))
	for _, id := range callIDs {
		cids = append(cids, "default:"+id)
	}
	body := map[string]any{
		"filter_conditions": map[string]any{
			"cid": map[string]any{"$in": cids},
		},
	}
	var resp queryCallsResponse
	if err := c.do(ctx, http.MethodPost, "/video/calls", body, &resp); err != nil {
		return nil, err
	}
	out := make([]CallState, 0, len(resp.Calls))
	for _, cr := range resp.Calls {
		out = append(out, cr.toState())
	}
	return out, nil
}

func (c *StreamClient) RemoveMembers(ctx context.Context, callID string, userIDs []string) error {
	if callID == "" || len(userIDs) == 0 {
		return fmt.Errorf("provider: call id and user ids are required")
	}
	body := map[string]any{"remove_members": userIDs}
	return c.do(ctx, http.MethodPost, "/video/call/default/"+url.PathEscape(callID)+"/members", body, nil)
}

func (c *StreamClient) BlockUser(ctx context.Context, callID, userID string) error {
	if callID == "" || userID == "" {
		return fmt.Errorf("provider: call id and user id are required")
	}
	body := map[string]any{"user_id": userID}
	return c.do(ctx, http.MethodPost, "/video/call/default/"+url.PathEscape(callID)+"/block", body, nil)
}

func (c *StreamClient) UpdateCallCustom(ctx context.Context, callID string, custom map[string]any) error {
	if callID == "" {
		return fmt.Errorf("provider: call id is required")
	}
	body := map[string]any{"custom": custom}
	return c.do(ctx, http.MethodPatch, "/video/call/default/"+url.PathEscape(callID), body, nil)
}

func (c *StreamClient) EndCall(ctx context.Context, callID string) error {
	if callID == "" {
		return fmt.Errorf("provider: call id is required")
	}
	return c.do(ctx, http.MethodPost, "/video/call/default/"+url.PathEscape(callID)+"/mark_ended", nil, nil)
}

// serverToken mints a short-lived server-scope JWT.
func (c *StreamClient) serverToken() (string, error) {
	now := c.clock().UTC()
	claims := jwt.MapClaims{
		"iss": "server",
		"sub": "server",
		"iat": now.Unix(),
		"exp": now.Add(c.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.apiSecret)
}

func (c *StreamClient) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("provider: encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	u := c.baseURL + path + "?api_key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("provider: build request: %w", err)
	}

	token, err := c.serverToken()
	if err != nil {
		return fmt.Errorf("provider: sign server token: %w", err)
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("stream-auth-type", "jwt")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrCallNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("provider: %s %s: status %d: %s", method, path, resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("provider: decode response: %w", err)
	}
	return nil
}

// --- wire types ---

type wireCall struct {
	CID       string     `json:"cid"`
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	Session *struct {
		ParticipantsCountByRole map[string]int `json:"participants_count_by_role,omitempty"`
	} `json:"session,omitempty"`
}

type wireMember struct {
	UserID string `json:"user_id"`
	User   struct {
		ID    string `json:"id"`
		Image string `json:"image,omitempty"`
	} `json:"user"`
}

type getCallResponse struct {
	Call     wireCall     `json:"call"`
	Members  []wireMember `json:"members"`
	Duration string       `json:"duration,omitempty"`

	// DurationSeconds is populated on finalized calls.
	DurationSeconds int `json:"duration_seconds,omitempty"`
}

type queryCallsResponse struct {
	Calls []getCallResponse `json:"calls"`
}

func (r getCallResponse) toState() CallState {
	id := r.Call.ID
	if id == "" {
		id = stripCallType(r.Call.CID)
	}
	members := make([]Member, 0, len(r.Members))
	for _, m := range r.Members {
		uid := m.UserID
		if uid == "" {
			uid = m.User.ID
		}
		members = append(members, Member{UserID: uid, ImageURL: m.User.Image})
	}
	return CallState{
		CallID:          id,
		CreatedAt:       r.Call.CreatedAt,
		UpdatedAt:       r.Call.UpdatedAt,
		EndedAt:         r.Call.EndedAt,
		DurationSeconds: r.DurationSeconds,
		Members:         members,
	}
}

// stripCallType turns "default:abc" into "abc".
func stripCallType(cid string) string {
	for i := 0; i < len(cid); i++ {
		if cid[i] == ':' {
			return cid[i+1:]
		}
	}
	return cid
}
