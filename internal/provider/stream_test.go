package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*StreamClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewStreamClient(StreamOptions{BaseURL: srv.URL, APIKey: "key", APISecret: "secret"})
	if err != nil {
		t.Fatalf("client init: %v", err)
	}
	return c, srv
}

func TestStreamClient_RequiresCredentials(t *testing.T) {
	if _, err := NewStreamClient(StreamOptions{APIKey: "key"}); err == nil {
		t.Fatalf("expected error for missing secret")
	}
	if _, err := NewStreamClient(StreamOptions{APISecret: "secret"}); err == nil {
		t.Fatalf("expected error for missing key")
	}
}

func TestStreamClient_GetCall_SendsAuthAndDecodes(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "key" {
			t.Errorf("missing api_key query param")
		}
		if r.Header.Get("Authorization") == "" {
			t.Errorf("missing server token")
		}
		if r.Header.Get("stream-auth-type") != "jwt" {
			t.Errorf("missing auth-type header")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"call": map[string]any{"cid": "default:room-1", "id": "room-1"},
			"members": []map[string]any{
				{"user_id": "u1", "user": map[string]any{"id": "u1", "image": "http://img/u1"}},
			},
			"duration_seconds": 120,
		})
	})

	s, err := c.GetCall(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.CallID != "room-1" {
		t.Fatalf("expected call id room-1, got %q", s.CallID)
	}
	if s.DurationSeconds != 120 {
		t.Fatalf("expected duration 120, got %d", s.DurationSeconds)
	}
	if !s.HasMember("u1") {
		t.Fatalf("expected member u1")
	}
	if imgs := s.MemberImages(); len(imgs) != 1 || imgs[0] != "http://img/u1" {
		t.Fatalf("unexpected member images: %v", imgs)
	}
}

func TestStreamClient_GetCall_NotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := c.GetCall(context.Background(), "missing")
	if !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("expected ErrCallNotFound, got %v", err)
	}
}

func TestStreamClient_QueryCalls_FiltersByCID(t *testing.T) {
	var got map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"calls": []map[string]any{
				{"call": map[string]any{"cid": "default:room-1"}},
			},
		})
	})

	states, err := c.QueryCalls(context.Background(), []string{"room-1"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(states) != 1 || states[0].CallID != "room-1" {
		t.Fatalf("unexpected states: %+v", states)
	}

	fc, ok := got["filter_conditions"].(map[string]any)
	if !ok {
		t.Fatalf("expected filter_conditions in request body, got %v", got)
	}
	cid, ok := fc["cid"].(map[string]any)
	if !ok {
		t.Fatalf("expected cid filter, got %v", fc)
	}
	in, ok := cid["$in"].([]any)
	if !ok || len(in) != 1 || in[0] != "default:room-1" {
		t.Fatalf("expected $in with call type prefix, got %v", cid)
	}
}

func TestStripCallType(t *testing.T) {
	if got := stripCallType("default:abc"); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
	if got := stripCallType("abc"); got != "abc" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}
