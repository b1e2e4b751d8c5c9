package memos

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseVisibility(t *testing.T) {
	tests := []struct {
		input   string
		want    Visibility
		wantErr bool
	}{
		{input: "PRIVATE", want: Private},
		{input: "public", want: Public},
		{input: " Protected ", want: Protected},
		{input: "", wantErr: true},
		{input: "unlisted", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseVisibility(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseVisibility(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseVisibility(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseVisibility(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCreateMemo(t *testing.T) {
	var got createMemoRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/memos" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"name":"memos/101","content":"x","visibility":"PRIVATE"}`)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/", "tok", 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	memo, err := c.CreateMemo(context.Background(), "hello #mastodon", "")
	if err != nil {
		t.Fatalf("create memo: %v", err)
	}
	if memo.Name != "memos/101" {
		t.Errorf("name = %q, want memos/101", memo.Name)
	}
	if got.Content != "hello #mastodon" {
		t.Errorf("content = %q", got.Content)
	}
	if got.Visibility != Private {
		t.Errorf("visibility = %q, want PRIVATE default", got.Visibility)
	}
}

func TestCreateMemo_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c, _ := New(srv.URL, "tok", 0)
	memo, err := c.CreateMemo(context.Background(), "x", Public)
	if err != nil {
		t.Fatalf("create memo: %v", err)
	}
	if memo.Name != "" {
		t.Errorf("name = %q, want empty", memo.Name)
	}
}

func TestCreateMemo_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c, _ := New(srv.URL, "tok", 0)
	_, err := c.CreateMemo(context.Background(), "x", Private)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d", httpErr.StatusCode)
	}
	if IsRateLimited(err) {
		t.Error("500 should not count as rate limited")
	}
}

func TestIsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	c, _ := New(srv.URL, "tok", 0)
	_, err := c.CreateMemo(context.Background(), "x", Private)
	if !IsRateLimited(err) {
		t.Fatalf("IsRateLimited(%v) = false, want true", err)
	}
	if IsRateLimited(errors.New("boom")) {
		t.Error("plain error should not count as rate limited")
	}
}

func TestCurrentUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/me" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"name":"users/1","username":"owner"}`)
	}))
	t.Cleanup(srv.Close)

	c, _ := New(srv.URL, "tok", 0)
	user, err := c.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if user.Username != "owner" {
		t.Errorf("username = %q", user.Username)
	}
}
