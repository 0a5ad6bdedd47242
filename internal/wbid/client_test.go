package wbid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExchangeToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/token" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Basic c2VjcmV0" {
			t.Errorf("unexpected authorization %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != steamGrantType {
			t.Errorf("unexpected grant_type %q", got)
		}
		if got := r.PostForm.Get("ticket"); got != "ticket-123" {
			t.Errorf("unexpected ticket %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-1"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	token, err := client.ExchangeToken(context.Background(), "c2VjcmV0", "ticket-123")
	if err != nil {
		t.Fatalf("ExchangeToken: %v", err)
	}
	if token != "tok-1" {
		t.Fatalf("expected tok-1, got %q", token)
	}
}

func TestExchangeTokenRejectedCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	if _, err := client.ExchangeToken(context.Background(), "bad", "ticket"); err == nil {
		t.Fatal("expected error for rejected credentials")
	}
}

func TestFetchAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/me" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("unexpected authorization %q", got)
		}
		w.Write([]byte(`{"user_id":"legacy-9"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	userID, err := client.FetchAccount(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("FetchAccount: %v", err)
	}
	if userID != "legacy-9" {
		t.Fatalf("expected legacy-9, got %q", userID)
	}
}

func TestFetchPrivateProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/legacy-9/profile/private" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"accountXp":4200,"loadouts":{"slot1":"bat"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	profile, err := client.FetchPrivateProfile(context.Background(), "tok-1", "legacy-9")
	if err != nil {
		t.Fatalf("FetchPrivateProfile: %v", err)
	}
	if profile["accountXp"] != float64(4200) {
		t.Fatalf("expected accountXp 4200, got %v", profile["accountXp"])
	}
}

func TestFetchAccountMissingUserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	if _, err := client.FetchAccount(context.Background(), "tok-1"); err == nil {
		t.Fatal("expected error for missing user_id")
	}
}
