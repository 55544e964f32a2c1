package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/http/httptrace"
	"net/url"
	"testing"
	"time"
)

// TestClient_ConnectionReuse verifies sequential requests to one host reuse
// pooled connections.
func TestClient_ConnectionReuse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := New()

	var reused int
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				reused++
			}
		},
	}

	const n = 5
	for i := 0; i < n; i++ {
		ctx := httptrace.WithClientTrace(context.Background(), trace)
		resp := client.Get(ctx, server.URL, 5*time.Second)
		if resp.Error != nil {
			t.Fatalf("request %d failed: %v", i, resp.Error)
		}
	}

	if reused < n-2 {
		t.Errorf("expected at least %d reused connections, got %d", n-2, reused)
	}
}

func TestClient_PostForm(t *testing.T) {
	var gotContentType string
	var gotForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		_ = r.ParseForm()
		gotForm = r.PostForm
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	resp := New().PostForm(context.Background(), server.URL, url.Values{"num_instances": {"3"}}, time.Second)
	if !resp.OK() {
		t.Fatalf("PostForm() = %+v, want OK", resp)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotForm.Get("num_instances") != "3" {
		t.Errorf("num_instances = %q, want 3", gotForm.Get("num_instances"))
	}
}

func TestClient_NonOKIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	resp := New().Get(context.Background(), server.URL, time.Second)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if resp.OK() {
		t.Error("OK() = true for a 401 response")
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", resp.StatusCode)
	}
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	resp := New().Get(context.Background(), server.URL, 50*time.Millisecond)
	if resp.Error == nil {
		t.Fatal("expected a timeout error")
	}
	if resp.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", resp.StatusCode)
	}
}

func TestClient_InvalidURL(t *testing.T) {
	resp := New().Get(context.Background(), "://bad", time.Second)
	if resp.Error == nil {
		t.Fatal("expected an error for an invalid URL")
	}
}

func TestClient_Close(t *testing.T) {
	var nilClient *Client
	nilClient.Close()

	c := New()
	c.Close()
	c.Close()
}
