package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIServiceGet(t *testing.T) {
	t.Run("JSON response is decoded", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/health" {
				t.Errorf("path = %q", r.URL.Path)
			}
			w.Write([]byte(`{"status":"ok","version":"1.2.0"}`))
		}))
		defer server.Close()

		api := NewAPIService(server.URL, nil)
		resp, err := api.Get(context.Background(), "/health")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if resp.StatusCode != 200 || !resp.IsJSON {
			t.Errorf("resp = %+v", resp)
		}
		data, ok := resp.JSONData.(map[string]any)
		if !ok || data["status"] != "ok" {
			t.Errorf("JSONData = %v", resp.JSONData)
		}
	})

	t.Run("non-JSON body is kept raw", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("plain text"))
		}))
		defer server.Close()

		api := NewAPIService(server.URL, nil)
		resp, err := api.Get(context.Background(), "/")
		if err != nil {
			t.Fatal(err)
		}
		if resp.IsJSON {
			t.Error("plain text should not be flagged as JSON")
		}
		if string(resp.Body) != "plain text" {
			t.Errorf("Body = %q", resp.Body)
		}
	})

	t.Run("connection failure returns error", func(t *testing.T) {
		api := NewAPIService("http://127.0.0.1:1", nil)
		if _, err := api.Get(context.Background(), "/health"); err == nil {
			t.Error("expected error for unreachable host")
		}
	})
}

func TestAPIServicePost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"accepted":true}`))
	}))
	defer server.Close()

	api := NewAPIService(server.URL, nil)
	resp, err := api.Post(context.Background(), "/api/jobs", []byte(`{"id":"x"}`))
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
}
