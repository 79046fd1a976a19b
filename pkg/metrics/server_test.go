// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type staticGatherer string

func (s staticGatherer) Gather() string { return string(s) }

func serve(t *testing.T, s *Server, method, path string, auth ...string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if len(auth) == 2 {
		req.SetBasicAuth(auth[0], auth[1])
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestHandleMetrics(t *testing.T) {
	m := NewMotionMetrics()
	m.Heartbeat.Set(nil, 42)
	s := NewServer(m, DefaultServerConfig())

	resp, body := serve(t, s, http.MethodGet, "/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(body, "emcmot_heartbeat 42\n") {
		t.Errorf("body missing heartbeat:\n%s", body)
	}

	resp, body = serve(t, s, http.MethodHead, "/metrics")
	if resp.StatusCode != http.StatusOK || body != "" {
		t.Errorf("HEAD: status %d, body %q", resp.StatusCode, body)
	}
	if resp.Header.Get("Content-Length") == "" {
		t.Error("HEAD without content length")
	}

	resp, _ = serve(t, s, http.MethodPost, "/metrics")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d", resp.StatusCode)
	}
}

func TestHealthAndReady(t *testing.T) {
	s := NewServer(staticGatherer(""), DefaultServerConfig())
	if resp, body := serve(t, s, http.MethodGet, "/health"); resp.StatusCode != http.StatusOK || body != "OK\n" {
		t.Errorf("health: %d %q", resp.StatusCode, body)
	}
	if resp, _ := serve(t, s, http.MethodGet, "/ready"); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready before start: %d", resp.StatusCode)
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Username, cfg.Password = "admin", "secret"
	s := NewServer(staticGatherer("x 1\n"), cfg)

	tests := []struct {
		name string
		auth []string
		want int
	}{
		{"none", nil, http.StatusUnauthorized},
		{"wrong password", []string{"admin", "nope"}, http.StatusUnauthorized},
		{"wrong user", []string{"root", "secret"}, http.StatusUnauthorized},
		{"valid", []string{"admin", "secret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := serve(t, s, http.MethodGet, "/metrics", tt.auth...)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if tt.want == http.StatusUnauthorized && resp.Header.Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate")
			}
		})
	}
}

func TestServerLifecycle(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Address = "127.0.0.1:0"
	s := NewServer(staticGatherer("up 1\n"), cfg)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	deadline := time.Now().Add(2 * time.Second)
	for !s.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !s.Running() {
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + s.Address() + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "up 1\n" {
		t.Errorf("body = %q", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Start returned %v", err)
	}
	if s.Running() {
		t.Error("still running after shutdown")
	}
}
