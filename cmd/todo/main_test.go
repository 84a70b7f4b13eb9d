package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestToggleCommandFlipsState(t *testing.T) {
	var (
		mu        sync.Mutex
		completed bool
		toggles   int
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/todos/7/complete", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		completed = !completed
		toggles++
		mu.Unlock()
		_, _ = w.Write([]byte(`{"id":7}`))
	})
	mux.HandleFunc("/todos/7", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": 7, "title": "t", "memo": "", "created": time.Now().UTC().Format(time.RFC3339Nano), "completed": completed,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := saveConfig(cliConfig{APIBaseURL: srv.URL, Token: "tok"}); err != nil {
		t.Fatalf("save config: %v", err)
	}

	run, ok := commands["toggle"]
	if !ok {
		t.Fatalf("toggle command not registered")
	}
	for i, want := range []bool{true, false} {
		if err := run([]string{"7"}); err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
		mu.Lock()
		got := completed
		mu.Unlock()
		if got != want {
			t.Fatalf("toggle %d: expected completed=%v", i, want)
		}
	}
	if toggles != 2 {
		t.Fatalf("expected 2 toggle requests, got %d", toggles)
	}
}

func TestCommandNames(t *testing.T) {
	if _, ok := commands["done"]; ok {
		t.Fatalf("done must not be registered; the command flips state")
	}
	for _, name := range []string{"signup", "login", "list", "add", "show", "edit", "toggle", "rm"} {
		if _, ok := commands[name]; !ok {
			t.Fatalf("command %q not registered", name)
		}
	}
	err := commands["toggle"](nil)
	if err == nil || !strings.Contains(err.Error(), "todo toggle <id>") {
		t.Fatalf("expected toggle usage error, got %v", err)
	}
}

func TestParseID(t *testing.T) {
	id, rest, err := parseID([]string{"12", "--title", "x"}, "usage")
	if err != nil || id != 12 || len(rest) != 2 {
		t.Fatalf("unexpected parse: %d %v %v", id, rest, err)
	}
	for _, raw := range []string{"0", "-3", "abc"} {
		if _, _, err := parseID([]string{raw}, "usage"); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
