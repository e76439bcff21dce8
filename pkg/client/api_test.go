package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"battlemap_server/internal/dto/request"
	"battlemap_server/pkg/errorx"
)

func TestAPI_JoinByCodeAndErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/session/join", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"code": errorx.CodeSessionNotFound, "msg": "Session not found"})
			return
		}
		var req request.JoinSessionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": errorx.CodeSuccess,
			"msg":  "success",
			"data": map[string]any{
				"session":     map[string]any{"id": "s1", "joinCode": req.JoinCode},
				"participant": map[string]any{"userId": req.UserId, "role": "PLAYER"},
				"token":       "tok",
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	api := NewAPI(server.URL + "/")
	joined, err := api.JoinByCode(context.Background(), "ABC123", "alice", "Alice")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined.Session.Id != "s1" || joined.Token != "tok" || joined.Participant.Role != "PLAYER" {
		t.Fatalf("joined=%+v", joined)
	}

	_, err = api.Preview(context.Background(), "ZZZZZZ")
	if !errors.Is(err, errorx.ErrSessionNotFound) {
		t.Fatalf("preview err=%v", err)
	}
}

func TestAPI_WsURL(t *testing.T) {
	cases := map[string]string{
		"http://127.0.0.1:8000":      "ws://127.0.0.1:8000/wss",
		"https://maps.example.com/":  "wss://maps.example.com/wss",
		"http://host/battlemap/api/": "ws://host/battlemap/api/wss",
	}
	for in, want := range cases {
		if got := NewAPI(in).WsURL(); got != want {
			t.Errorf("WsURL(%q)=%q want %q", in, got, want)
		}
	}
}
