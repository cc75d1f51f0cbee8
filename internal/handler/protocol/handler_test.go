package protocol

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/rudeai/innerlog/backend/internal/model/protocol"
)

func setupRouter() *chi.Mux {
	r := chi.NewRouter()
	New(protocol.NewMemoryStore(protocol.Seed())).RegisterRoutes(r)
	return r
}

func TestListProtocols(t *testing.T) {
	r := setupRouter()
	req := httptest.NewRequest(http.MethodGet, "/protocols", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var got []protocol.Protocol
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(protocol.Seed()) {
		t.Fatalf("expected %d protocols, got %d", len(protocol.Seed()), len(got))
	}
}

func TestGetProtocol(t *testing.T) {
	r := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/protocols/sunk-cost", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/protocols/unknown", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
