package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/info", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID header")
		}
		mask := 4
		_ = json.NewEncoder(w).Encode(infoResponse{Model: "test", VocabSize: 5, MaskID: &mask})
	})
	mux.HandleFunc("POST /v1/encode", func(w http.ResponseWriter, r *http.Request) {
		var req encodeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(encodeResponse{IDs: []int{1, 2, len(req.Text)}})
	})
	mux.HandleFunc("POST /v1/decode", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(decodeResponse{Text: "ala ma"})
	})
	mux.HandleFunc("POST /v1/logits", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(logitsResponse{Logits: []float64{0, 1, 2, 3, 4}})
	})
	mux.HandleFunc("POST /v1/masked_logits", func(w http.ResponseWriter, r *http.Request) {
		var req maskedLogitsRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.IDs[req.Position] != 4 {
			http.Error(w, "position not masked", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(logitsResponse{Logits: []float64{4, 3, 2, 1, 0}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDialAndRoundTrips(t *testing.T) {
	srv := newTestServer(t)
	c, err := Dial(context.Background(), srv.URL+"/", time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if c.VocabSize() != 5 {
		t.Fatalf("VocabSize = %d, want 5", c.VocabSize())
	}
	if c.MaskID() != 4 {
		t.Fatalf("MaskID = %d, want 4", c.MaskID())
	}

	ids, err := c.Encode("ala")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(ids) != 3 || ids[2] != 3 {
		t.Fatalf("Encode returned %v", ids)
	}

	text, err := c.Decode([]int{1, 2})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if text != "ala ma" {
		t.Fatalf("Decode = %q", text)
	}

	logits, err := c.NextLogits(context.Background(), []int{1, 2})
	if err != nil {
		t.Fatalf("NextLogits: %v", err)
	}
	if len(logits) != 5 || logits[4] != 4 {
		t.Fatalf("NextLogits = %v", logits)
	}

	masked, err := c.MaskedLogits(context.Background(), []int{1, 4, 2}, 1)
	if err != nil {
		t.Fatalf("MaskedLogits: %v", err)
	}
	if masked[0] != 4 {
		t.Fatalf("MaskedLogits = %v", masked)
	}
}

func TestMaskedLogitsPositionValidation(t *testing.T) {
	srv := newTestServer(t)
	c, err := Dial(context.Background(), srv.URL, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if _, err := c.MaskedLogits(context.Background(), []int{1, 2}, 5); err == nil {
		t.Fatal("expected error for out-of-range position")
	}
}

func TestServerErrorSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/info" {
			mask := 4
			_ = json.NewEncoder(w).Encode(infoResponse{VocabSize: 5, MaskID: &mask})
			return
		}
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := Dial(context.Background(), srv.URL, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	_, err = c.NextLogits(context.Background(), []int{1})
	if err == nil || !strings.Contains(err.Error(), "model not loaded") {
		t.Fatalf("err = %v, want body in message", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Fatalf("err = %v, want status code in message", err)
	}
}

func TestLogitsLengthMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/info" {
			_ = json.NewEncoder(w).Encode(infoResponse{VocabSize: 5})
			return
		}
		_ = json.NewEncoder(w).Encode(logitsResponse{Logits: []float64{0, 1}})
	}))
	defer srv.Close()

	c, err := Dial(context.Background(), srv.URL, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if _, err := c.NextLogits(context.Background(), []int{1}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}
