package httputil

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type payload struct {
	Name  string  `json:"name" msgpack:"name"`
	Light float64 `json:"light" msgpack:"light"`
}

func TestWantsMsgpack(t *testing.T) {
	tests := []struct {
		accept string
		want   bool
	}{
		{"", false},
		{"application/json", false},
		{"application/msgpack", true},
		{"application/json, application/x-msgpack;q=0.9", true},
		{"Application/MsgPack", true},
		{"text/html, */*", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Accept", tt.accept)
		if got := WantsMsgpack(r); got != tt.want {
			t.Errorf("WantsMsgpack(%q) = %v, want %v", tt.accept, got, tt.want)
		}
	}
}

func TestWriteNegotiates(t *testing.T) {
	v := payload{Name: "DEMO-1", Light: 0.98}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	Write(w, r, http.StatusOK, v)
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var fromJSON payload
	if err := json.Unmarshal(w.Body.Bytes(), &fromJSON); err != nil || fromJSON != v {
		t.Errorf("JSON body = %+v (%v), want %+v", fromJSON, err, v)
	}

	r.Header.Set("Accept", MsgpackContentType)
	w = httptest.NewRecorder()
	Write(w, r, http.StatusCreated, v)
	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != MsgpackContentType {
		t.Errorf("Content-Type = %q, want %s", ct, MsgpackContentType)
	}
	var fromMsgpack payload
	if err := msgpack.Unmarshal(w.Body.Bytes(), &fromMsgpack); err != nil || fromMsgpack != v {
		t.Errorf("msgpack body = %+v (%v), want %+v", fromMsgpack, err, v)
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusBadRequest, "bad input")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "bad input" {
		t.Errorf("error = %q, want %q", body["error"], "bad input")
	}
}

func TestWriteJSONUnencodable(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, payload{Name: "DEMO-1", Light: math.NaN()})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body %q is not JSON: %v", w.Body.String(), err)
	}
	if body["error"] == "" {
		t.Error("expected error field in response")
	}
}
