package httpjson

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/Neumenon/ogjson/ogjson"
)

type todo struct {
	UserID    int    `ogjson:"userId"`
	ID        int    `ogjson:"id"`
	Title     string `ogjson:"title"`
	Completed bool   `ogjson:"completed"`
}

func testCodec() *ogjson.Codec {
	return ogjson.New(ogjson.DefaultOptions())
}

func TestClient_FetchJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"userId":1,"id":2,"title":"buy milk","completed":false}`)
	}))
	defer srv.Close()

	client := NewClient(testCodec())
	var out todo
	if err := client.FetchJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("FetchJSON failed: %v", err)
	}
	if out.ID != 2 || out.Title != "buy milk" {
		t.Errorf("unexpected payload: %+v", out)
	}
}

func TestClient_FetchJSON_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(testCodec())
	var out todo
	err := client.FetchJSON(context.Background(), srv.URL, &out)
	var status *StatusError
	if !errors.As(err, &status) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if status.Status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status.Status)
	}
}

func TestClient_PostJSON(t *testing.T) {
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %q", ct)
		}
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(testCodec())
	status, err := client.PostJSON(context.Background(), srv.URL, todo{UserID: 7, Title: "new"})
	if err != nil {
		t.Fatalf("PostJSON failed: %v", err)
	}
	if status != http.StatusCreated {
		t.Errorf("expected 201, got %d", status)
	}
	if want := `{"userId":7,"id":0,"title":"new","completed":false}`; string(got) != want {
		t.Errorf("body = %s, want %s", got, want)
	}
}

func TestClient_Gzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			if r.Header.Get("Content-Encoding") != "gzip" {
				t.Error("expected gzip request body")
			}
			zr, err := gzip.NewReader(r.Body)
			if err != nil {
				t.Errorf("bad gzip body: %v", err)
				return
			}
			body, _ := io.ReadAll(zr)
			if !bytes.Contains(body, []byte(`"title":"zipped"`)) {
				t.Errorf("unexpected body: %s", body)
			}
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			io.WriteString(zw, `{"id":9,"title":"from gzip"}`)
			zw.Close()
			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Set("Content-Type", "application/json")
			w.Write(buf.Bytes())
		}
	}))
	defer srv.Close()

	client := NewClient(testCodec(), WithGzip())

	status, err := client.PostJSON(context.Background(), srv.URL, todo{Title: "zipped"})
	if err != nil {
		t.Fatalf("PostJSON failed: %v", err)
	}
	if status != http.StatusNoContent {
		t.Errorf("expected 204, got %d", status)
	}

	var out todo
	if err := client.FetchJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("FetchJSON failed: %v", err)
	}
	if out.ID != 9 || out.Title != "from gzip" {
		t.Errorf("unexpected payload: %+v", out)
	}
}

func TestClient_FetchJSON_TruncatedGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		io.WriteString(zw, `{"id":9,"title":"from gzip"}`)
		zw.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "application/json")
		// Drop the trailing checksum so the stream is corrupt.
		w.Write(buf.Bytes()[:buf.Len()-8])
	}))
	defer srv.Close()

	client := NewClient(testCodec())
	var out todo
	if err := client.FetchJSON(context.Background(), srv.URL, &out); err == nil {
		t.Fatal("expected error for truncated gzip body")
	}
}

func TestClient_RateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	// Burst 1: the first call consumes the budget, the second must wait
	// and should give up when its context is already cancelled.
	client := NewClient(testCodec(), WithRateLimit(0.001, 1))

	var out map[string]any
	if err := client.FetchJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.FetchJSON(ctx, srv.URL, &out); err == nil {
		t.Fatal("expected rate-limited fetch with cancelled context to fail")
	}
}
