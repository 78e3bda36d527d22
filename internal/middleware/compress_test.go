package middleware

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
)

// framePayload resembles an encoded layout frame.
func framePayload(nodes int) string {
	var b strings.Builder
	b.WriteString(`{"run":1,"tick":42,"level":0,"depth":0,"done":false,"nodes":[`)
	for i := 0; i < nodes; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"label":"node-%d","position":[%d.125,%d.5,-%d.25]}`, i, i%97, i%31, i%13)
	}
	b.WriteString(`],"edges":[`)
	for i := 0; i+1 < nodes; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"from":%d,"to":%d}`, i, i+1)
	}
	b.WriteString(`]}`)
	return b.String()
}

func decode(t testing.TB, encoding string, body []byte) []byte {
	t.Helper()
	var r io.Reader
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			t.Fatalf("gzip reader: %v", err)
		}
		defer gz.Close()
		r = gz
	case "br":
		r = brotli.NewReader(bytes.NewReader(body))
	default:
		return body
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("decode %s: %v", encoding, err)
	}
	return out
}

func TestNegotiateEncoding(t *testing.T) {
	tests := []struct {
		accept string
		want   string
	}{
		{"", ""},
		{"identity", ""},
		{"gzip", "gzip"},
		{"br", "br"},
		{"gzip, deflate, br", "br"},
		{"gzip;q=1.0, br;q=0.5", "gzip"},
		{"br;q=0, gzip", "gzip"},
		{"GZIP", "gzip"},
		{"gzip;q=bogus", ""},
		{"deflate", ""},
	}
	for _, tt := range tests {
		if got := negotiateEncoding(tt.accept); got != tt.want {
			t.Errorf("negotiateEncoding(%q) = %q, want %q", tt.accept, got, tt.want)
		}
	}
}

func TestCompress_Encodings(t *testing.T) {
	payload := framePayload(1000)

	tests := []struct {
		name     string
		accept   string
		encoding string
		maxRatio float64
	}{
		{name: "gzip", accept: "gzip", encoding: "gzip", maxRatio: 0.5},
		{name: "brotli", accept: "br", encoding: "br", maxRatio: 0.45},
		{name: "brotli preferred", accept: "gzip, br", encoding: "br", maxRatio: 0.45},
		{name: "identity", accept: "", encoding: "", maxRatio: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Compress(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
				w.Write([]byte(payload))
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/layout/frame", nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Encoding", tt.accept)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if got := rr.Header().Get("Content-Encoding"); got != tt.encoding {
				t.Fatalf("Content-Encoding = %q, want %q", got, tt.encoding)
			}
			if tt.encoding != "" && rr.Header().Get("Content-Length") != "" {
				t.Error("Content-Length must be dropped when compressing")
			}
			if !strings.Contains(rr.Header().Get("Vary"), "Accept-Encoding") {
				t.Error("expected Vary: Accept-Encoding")
			}

			body := rr.Body.Bytes()
			if ratio := float64(len(body)) / float64(len(payload)); ratio > tt.maxRatio {
				t.Errorf("compression ratio %.2f above %.2f", ratio, tt.maxRatio)
			}
			if got := decode(t, tt.encoding, body); string(got) != payload {
				t.Error("decoded body does not match payload")
			}
		})
	}
}

func TestCompress_BodilessResponses(t *testing.T) {
	for _, status := range []int{http.StatusNoContent, http.StatusNotModified} {
		handler := Compress(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Header().Get("Content-Encoding") != "" {
			t.Errorf("status %d: unexpected Content-Encoding", status)
		}
		if rr.Body.Len() != 0 {
			t.Errorf("status %d: expected empty body, got %d bytes", status, rr.Body.Len())
		}
	}
}

func TestCompress_SkipsWebSocketUpgrade(t *testing.T) {
	var wrapped bool
	handler := Compress(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, wrapped = w.(*compressWriter)
	}))
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if wrapped {
		t.Error("websocket upgrade must receive the original ResponseWriter")
	}
}

func TestCompress_PooledWritersAreReset(t *testing.T) {
	handler := Compress(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.Query().Get("v")))
	}))
	for _, v := range []string{"first", "second", "third"} {
		req := httptest.NewRequest(http.MethodGet, "/?v="+v, nil)
		req.Header.Set("Accept-Encoding", "br")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if got := string(decode(t, "br", rr.Body.Bytes())); got != v {
			t.Errorf("got %q, want %q", got, v)
		}
	}
}

func BenchmarkCompress(b *testing.B) {
	payload := []byte(framePayload(5000))
	for _, encoding := range []string{"gzip", "br"} {
		b.Run(encoding, func(b *testing.B) {
			handler := Compress(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write(payload)
			}))
			b.SetBytes(int64(len(payload)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				req := httptest.NewRequest(http.MethodGet, "/api/layout/frame", nil)
				req.Header.Set("Accept-Encoding", encoding)
				handler.ServeHTTP(httptest.NewRecorder(), req)
			}
		})
	}
}
