package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func gzipTestHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}
	w.Header().Set("Content-Type", contentType)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("received: " + string(body)))
}

func TestGzipMiddleware(t *testing.T) {
	type want struct {
		statusCode      int
		contentEncoding string
		bodyContains    string
	}

	tests := []struct {
		name         string
		requestBody  string
		gzipRequest  bool
		acceptGzip   bool
		want         want
	}{
		{
			name:        "client accepts gzip",
			requestBody: `{"test":"data"}`,
			acceptGzip:  true,
			want: want{
				statusCode:      http.StatusOK,
				contentEncoding: "gzip",
				bodyContains:    `received: {"test":"data"}`,
			},
		},
		{
			name:        "client does not accept gzip",
			requestBody: "plain request",
			want: want{
				statusCode:   http.StatusOK,
				bodyContains: "received: plain request",
			},
		},
		{
			name:        "gzip request body",
			requestBody: "compressed payload",
			gzipRequest: true,
			want: want{
				statusCode:   http.StatusOK,
				bodyContains: "received: compressed payload",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body bytes.Buffer
			if tt.gzipRequest {
				zw := gzip.NewWriter(&body)
				if _, err := zw.Write([]byte(tt.requestBody)); err != nil {
					t.Fatalf("compress body: %v", err)
				}
				if err := zw.Close(); err != nil {
					t.Fatalf("close gzip writer: %v", err)
				}
			} else {
				body.WriteString(tt.requestBody)
			}

			r := httptest.NewRequest(http.MethodPost, "/", &body)
			if tt.gzipRequest {
				r.Header.Set("Content-Encoding", "gzip")
			}
			if tt.acceptGzip {
				r.Header.Set("Accept-Encoding", "gzip")
			}

			w := httptest.NewRecorder()
			GzipMiddleware(http.HandlerFunc(gzipTestHandler)).ServeHTTP(w, r)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != tt.want.statusCode {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.want.statusCode)
			}
			if enc := res.Header.Get("Content-Encoding"); enc != tt.want.contentEncoding {
				t.Fatalf("content-encoding = %q, want %q", enc, tt.want.contentEncoding)
			}

			var reader io.Reader = res.Body
			if tt.want.contentEncoding == "gzip" {
				zr, err := gzip.NewReader(res.Body)
				if err != nil {
					t.Fatalf("gzip reader: %v", err)
				}
				defer zr.Close()
				reader = zr
			}

			got, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if !strings.Contains(string(got), tt.want.bodyContains) {
				t.Fatalf("body = %q, want contains %q", string(got), tt.want.bodyContains)
			}
		})
	}
}
