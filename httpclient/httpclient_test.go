package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, srv *httptest.Server, cfg Config) *Client {
	t.Helper()
	cfg.BaseURL = srv.URL
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Timeout != defaultTimeout || !strings.HasPrefix(cfg.UserAgent, "chunkscribe/") {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	cfg.BaseURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid base_url")
	}
}

func TestClient_Do_HeadersAndAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Team"); got != "media" {
			t.Errorf("X-Team = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q", got)
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{
		Headers: map[string]string{"X-Team": "media"},
		Auth:    BearerAuth("sk-test"),
	})
	c.config.BaseURL += "/v1"

	resp, err := c.Do(context.Background(), Request{
		Method: http.MethodGet,
		Path:   "/models",
		Query:  map[string]string{"limit": "5"},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !resp.IsSuccess() || string(resp.Body) != "ok" || resp.Header("Content-Type") != "text/plain" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestClient_Do_APIKeyOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("client auth should be overridden")
		}
		if got := r.Header.Get("X-Whisper-Key"); got != "k" {
			t.Errorf("X-Whisper-Key = %q", got)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{Auth: BearerAuth("default")})
	_, err := c.Do(context.Background(), Request{
		Method: http.MethodGet,
		Path:   "/",
		Auth:   APIKeyAuth("k", "X-Whisper-Key"),
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
}

func TestClient_Do_Multipart(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "chunk0.mp3")
	if err := os.WriteFile(audio, []byte("ID3-fake-audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	file, err := FileFromPath("file", audio, "audio/mpeg")
	if err != nil {
		t.Fatalf("FileFromPath: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			t.Fatalf("content type %q: %v", r.Header.Get("Content-Type"), err)
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		got := map[string]string{}
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("NextPart: %v", err)
			}
			data, _ := io.ReadAll(part)
			key := part.FormName()
			if part.FileName() != "" {
				key += ":" + part.FileName() + ":" + part.Header.Get("Content-Type")
			}
			got[key] = string(data)
		}
		want := map[string]string{
			"model":                      "whisper-1",
			"response_format":            "vtt",
			"file:chunk0.mp3:audio/mpeg": "ID3-fake-audio",
		}
		for k, v := range want {
			if got[k] != v {
				t.Errorf("part %q = %q, want %q", k, got[k], v)
			}
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{})
	_, err = c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/audio/transcriptions",
		Body: &MultipartBody{
			Fields: map[string]string{"model": "whisper-1", "response_format": "vtt"},
			Files:  []FileField{file},
		},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
}

func TestClient_DoJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if r.Header.Get("Content-Type") != "application/json" || in["lang"] != "en" {
			t.Errorf("unexpected request body %v", in)
		}
		_, _ = io.WriteString(w, `{"text":"hello"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{})
	var out struct {
		Text string `json:"text"`
	}
	if _, err := c.DoJSON(context.Background(), Request{Method: http.MethodPost, Path: "/", Body: map[string]string{"lang": "en"}}, &out); err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if out.Text != "hello" {
		t.Errorf("Text = %q", out.Text)
	}
}

func TestClient_Do_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		code      ErrorCode
		retryable bool
	}{
		{http.StatusBadRequest, ErrCodeValidation, false},
		{http.StatusUnauthorized, ErrCodeAuth, false},
		{http.StatusForbidden, ErrCodeAuth, false},
		{http.StatusNotFound, ErrCodeNotFound, false},
		{http.StatusRequestEntityTooLarge, ErrCodeValidation, false},
		{http.StatusTooManyRequests, ErrCodeRateLimit, true},
		{http.StatusInternalServerError, ErrCodeServer, true},
		{http.StatusBadGateway, ErrCodeServer, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":{"message":"nope"}}`)
			}))
			defer srv.Close()

			c := newTestClient(t, srv, Config{})
			resp, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
			code, ok := CodeOf(err)
			if !ok || code != tt.code {
				t.Fatalf("code = %v (%v), want %v", code, err, tt.code)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("retryable = %v, want %v", IsRetryable(err), tt.retryable)
			}
			if resp == nil || resp.StatusCode != tt.status {
				t.Errorf("response should be returned with the error")
			}
		})
	}
}

func TestClient_Do_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{Timeout: 20 * time.Millisecond})
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	if !IsTimeout(err) || !IsRetryable(err) {
		t.Errorf("expected retryable timeout, got %v", err)
	}
}

func TestClient_Do_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	if code, _ := CodeOf(err); code != ErrCodeConnection {
		t.Errorf("expected connection error, got %v", err)
	}
}

func TestError_BodySnippet(t *testing.T) {
	e := ClassifyStatusCode(http.StatusBadGateway, []byte("0123456789"))
	if got := e.BodySnippet(4); got != "0123..." {
		t.Errorf("BodySnippet = %q", got)
	}
	if ErrCodeDecode.String() != "decode" || ErrorCode(99).String() != "unknown" {
		t.Error("unexpected code names")
	}
}
