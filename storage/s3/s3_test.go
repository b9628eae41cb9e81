package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/kbukum/chunkscribe/storage"
)

// fakeS3 serves the path-style subset of the S3 API the store uses.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(p, "/")
	if bucket != f.bucket {
		http.Error(w, "no such bucket", http.StatusNotFound)
		return
	}

	if key == "" && r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2" {
		f.list(w, r.URL.Query().Get("prefix"))
		return
	}

	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = data
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		data, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.Write(data) //nolint:errcheck
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) list(w http.ResponseWriter, prefix string) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&b, "<Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>", f.bucket, prefix, len(keys))
	for _, k := range keys {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2026-01-02T03:04:05.000Z</LastModified></Contents>", k, len(f.objects[k]))
	}
	b.WriteString("</ListBucketResult>")
	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprint(w, b.String())
}

func newTestStorage(t *testing.T, prefix string) (*Storage, *fakeS3) {
	t.Helper()
	fake := &fakeS3{bucket: "transcripts", objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewStorage(context.Background(), storage.Config{
		Provider:             storage.ProviderS3,
		Bucket:               "transcripts",
		Region:               "us-east-1",
		Endpoint:             srv.URL,
		AccessKey:            "test",
		SecretKey:            "test",
		Prefix:               prefix,
		ChecksumWhenRequired: true,
	})
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	return s, fake
}

func TestKeyPrefix(t *testing.T) {
	s := &Storage{prefix: "runs"}
	if got := s.key("/talk/chunk0.srt"); got != "runs/talk/chunk0.srt" {
		t.Errorf("key = %q", got)
	}
	if got := s.unkey("runs/talk/chunk0.srt"); got != "talk/chunk0.srt" {
		t.Errorf("unkey = %q", got)
	}
	bare := &Storage{}
	if got := bare.key("talk/chunk0.srt"); got != "talk/chunk0.srt" {
		t.Errorf("key = %q", got)
	}
}

func TestURL(t *testing.T) {
	s, _ := newTestStorage(t, "runs")
	u, err := s.URL(context.Background(), "talk/merged_transcript.vtt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(u, "/transcripts/runs/talk/merged_transcript.vtt") || !strings.HasPrefix(u, "http://127.0.0.1") {
		t.Errorf("URL = %q", u)
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStorage(t, "runs")

	if err := s.Upload(ctx, "talk/chunk0.srt", strings.NewReader("1\n00:00:00,000 --> 00:00:01,000\nhi\n")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, ok := fake.objects["runs/talk/chunk0.srt"]; !ok {
		t.Fatalf("object not stored under prefixed key: %v", fake.objects)
	}

	rc, err := s.Download(ctx, "talk/chunk0.srt")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if !strings.Contains(string(data), "hi") {
		t.Errorf("Download = %q", data)
	}

	ok, err := s.Exists(ctx, "talk/chunk0.srt")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
}

func TestMissingObject(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t, "")

	ok, err := s.Exists(ctx, "nope.srt")
	if err != nil || ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	if _, err := s.Download(ctx, "nope.srt"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStorage(t, "runs")
	fake.objects["runs/talk/chunk1.srt"] = []byte("bb")
	fake.objects["runs/talk/chunk0.srt"] = []byte("a")
	fake.objects["runs/other/chunk0.srt"] = []byte("c")

	files, err := s.List(ctx, "talk/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 2 || files[0].Path != "talk/chunk0.srt" || files[1].Size != 2 {
		t.Fatalf("List = %+v", files)
	}
	if files[0].LastModified.Year() != 2026 {
		t.Errorf("LastModified = %v", files[0].LastModified)
	}

	if err := s.Delete(ctx, "talk/chunk0.srt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := fake.objects["runs/talk/chunk0.srt"]; ok {
		t.Error("object not deleted")
	}
}
