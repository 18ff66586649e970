package mirror

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

type fakeUploader struct {
	mu    sync.Mutex
	fails int
	keys  []string
	calls int
}

func (f *fakeUploader) PutFile(_ context.Context, key, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fails > 0 {
		f.fails--
		return errors.New("503")
	}
	f.keys = append(f.keys, key)
	return nil
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("snap"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMirror_UploadsUnderPrefixAndRetries(t *testing.T) {
	data := t.TempDir()
	snap := filepath.Join(data, "worlds", "w1", "snapshots", "1200.snap.zst")
	writeFile(t, snap)

	up := &fakeUploader{fails: 2}
	m := New(up, Config{DataDir: data, Prefix: "/rigs/", Backoff: time.Millisecond}, zerolog.Nop())
	m.Enqueue(snap)
	m.Close()

	if diff := cmp.Diff([]string{"rigs/worlds/w1/snapshots/1200.snap.zst"}, up.keys); diff != "" {
		t.Fatalf("keys (-want +got):\n%s", diff)
	}
	if up.calls != 3 {
		t.Fatalf("calls %d, want 3", up.calls)
	}
	s := m.Stats()
	if s.Uploaded != 1 || s.Failed != 0 || s.Enqueued != 1 || s.LastSuccess == 0 {
		t.Fatalf("stats %+v", s)
	}
}

func TestMirror_GivesUpAfterAttempts(t *testing.T) {
	data := t.TempDir()
	p := filepath.Join(data, "a.jsonl.zst")
	writeFile(t, p)
	up := &fakeUploader{fails: 10}
	m := New(up, Config{DataDir: data, Attempts: 2, Backoff: time.Millisecond}, zerolog.Nop())
	m.Enqueue(p)
	m.Close()
	if s := m.Stats(); s.Failed != 1 || s.Uploaded != 0 || s.LastError == 0 {
		t.Fatalf("stats %+v", s)
	}
	if up.calls != 2 {
		t.Fatalf("calls %d, want 2", up.calls)
	}
}

func TestMirror_KeyRejectsOutsideDataDir(t *testing.T) {
	m := New(&fakeUploader{}, Config{DataDir: "/data/rigsim"}, zerolog.Nop())
	defer m.Close()
	if _, err := m.Key("/etc/passwd"); err == nil {
		t.Fatalf("expected error for a path outside the data dir")
	}
	got, err := m.Key("/data/rigsim/worlds/w1/ticks/ticks-2026-03-01-10.jsonl.zst")
	if err != nil {
		t.Fatal(err)
	}
	if got != "worlds/w1/ticks/ticks-2026-03-01-10.jsonl.zst" {
		t.Fatalf("key %q", got)
	}
}

func TestMirror_NilIsNoop(t *testing.T) {
	var m *Mirror
	m.Enqueue("x")
	m.Close()
	if s := m.Stats(); s != (Stats{}) {
		t.Fatalf("stats %+v", s)
	}
}

func TestBucket_PutFileSignsPathStyleRequest(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody string
		gotHash string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotPath, gotAuth, gotBody, gotHash = r.URL.EscapedPath(), r.Header.Get("Authorization"), string(b), r.Header.Get("x-amz-content-sha256")
		if r.Method != http.MethodPut {
			rw.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	b, err := NewBucket(BucketConfig{Endpoint: srv.URL, Bucket: "rigs", AccessKeyID: "AK", SecretAccessKey: "SK"})
	if err != nil {
		t.Fatal(err)
	}
	b.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	p := filepath.Join(t.TempDir(), "1 200.snap.zst")
	writeFile(t, p)
	if err := b.PutFile(context.Background(), "w1/snapshots/1 200.snap.zst", p); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/rigs/w1/snapshots/1%20200.snap.zst" {
		t.Fatalf("path %q", gotPath)
	}
	if gotBody != "snap" {
		t.Fatalf("body %q", gotBody)
	}
	sum := sha256.Sum256([]byte("snap"))
	if want := hex.EncodeToString(sum[:]); gotHash != want {
		t.Fatalf("payload hash %q, want %q", gotHash, want)
	}
	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256 Credential=AK/20260301/auto/s3/aws4_request, SignedHeaders=host;x-amz-content-sha256;x-amz-date, Signature=") {
		t.Fatalf("authorization %q", gotAuth)
	}
}

func TestBucket_PutFileReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, "AccessDenied", http.StatusForbidden)
	}))
	defer srv.Close()
	b, err := NewBucket(BucketConfig{Endpoint: srv.URL, Bucket: "rigs", AccessKeyID: "AK", SecretAccessKey: "SK"})
	if err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(t.TempDir(), "x")
	writeFile(t, p)
	err = b.PutFile(context.Background(), "x", p)
	if err == nil || !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "AccessDenied") {
		t.Fatalf("err %v", err)
	}
}

func TestNewBucket_RequiresConfig(t *testing.T) {
	if _, err := NewBucket(BucketConfig{Endpoint: "r2.example.com", Bucket: "rigs"}); err == nil {
		t.Fatalf("expected missing credentials error")
	}
}
