package download

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/gdget/gdget/gdrive"
)

// recorder captures lifecycle events as formatted strings, safe for the
// concurrent hook invocations of folder downloads.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) error {
	r.mu.Lock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
	r.mu.Unlock()
	return nil
}

func (r *recorder) OnFileSetup(f *gdrive.File, path string) error {
	return r.add("fileSetup(%s)", f.Name)
}
func (r *recorder) OnFileStart(f *gdrive.File, total int64) error {
	return r.add("fileStart(%s,%d)", f.Name, total)
}
func (r *recorder) OnFileResume(f *gdrive.File, downloaded, total int64) error {
	return r.add("fileResume(%s,%d,%d)", f.Name, downloaded, total)
}
func (r *recorder) OnFileProgress(f *gdrive.File, downloaded, total int64) error {
	return r.add("fileProgress(%s)", f.Name)
}
func (r *recorder) OnFileComplete(f *gdrive.File, total int64) error {
	return r.add("fileComplete(%s,%d)", f.Name, total)
}
func (r *recorder) OnFileFail(f *gdrive.File, err error) error {
	return r.add("fileFail(%s)", f.Name)
}
func (r *recorder) OnFileCleanup(f *gdrive.File, success bool) error {
	return r.add("fileCleanup(%s,%t)", f.Name, success)
}
func (r *recorder) OnFileSkip(f *gdrive.File, path string) error {
	return r.add("fileSkip(%s)", f.Name)
}
func (r *recorder) OnFolderSetup(f *gdrive.Folder, path string) error {
	return r.add("folderSetup(%s)", f.Name)
}
func (r *recorder) OnFolderStart(f *gdrive.Folder) error {
	return r.add("folderStart(%s)", f.Name)
}
func (r *recorder) OnFolderComplete(f *gdrive.Folder) error {
	return r.add("folderComplete(%s)", f.Name)
}
func (r *recorder) OnFolderFail(f *gdrive.Folder, err error) error {
	return r.add("folderFail(%s)", f.Name)
}
func (r *recorder) OnFolderCleanup(f *gdrive.Folder, success bool) error {
	return r.add("folderCleanup(%s,%t)", f.Name, success)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// index returns the position of the first event exactly equal to want, or -1.
func (r *recorder) index(want string) int {
	for i, e := range r.snapshot() {
		if e == want {
			return i
		}
	}
	return -1
}

func (r *recorder) count(prefix string) int {
	n := 0
	for _, e := range r.snapshot() {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

// assertOrder fails unless every named event occurred, in the given relative
// order. Events not named (like progress) may interleave freely.
func assertOrder(t *testing.T, r *recorder, want ...string) {
	t.Helper()
	last := -1
	for _, w := range want {
		i := r.index(w)
		if i < 0 {
			t.Fatalf("event %q missing; got %v", w, r.snapshot())
		}
		if i <= last {
			t.Fatalf("event %q out of order; got %v", w, r.snapshot())
		}
		last = i
	}
}

func testClient(srv *httptest.Server) *gdrive.Client {
	return &gdrive.Client{HTTPClient: srv.Client(), BaseURL: srv.URL}
}

func TestTransferDirect(t *testing.T) {
	const payload = "hello, bytes"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("id") != "f1" {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		fmt.Fprint(w, payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "a.txt")
	rec := &recorder{}
	file := &gdrive.File{ID: "f1", Name: "a.txt"}

	if err := transfer(context.Background(), testClient(srv), file, dest, rec); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(got) != payload {
		t.Errorf("content = %q; want %q", got, payload)
	}
	if _, err := os.Stat(dest + partSuffix); !os.IsNotExist(err) {
		t.Errorf("temp artifact survived the transfer")
	}

	total := int64(len(payload))
	assertOrder(t, rec,
		"fileSetup(a.txt)",
		fmt.Sprintf("fileStart(a.txt,%d)", total),
		fmt.Sprintf("fileComplete(a.txt,%d)", total),
		"fileCleanup(a.txt,true)",
	)
	if n := rec.count("fileProgress"); n < 1 {
		t.Errorf("got %d progress events; want at least 1", n)
	}
	if rec.count("fileResume") > 0 {
		t.Errorf("unexpected resume event: %v", rec.snapshot())
	}
}

func TestTransferConfirmationResume(t *testing.T) {
	const full = "0123456789abcdef"
	const already = 5

	var gotRange string
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/uc":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprintf(w, `<html><body><form action=%q method="post">
				<input type="hidden" name="id" value="f2">
				<input type="hidden" name="confirm" value="t">
				<input type="submit" value="Download anyway">
			</form></body></html>`, srv.URL+"/confirmed")
		case "/confirmed":
			gotRange = req.Header.Get("Range")
			if req.URL.Query().Get("confirm") != "t" {
				http.Error(w, "missing confirm field", http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/octet-stream")
			w.WriteHeader(http.StatusPartialContent)
			fmt.Fprint(w, full[already:])
		default:
			http.NotFound(w, req)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "b.bin")
	if err := os.WriteFile(dest+partSuffix, []byte(full[:already]), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	file := &gdrive.File{ID: "f2", Name: "b.bin"}
	if err := transfer(context.Background(), testClient(srv), file, dest, rec); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if want := fmt.Sprintf("bytes=%d-", already); gotRange != want {
		t.Errorf("Range header = %q; want %q", gotRange, want)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != full {
		t.Errorf("content = %q; want %q", got, full)
	}

	total := int64(len(full))
	assertOrder(t, rec,
		"fileSetup(b.bin)",
		fmt.Sprintf("fileResume(b.bin,%d,%d)", already, total),
		fmt.Sprintf("fileComplete(b.bin,%d)", total),
		"fileCleanup(b.bin,true)",
	)
	if rec.count("fileStart") > 0 {
		t.Errorf("resumed transfer must not report a start event: %v", rec.snapshot())
	}
}

func TestTransferEmptyFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", "0")
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "empty.txt")
	rec := &recorder{}
	file := &gdrive.File{ID: "f3", Name: "empty.txt"}

	if err := transfer(context.Background(), testClient(srv), file, dest, rec); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	st, err := os.Stat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if st.Size() != 0 {
		t.Errorf("size = %d; want 0", st.Size())
	}
	if n := rec.count("fileProgress"); n < 1 {
		t.Errorf("got %d progress events; want at least 1", n)
	}
	assertOrder(t, rec, "fileStart(empty.txt,0)", "fileComplete(empty.txt,0)")
}

func TestTransferProbeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.NotFound(w, req)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "gone.txt")
	rec := &recorder{}
	file := &gdrive.File{ID: "f4", Name: "gone.txt"}

	err := transfer(context.Background(), testClient(srv), file, dest, rec)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("error = %v; want ErrTransferFailed", err)
	}
	if _, serr := os.Stat(dest + partSuffix); !os.IsNotExist(serr) {
		t.Errorf("temp artifact should be removed after a failed probe")
	}
	assertOrder(t, rec, "fileSetup(gone.txt)", "fileFail(gone.txt)", "fileCleanup(gone.txt,false)")
	if rec.count("fileStart") > 0 || rec.count("fileComplete") > 0 {
		t.Errorf("failed transfer reported start or complete: %v", rec.snapshot())
	}
}

func TestTransferUnparseableConfirmation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>quota exceeded</body></html>")
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "quota.txt")
	file := &gdrive.File{ID: "f5", Name: "quota.txt"}

	err := transfer(context.Background(), testClient(srv), file, dest, NopFileCallback{})
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("error = %v; want ErrTransferFailed", err)
	}
	if _, serr := os.Stat(dest + partSuffix); !os.IsNotExist(serr) {
		t.Errorf("temp artifact should be removed when the page has no form")
	}
}
