package shell

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ayxkaddd/FilesBoard/internal/cache"
	"github.com/ayxkaddd/FilesBoard/internal/explorer"
	"github.com/ayxkaddd/FilesBoard/internal/filestoretest"
	"github.com/ayxkaddd/FilesBoard/internal/logging"
	"github.com/ayxkaddd/FilesBoard/internal/notify"
	"github.com/ayxkaddd/FilesBoard/internal/preview"
	"github.com/ayxkaddd/FilesBoard/pkg/models"
)

func run(t *testing.T, srv *filestoretest.Server, login bool, script string) string {
	t.Helper()
	logging.InitNop()
	c, err := cache.New(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	b := notify.NewBroadcaster()
	ex := explorer.New(explorer.Options{Server: srv.URL, Cache: c, Notifier: b})
	if login {
		if err := ex.Login(context.Background(), "alice", "secret"); err != nil {
			t.Fatal(err)
		}
	}

	var out bytes.Buffer
	password := func(string) (string, error) { return "secret", nil }
	sh := New(ex, b, strings.NewReader(script), &out, password, nil)
	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String()
}

func newServer(t *testing.T) *filestoretest.Server {
	srv := filestoretest.New()
	t.Cleanup(srv.Close)
	return srv
}

func TestShellBrowse(t *testing.T) {
	srv := newServer(t)
	srv.PutFile("docs", "notes.md", "first\nsecond\n")
	srv.PutFile("", "a.jpg", "x")

	out := run(t, srv, true, "cd docs\ncat notes.md\ncrumb 0\nquit\n")

	for _, want := range []string{"[dir]", "docs/", "[img]", "a.jpg", "0:/", "1:docs", "[txt]", "notes.md", "first", "second"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestShellDeleteConfirmation(t *testing.T) {
	srv := newServer(t)
	srv.PutFile("", "keep.txt", "x")
	srv.PutFile("", "drop.txt", "y")

	out := run(t, srv, true, "rm keep.txt\nn\nrm drop.txt\ny\n")

	if !strings.Contains(out, "Are you sure you want to delete keep.txt? [y/N]") {
		t.Errorf("expected prompt:\n%s", out)
	}
	if !strings.Contains(out, "Cancelled") {
		t.Errorf("expected cancellation:\n%s", out)
	}
	if !srv.Has("", "keep.txt") || srv.Has("", "drop.txt") {
		t.Error("only the confirmed delete should run")
	}
	if !strings.Contains(out, "File deleted successfully") {
		t.Errorf("expected success notice:\n%s", out)
	}
}

func TestShellUploadQueue(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()
	one := filepath.Join(dir, "one.txt")
	two := filepath.Join(dir, "two.txt")
	os.WriteFile(one, []byte("1"), 0644)
	os.WriteFile(two, []byte("2"), 0644)

	script := "submit\nadd " + one + " " + two + "\nqueue\nunqueue 2\nsubmit\nquit\n"
	out := run(t, srv, true, script)

	for _, want := range []string{
		"No files selected",
		"Queued one.txt",
		"Queued two.txt",
		"Uploading one.txt, please wait...",
		"one.txt uploaded successfully",
		"1 uploaded, 0 failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !srv.Has("", "one.txt") || srv.Has("", "two.txt") {
		t.Error("unqueued file must not be uploaded")
	}
}

func TestShellLoginFlow(t *testing.T) {
	srv := newServer(t)
	srv.PutFile("", "a.txt", "x")

	out := run(t, srv, false, "ls\nlogin alice\n")

	if !strings.Contains(out, "Not logged in") {
		t.Errorf("expected login hint:\n%s", out)
	}
	if !strings.Contains(out, "Logged in as alice") || !strings.Contains(out, "a.txt") {
		t.Errorf("expected listing after login:\n%s", out)
	}
}

func TestShellUnknownCommandAndUsage(t *testing.T) {
	srv := newServer(t)
	out := run(t, srv, true, "frobnicate\nmv onlyone\n\"unterminated\nup\n")
	for _, want := range []string{`unknown command "frobnicate"`, "usage: mv <old> <new>", "unterminated quote", "already at the root folder"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"ls", []string{"ls"}},
		{"  mv  a.txt   b.txt ", []string{"mv", "a.txt", "b.txt"}},
		{`rm "my file.txt"`, []string{"rm", "my file.txt"}},
		{`mkdir ""`, []string{"mkdir", ""}},
	}
	for _, tt := range tests {
		got, err := splitArgs(tt.in)
		if err != nil {
			t.Errorf("splitArgs(%q): %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitArgs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGlyph(t *testing.T) {
	tests := map[string]string{
		"reports":     "[dir]",
		"a.jpg":       "[img]",
		"clip.mp4":    "[vid]",
		"notes.md":    "[txt]",
		"report.PDF":  "[pdf]",
		"archive.zip": "[zip]",
		"blob.bin":    "[---]",
	}
	for name, want := range tests {
		if got := Glyph(models.Classify(name)); got != want {
			t.Errorf("Glyph(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestRenderPreviewUnavailable(t *testing.T) {
	var out bytes.Buffer
	newRenderer(&out).preview("x.bin", preview.Result{})
	if !strings.Contains(out.String(), "Preview not available") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestShellLargeBatchReportsEveryFile(t *testing.T) {
	srv := newServer(t)
	srv.Hook = func(r *http.Request) int {
		if r.Method == http.MethodPost && r.URL.Path == "/api/upload" {
			return http.StatusInternalServerError
		}
		return 0
	}
	dir := t.TempDir()
	var script strings.Builder
	script.WriteString("add")
	for i := 0; i < 40; i++ {
		p := filepath.Join(dir, fmt.Sprintf("f%02d.txt", i))
		os.WriteFile(p, []byte("x"), 0644)
		script.WriteString(" " + p)
	}
	script.WriteString("\nsubmit\nquit\n")

	out := run(t, srv, true, script.String())

	if n := strings.Count(out, "upload failed"); n != 40 {
		t.Errorf("expected 40 failure notices, got %d", n)
	}
	for _, want := range []string{"Uploading f00.txt, please wait...", "f39.txt upload failed", "0 uploaded, 40 failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestShellCacheCommands(t *testing.T) {
	srv := newServer(t)
	srv.PutFile("", "a.txt", "hello")

	out := run(t, srv, true, "cache\nget a.txt\ncache\ncache clear\ncache\ncache bogus\nquit\n")

	for _, want := range []string{"No cached files", "/a.txt", "(5 bytes)", "Removed 1 cached files", "usage: cache [clear]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestShellLogLevel(t *testing.T) {
	srv := newServer(t)
	out := run(t, srv, true, "loglevel info\nloglevel chatty\nquit\n")

	for _, want := range []string{"Log level set to info", `invalid log level "chatty"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestShellStartFolder(t *testing.T) {
	srv := newServer(t)
	srv.PutFile("docs", "plan.md", "x")
	logging.InitNop()
	b := notify.NewBroadcaster()
	ex := explorer.New(explorer.Options{Server: srv.URL, Notifier: b})
	if err := ex.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	sh := New(ex, b, strings.NewReader("quit\n"), &out, nil, nil)
	sh.StartIn("docs")
	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !strings.Contains(out.String(), "plan.md") || ex.Folder() != "docs" {
		t.Errorf("expected docs listing, folder=%q:\n%s", ex.Folder(), out.String())
	}
	if n := srv.CountRequests("GET /api/files"); n != 1 {
		t.Errorf("start folder listed %d times, want 1", n)
	}

	ghost := New(ex, b, strings.NewReader("quit\n"), &out, nil, nil)
	ghost.StartIn("ghost")
	out.Reset()
	ghost.Run(context.Background())
	if !strings.Contains(out.String(), "Failed to load files") {
		t.Errorf("missing start folder failure notice:\n%s", out.String())
	}
}
