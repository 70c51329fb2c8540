package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ayxkaddd/FilesBoard/internal/filestoretest"
	"github.com/ayxkaddd/FilesBoard/internal/logging"
	"github.com/ayxkaddd/FilesBoard/internal/notify"
	"github.com/ayxkaddd/FilesBoard/pkg/client"
	"github.com/ayxkaddd/FilesBoard/pkg/protocol"
)

type fakeTarget struct {
	folder  string
	reloads int
	err     error
}

func (f *fakeTarget) Folder() string { return f.folder }

func (f *fakeTarget) Reload(context.Context) error {
	f.reloads++
	return f.err
}

func content(s string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(s)), nil
	}
}

func setup(t *testing.T) (*filestoretest.Server, *client.Client, *fakeTarget, *notify.Recorder) {
	t.Helper()
	logging.InitNop()
	srv := filestoretest.New()
	t.Cleanup(srv.Close)
	c := client.New(client.Config{BaseURL: srv.URL, Tokens: client.StaticToken(srv.Token())})
	return srv, c, &fakeTarget{folder: "docs"}, &notify.Recorder{}
}

func TestSubmitAllInOrder(t *testing.T) {
	srv, c, target, rec := setup(t)
	srv.MkdirAll("docs")
	q := NewQueue(c, target, rec)

	names := []string{"c.txt", "a.txt", "b.txt"}
	for _, n := range names {
		q.Add(n, 1, content("data-"+n))
	}

	sum, err := q.SubmitAll(context.Background())
	if err != nil {
		t.Fatalf("SubmitAll: %v", err)
	}
	if len(sum.Succeeded) != 3 || len(sum.Failed) != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	for i, r := range sum.Succeeded {
		if r.Task.Name != names[i] {
			t.Errorf("result %d = %s, want %s", i, r.Task.Name, names[i])
		}
		if r.Bytes != int64(len("data-"+names[i])) {
			t.Errorf("result %d bytes = %d", i, r.Bytes)
		}
	}
	if n := srv.CountRequests("POST /api/upload"); n != 3 {
		t.Errorf("expected 3 uploads, got %d", n)
	}
	for _, n := range names {
		if !srv.Has("docs", n) {
			t.Errorf("expected %s stored in docs", n)
		}
	}
	if q.Len() != 0 {
		t.Errorf("queue should be empty, has %d", q.Len())
	}
	if target.reloads != 1 {
		t.Errorf("expected 1 reload, got %d", target.reloads)
	}

	want := []string{
		"info: Uploading c.txt, please wait...",
		"success: c.txt uploaded successfully",
		"info: Uploading a.txt, please wait...",
		"success: a.txt uploaded successfully",
		"info: Uploading b.txt, please wait...",
		"success: b.txt uploaded successfully",
	}
	got := rec.Messages()
	if len(got) != len(want) {
		t.Fatalf("notices = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notice %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// serialUploader fails named files and records overlap between calls.
type serialUploader struct {
	mu       sync.Mutex
	inFlight int
	overlap  bool
	order    []string
	fail     map[string]bool
}

func (s *serialUploader) Upload(_ context.Context, folder, name string, r io.Reader) (*protocol.UploadResponse, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > 1 {
		s.overlap = true
	}
	s.order = append(s.order, name)
	s.mu.Unlock()

	io.Copy(io.Discard, r)

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	if s.fail[name] {
		return nil, errors.New("http error! status: 500")
	}
	return &protocol.UploadResponse{Filename: name}, nil
}

func TestFailureDoesNotStopBatch(t *testing.T) {
	logging.InitNop()
	up := &serialUploader{fail: map[string]bool{"2.txt": true}}
	target := &fakeTarget{}
	rec := &notify.Recorder{}
	q := NewQueue(up, target, rec)
	for _, n := range []string{"1.txt", "2.txt", "3.txt"} {
		q.Add(n, 1, content(n))
	}

	sum, err := q.SubmitAll(context.Background())
	if err != nil {
		t.Fatalf("SubmitAll: %v", err)
	}
	if sum.Total() != 3 || len(sum.Failed) != 1 || sum.Failed[0].Task.Name != "2.txt" {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if strings.Join(up.order, ",") != "1.txt,2.txt,3.txt" {
		t.Errorf("unexpected order %v", up.order)
	}
	if up.overlap {
		t.Error("uploads overlapped")
	}
	if q.Len() != 0 || target.reloads != 1 {
		t.Errorf("queue should be cleared and reloaded: len=%d reloads=%d", q.Len(), target.reloads)
	}

	found := false
	for _, m := range rec.Messages() {
		if m == "error: 2.txt upload failed: http error! status: 500" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing failure notice in %v", rec.Messages())
	}
}

func TestServerRejectionReportedPerFile(t *testing.T) {
	srv, c, target, rec := setup(t)
	srv.MkdirAll("docs")
	srv.Hook = func(r *http.Request) int {
		if r.Method == http.MethodPost && r.URL.Path == protocol.PathUpload {
			if f, hdr, err := r.FormFile(protocol.UploadField); err == nil {
				f.Close()
				if hdr.Filename == "bad.txt" {
					return http.StatusRequestEntityTooLarge
				}
			}
		}
		return 0
	}
	q := NewQueue(c, target, rec)
	q.Add("bad.txt", 1, content("x"))
	q.Add("good.txt", 1, content("y"))

	sum, _ := q.SubmitAll(context.Background())
	if len(sum.Failed) != 1 || client.StatusOf(sum.Failed[0].Err) != http.StatusRequestEntityTooLarge {
		t.Fatalf("unexpected failures: %+v", sum.Failed)
	}
	if len(sum.Succeeded) != 1 || sum.Succeeded[0].Task.Name != "good.txt" {
		t.Errorf("unexpected successes: %+v", sum.Succeeded)
	}
}

func TestSubmitEmpty(t *testing.T) {
	logging.InitNop()
	target := &fakeTarget{}
	rec := &notify.Recorder{}
	q := NewQueue(&serialUploader{}, target, rec)

	if _, err := q.SubmitAll(context.Background()); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if target.reloads != 0 {
		t.Error("empty submit must not reload")
	}
	if got := rec.Messages(); len(got) != 1 || got[0] != "error: No files selected" {
		t.Errorf("unexpected notices %v", got)
	}
}

func TestRemove(t *testing.T) {
	q := NewQueue(&serialUploader{}, &fakeTarget{}, nil)
	a := q.Add("a.txt", 1, content("a"))
	b := q.Add("b.txt", 1, content("b"))
	c := q.Add("c.txt", 1, content("c"))

	if a.ID == b.ID || b.ID == c.ID {
		t.Fatal("task ids must be unique")
	}
	if !q.Remove(b.ID) {
		t.Error("expected b removed")
	}
	if q.Remove("unknown") || q.Remove(b.ID) {
		t.Error("removing an absent task should be a no-op")
	}
	tasks := q.Tasks()
	if len(tasks) != 2 || tasks[0].ID != a.ID || tasks[1].ID != c.ID {
		t.Errorf("unexpected tasks %+v", tasks)
	}
}

// addingUploader queues another task during the batch.
type addingUploader struct {
	q     *Queue
	added bool
}

func (a *addingUploader) Upload(_ context.Context, _, name string, r io.Reader) (*protocol.UploadResponse, error) {
	io.Copy(io.Discard, r)
	if !a.added {
		a.added = true
		a.q.Add("late.txt", 1, content("late"))
	}
	return &protocol.UploadResponse{Filename: name}, nil
}

func TestTasksAddedDuringBatchStayQueued(t *testing.T) {
	logging.InitNop()
	up := &addingUploader{}
	q := NewQueue(up, &fakeTarget{}, nil)
	up.q = q
	q.Add("first.txt", 1, content("1"))

	sum, err := q.SubmitAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Total() != 1 {
		t.Errorf("batch should only cover its snapshot, got %d", sum.Total())
	}
	tasks := q.Tasks()
	if len(tasks) != 1 || tasks[0].Name != "late.txt" {
		t.Errorf("expected late task to remain, got %+v", tasks)
	}
}

func TestAddFile(t *testing.T) {
	logging.InitNop()
	dir := t.TempDir()
	path := filepath.Join(dir, "report.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	up := &serialUploader{}
	q := NewQueue(up, &fakeTarget{}, nil)
	task, err := q.AddFile(path)
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if task.Name != "report.txt" || task.Size != 5 {
		t.Errorf("unexpected task %+v", task)
	}
	if _, err := q.AddFile(dir); err == nil {
		t.Error("expected error for directory")
	}
	if _, err := q.AddFile(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}

	sum, _ := q.SubmitAll(context.Background())
	if len(sum.Succeeded) != 1 || sum.Succeeded[0].Bytes != 5 {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestOpenFailureReported(t *testing.T) {
	logging.InitNop()
	up := &serialUploader{}
	q := NewQueue(up, &fakeTarget{}, nil)
	q.Add("gone.txt", 1, func() (io.ReadCloser, error) { return nil, os.ErrNotExist })
	q.Add("ok.txt", 1, content("ok"))

	sum, _ := q.SubmitAll(context.Background())
	if len(sum.Failed) != 1 || !errors.Is(sum.Failed[0].Err, os.ErrNotExist) {
		t.Errorf("unexpected failures %+v", sum.Failed)
	}
	if len(up.order) != 1 || up.order[0] != "ok.txt" {
		t.Errorf("unexpected uploads %v", up.order)
	}
}

// movingUploader changes the target folder after the first upload and
// records where each file went.
type movingUploader struct {
	target  *fakeTarget
	folders []string
}

func (m *movingUploader) Upload(_ context.Context, folder, name string, r io.Reader) (*protocol.UploadResponse, error) {
	io.Copy(io.Discard, r)
	m.folders = append(m.folders, folder)
	m.target.folder = "elsewhere"
	return &protocol.UploadResponse{Filename: name}, nil
}

func TestBatchUploadsIntoStartingFolder(t *testing.T) {
	logging.InitNop()
	target := &fakeTarget{folder: "docs"}
	up := &movingUploader{target: target}
	q := NewQueue(up, target, nil)
	for _, n := range []string{"1.txt", "2.txt", "3.txt"} {
		q.Add(n, 1, content(n))
	}

	if _, err := q.SubmitAll(context.Background()); err != nil {
		t.Fatalf("SubmitAll: %v", err)
	}
	if got := strings.Join(up.folders, ","); got != "docs,docs,docs" {
		t.Errorf("uploads went to %s, want docs for every file", got)
	}
}
