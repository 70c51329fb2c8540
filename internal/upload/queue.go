// Package upload queues selected files and submits them one at a time.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayxkaddd/FilesBoard/internal/logging"
	"github.com/ayxkaddd/FilesBoard/internal/metrics"
	"github.com/ayxkaddd/FilesBoard/internal/notify"
	"github.com/ayxkaddd/FilesBoard/pkg/protocol"
)

// ErrEmpty is returned by SubmitAll when nothing is queued.
var ErrEmpty = errors.New("no files selected")

// Task is a file pending upload.
type Task struct {
	ID   string
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// Result is the outcome of one task.
type Result struct {
	Task     Task
	Bytes    int64
	Duration time.Duration
	Err      error
}

// Summary reports a finished batch.
type Summary struct {
	Succeeded []Result
	Failed    []Result
}

// Total returns how many tasks the batch attempted.
func (s Summary) Total() int {
	return len(s.Succeeded) + len(s.Failed)
}

// Uploader sends one file into a folder.
type Uploader interface {
	Upload(ctx context.Context, folder, name string, r io.Reader) (*protocol.UploadResponse, error)
}

// Target is the folder uploads go to and the listing to refresh afterwards.
type Target interface {
	Folder() string
	Reload(ctx context.Context) error
}

// Queue is an ordered list of pending uploads.
type Queue struct {
	uploader Uploader
	target   Target
	notifier notify.Notifier

	mu    sync.Mutex
	tasks []Task

	// batch serializes SubmitAll calls.
	batch sync.Mutex
}

// NewQueue creates an empty queue.
func NewQueue(u Uploader, t Target, n notify.Notifier) *Queue {
	if n == nil {
		n = notify.Discard
	}
	return &Queue{uploader: u, target: t, notifier: n}
}

// Add queues a file. Nothing is sent until SubmitAll.
func (q *Queue) Add(name string, size int64, open func() (io.ReadCloser, error)) Task {
	task := Task{
		ID:   uuid.NewString(),
		Name: name,
		Size: size,
		Open: open,
	}
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
	return task
}

// AddFile queues a local file under its base name.
func (q *Queue) AddFile(path string) (Task, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Task{}, err
	}
	if info.IsDir() {
		return Task{}, fmt.Errorf("%s is a directory", path)
	}
	return q.Add(filepath.Base(path), info.Size(), func() (io.ReadCloser, error) {
		return os.Open(path)
	}), nil
}

// Remove discards a pending task. Unknown ids are ignored.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, t := range q.tasks {
		if t.ID == id {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			return true
		}
	}
	return false
}

// Tasks returns the pending tasks in insertion order.
func (q *Queue) Tasks() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Task, len(q.tasks))
	copy(out, q.tasks)
	return out
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// SubmitAll uploads every queued task in insertion order, each awaited
// before the next starts. The whole batch goes to the folder that was
// current when it started. A failing task never stops the batch. Afterwards
// the submitted tasks are dropped and the listing reloaded; tasks added
// meanwhile stay queued.
func (q *Queue) SubmitAll(ctx context.Context) (Summary, error) {
	q.batch.Lock()
	defer q.batch.Unlock()

	batch := q.Tasks()
	if len(batch) == 0 {
		notify.Error(q.notifier, "No files selected")
		return Summary{}, ErrEmpty
	}

	folder := q.target.Folder()
	logging.Info("upload batch started",
		logging.Int("tasks", len(batch)),
		logging.String("folder", folder),
	)
	var sum Summary
	for _, task := range batch {
		res := q.submit(ctx, folder, task)
		if res.Err != nil {
			sum.Failed = append(sum.Failed, res)
		} else {
			sum.Succeeded = append(sum.Succeeded, res)
		}
	}

	q.drop(batch)
	logging.Info("upload batch finished",
		logging.Int("succeeded", len(sum.Succeeded)),
		logging.Int("failed", len(sum.Failed)),
	)

	if err := q.target.Reload(ctx); err != nil {
		return sum, fmt.Errorf("reload listing: %w", err)
	}
	return sum, nil
}

func (q *Queue) submit(ctx context.Context, folder string, task Task) Result {
	notify.Info(q.notifier, "Uploading %s, please wait...", task.Name)
	start := time.Now()
	res := Result{Task: task}

	rc, err := task.Open()
	if err == nil {
		cr := &countingReader{r: rc}
		_, err = q.uploader.Upload(ctx, folder, task.Name, cr)
		rc.Close()
		res.Bytes = cr.n
	}
	res.Duration = time.Since(start)
	res.Err = err

	metrics.RecordUpload(res.Bytes, err == nil)
	if err != nil {
		logging.Warn("upload failed",
			logging.String("name", task.Name),
			logging.Err(err),
		)
		notify.Error(q.notifier, "%s upload failed: %v", task.Name, err)
		return res
	}
	logging.Debug("upload complete",
		logging.String("name", task.Name),
		logging.Int64("bytes", res.Bytes),
		logging.Duration("duration", res.Duration),
	)
	notify.Success(q.notifier, "%s uploaded successfully", task.Name)
	return res
}

// drop removes the tasks of a finished batch.
func (q *Queue) drop(batch []Task) {
	done := make(map[string]bool, len(batch))
	for _, t := range batch {
		done[t.ID] = true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.tasks[:0]
	for _, t := range q.tasks {
		if !done[t.ID] {
			kept = append(kept, t)
		}
	}
	q.tasks = kept
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
