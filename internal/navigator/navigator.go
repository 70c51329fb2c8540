// Package navigator tracks the current remote folder and its breadcrumbs.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ayxkaddd/FilesBoard/internal/logging"
)

// ErrInvalidPath is returned for paths that try to leave the store root.
var ErrInvalidPath = errors.New("invalid folder path")

// FolderPath is an ordered list of non-empty segments. The root is empty.
type FolderPath []string

// ParsePath splits p on "/" and drops empty and "." segments.
func ParsePath(p string) (FolderPath, error) {
	var segs FolderPath
	for _, s := range strings.Split(p, "/") {
		switch s {
		case "", ".":
			continue
		case "..":
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
		segs = append(segs, s)
	}
	return segs, nil
}

// String returns the path in the server's folder query form.
func (p FolderPath) String() string {
	return strings.Join(p, "/")
}

// IsRoot reports whether p is the store root.
func (p FolderPath) IsRoot() bool {
	return len(p) == 0
}

// Parent returns p without its last segment. The root is its own parent.
func (p FolderPath) Parent() FolderPath {
	if len(p) == 0 {
		return nil
	}
	return p.clone()[:len(p)-1]
}

func (p FolderPath) clone() FolderPath {
	if len(p) == 0 {
		return nil
	}
	out := make(FolderPath, len(p))
	copy(out, p)
	return out
}

// Crumb is one clickable breadcrumb.
type Crumb struct {
	Label  string
	Target string
}

// RootLabel is the label of the always-present root crumb.
const RootLabel = "/"

// Breadcrumbs returns the root crumb followed by one crumb per segment;
// crumb k targets the path formed by the first k segments.
func Breadcrumbs(p FolderPath) []Crumb {
	crumbs := make([]Crumb, 0, len(p)+1)
	crumbs = append(crumbs, Crumb{Label: RootLabel, Target: ""})
	for k := 1; k <= len(p); k++ {
		crumbs = append(crumbs, Crumb{
			Label:  p[k-1],
			Target: strings.Join(p[:k], "/"),
		})
	}
	return crumbs
}

// Reloader loads a folder listing tagged with a navigation generation.
type Reloader interface {
	Load(ctx context.Context, folder string, gen uint64) error
}

// Navigator owns the current folder of one session.
type Navigator struct {
	reloader Reloader

	mu   sync.Mutex
	path FolderPath
	gen  uint64
}

// New creates a navigator positioned at the root.
func New(r Reloader) *Navigator {
	return &Navigator{reloader: r}
}

// Navigate replaces the current path unconditionally and reloads it.
// Whether the folder exists is only discovered by the load.
func (n *Navigator) Navigate(ctx context.Context, p FolderPath) error {
	n.mu.Lock()
	n.path = p.clone()
	n.gen++
	gen := n.gen
	n.mu.Unlock()

	logging.Debug("navigate",
		logging.String("folder", p.String()),
		logging.Any("generation", gen),
	)
	return n.reloader.Load(ctx, p.String(), gen)
}

// NavigateTo parses p and navigates to it.
func (n *Navigator) NavigateTo(ctx context.Context, p string) error {
	fp, err := ParsePath(p)
	if err != nil {
		return err
	}
	return n.Navigate(ctx, fp)
}

// Enter navigates into a child of the current folder.
func (n *Navigator) Enter(ctx context.Context, name string) error {
	child, err := ParsePath(name)
	if err != nil {
		return err
	}
	if len(child) == 0 {
		return fmt.Errorf("%w: empty folder name", ErrInvalidPath)
	}
	return n.Navigate(ctx, append(n.Current(), child...))
}

// Up navigates to the parent folder.
func (n *Navigator) Up(ctx context.Context) error {
	return n.Navigate(ctx, n.Current().Parent())
}

// Breadcrumb navigates to crumb k of the current path (0 is the root).
func (n *Navigator) Breadcrumb(ctx context.Context, k int) error {
	cur := n.Current()
	if k < 0 || k > len(cur) {
		return fmt.Errorf("breadcrumb %d out of range [0,%d]", k, len(cur))
	}
	return n.Navigate(ctx, cur[:k])
}

// Reload reloads the current folder under a fresh generation.
func (n *Navigator) Reload(ctx context.Context) error {
	return n.Navigate(ctx, n.Current())
}

// Current returns a copy of the current path.
func (n *Navigator) Current() FolderPath {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path.clone()
}

// Folder returns the current path in query form.
func (n *Navigator) Folder() string {
	return n.Current().String()
}

// Breadcrumbs returns the crumbs of the current path.
func (n *Navigator) Breadcrumbs() []Crumb {
	return Breadcrumbs(n.Current())
}

// Generation returns the generation of the latest navigation.
func (n *Navigator) Generation() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gen
}
