// Package explorer wires one browsing session together: transport, folder
// navigation, listing, previews, uploads, share links and mutations. Every
// user-facing failure is also published as an error notice.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ayxkaddd/FilesBoard/internal/cache"
	"github.com/ayxkaddd/FilesBoard/internal/catalog"
	"github.com/ayxkaddd/FilesBoard/internal/logging"
	"github.com/ayxkaddd/FilesBoard/internal/navigator"
	"github.com/ayxkaddd/FilesBoard/internal/notify"
	"github.com/ayxkaddd/FilesBoard/internal/preview"
	"github.com/ayxkaddd/FilesBoard/internal/session"
	"github.com/ayxkaddd/FilesBoard/internal/sharelink"
	"github.com/ayxkaddd/FilesBoard/internal/upload"
	"github.com/ayxkaddd/FilesBoard/pkg/client"
	"github.com/ayxkaddd/FilesBoard/pkg/models"
)

// Outcome is the user's answer to a confirmation prompt.
type Outcome struct {
	Confirmed bool
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (Outcome, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (Outcome, error)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (Outcome, error) {
	return f(ctx, prompt)
}

// Options configures an Explorer.
type Options struct {
	Server    string
	Origin    string // defaults to Server
	TokenFile string // empty disables token persistence
	Timeout   time.Duration

	Clipboard sharelink.Clipboard
	Cache     *cache.Cache
	Notifier  notify.Notifier

	// Transport overrides the HTTP round tripper (tests).
	Transport http.RoundTripper
}

// Explorer is the controller of one session.
type Explorer struct {
	Session  *session.Session
	Client   *client.Client
	Nav      *navigator.Navigator
	Catalog  *catalog.Catalog
	Previews *preview.Loader
	Uploads  *upload.Queue
	Links    *sharelink.Service
	Cache    *cache.Cache

	notifier notify.Notifier
}

// New builds an Explorer positioned at the root. Nothing is loaded yet.
func New(opts Options) *Explorer {
	n := opts.Notifier
	if n == nil {
		n = notify.Discard
	}
	origin := opts.Origin
	if origin == "" {
		origin = opts.Server
	}

	sess := session.New(opts.Server, opts.TokenFile)
	c := client.New(client.Config{
		BaseURL:        opts.Server,
		Timeout:        opts.Timeout,
		Tokens:         sess,
		OnUnauthorized: sess.Expire,
		Transport:      opts.Transport,
	})
	cat := catalog.New(c)
	nav := navigator.New(cat)

	return &Explorer{
		Session:  sess,
		Client:   c,
		Nav:      nav,
		Catalog:  cat,
		Previews: preview.NewLoader(c),
		Uploads:  upload.NewQueue(c, nav, n),
		Links:    sharelink.NewService(c, origin, opts.Clipboard, n),
		Cache:    opts.Cache,
		notifier: n,
	}
}

// Login authenticates the session.
func (e *Explorer) Login(ctx context.Context, username, password string) error {
	if err := e.Session.Login(ctx, e.Client, username, password); err != nil {
		cause := errors.Unwrap(err)
		if cause == nil {
			cause = err
		}
		notify.Error(e.notifier, "Login failed: %v", cause)
		return err
	}
	return nil
}

// Logout forgets the session token.
func (e *Explorer) Logout() error {
	return e.Session.Logout()
}

// Navigate loads path. A stale listing is not reported.
func (e *Explorer) Navigate(ctx context.Context, path string) error {
	return e.loaded(e.Nav.NavigateTo(ctx, path))
}

// Enter opens a child folder of the current folder.
func (e *Explorer) Enter(ctx context.Context, name string) error {
	return e.loaded(e.Nav.Enter(ctx, name))
}

// Up opens the parent folder.
func (e *Explorer) Up(ctx context.Context) error {
	return e.loaded(e.Nav.Up(ctx))
}

// Breadcrumb opens crumb k of the current path.
func (e *Explorer) Breadcrumb(ctx context.Context, k int) error {
	return e.loaded(e.Nav.Breadcrumb(ctx, k))
}

// Reload reloads the current folder.
func (e *Explorer) Reload(ctx context.Context) error {
	return e.loaded(e.Nav.Reload(ctx))
}

func (e *Explorer) loaded(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, catalog.ErrStale):
		return nil
	}
	notify.Error(e.notifier, "Failed to load files: %v", err)
	return err
}

// Entries returns the current listing.
func (e *Explorer) Entries() []models.FileEntry {
	return e.Catalog.Entries()
}

// Folder returns the current folder.
func (e *Explorer) Folder() string {
	return e.Nav.Folder()
}

// Preview loads the text preview of name in the current folder. Listed
// entries that are not text get no preview and no request.
func (e *Explorer) Preview(ctx context.Context, name string) preview.Result {
	if entry, ok := e.Catalog.Lookup(name); ok && !entry.Previewable() {
		return preview.Result{}
	}
	return e.Previews.Load(ctx, name, e.Folder())
}

// Share creates a public link to name in the current folder.
func (e *Explorer) Share(ctx context.Context, name string) (models.PublicLink, error) {
	link, err := e.Links.CreateLink(ctx, name, e.Folder())
	if err != nil {
		notify.Error(e.notifier, "Failed to generate public link: %v", errors.Unwrap(err))
		return models.PublicLink{}, err
	}
	return link, nil
}

// SubmitUploads submits the upload queue into the current folder.
func (e *Explorer) SubmitUploads(ctx context.Context) (upload.Summary, error) {
	sum, err := e.Uploads.SubmitAll(ctx)
	switch {
	case err == nil, errors.Is(err, upload.ErrEmpty):
	case errors.Is(err, catalog.ErrStale):
		// A newer navigation owns the listing now.
		return sum, nil
	default:
		notify.Error(e.notifier, "Failed to load files: %v", errors.Unwrap(err))
	}
	return sum, err
}

// CreateFolder creates name inside the current folder.
func (e *Explorer) CreateFolder(ctx context.Context, name string) error {
	if err := e.Client.CreateFolder(ctx, e.Folder(), name); err != nil {
		notify.Error(e.notifier, "Folder creation failed: %v", err)
		return err
	}
	notify.Success(e.notifier, "Folder %s created successfully", name)
	return e.reload(ctx)
}

// Rename renames oldName to newName inside the current folder.
func (e *Explorer) Rename(ctx context.Context, oldName, newName string) error {
	if err := e.Client.Rename(ctx, e.Folder(), oldName, newName); err != nil {
		notify.Error(e.notifier, "Rename failed: %v", err)
		return err
	}
	notify.Success(e.notifier, "%s renamed to %s", oldName, newName)
	return e.reload(ctx)
}

// Delete removes name from the current folder once the user confirms.
// A declined confirmation returns (false, nil) without any request; so does
// a nil Confirmer.
func (e *Explorer) Delete(ctx context.Context, name string, c Confirmer) (bool, error) {
	if c == nil {
		logging.Debug("delete without confirmer", logging.String("name", name))
		return false, nil
	}
	outcome, err := c.Confirm(ctx, fmt.Sprintf("Are you sure you want to delete %s?", name))
	if err != nil {
		return false, fmt.Errorf("confirm delete: %w", err)
	}
	if !outcome.Confirmed {
		logging.Debug("delete declined", logging.String("name", name))
		return false, nil
	}

	if err := e.Client.Delete(ctx, e.Folder(), name); err != nil {
		notify.Error(e.notifier, "File deletion failed: %v", err)
		return false, err
	}
	notify.Success(e.notifier, "File deleted successfully")
	if e.Cache != nil {
		e.Cache.Evict(cache.Key(e.Folder(), name))
	}
	return true, e.reload(ctx)
}

// reload refreshes the listing after a successful mutation.
func (e *Explorer) reload(ctx context.Context) error {
	if err := e.Reload(ctx); err != nil {
		return fmt.Errorf("reload listing: %w", err)
	}
	return nil
}

// RawFileURL returns the token-bearing URL of name in the current folder.
func (e *Explorer) RawFileURL(name string) string {
	return e.Client.RawFileURL(name, e.Folder())
}

// Download fetches name from the current folder into the download cache
// and returns its local path. A cached copy is reused.
func (e *Explorer) Download(ctx context.Context, name string) (string, error) {
	if e.Cache == nil {
		return "", errors.New("download cache not configured")
	}
	folder := e.Folder()
	key := cache.Key(folder, name)
	if path, ok := e.Cache.Get(key); ok {
		return path, nil
	}

	rc, size, err := e.Client.Download(ctx, name, folder)
	if err != nil {
		notify.Error(e.notifier, "Download of %s failed: %v", name, err)
		return "", err
	}
	defer rc.Close()

	path, err := e.Cache.Put(key, rc, size)
	if err != nil {
		notify.Error(e.notifier, "Download of %s failed: %v", name, err)
		return "", err
	}
	logging.Debug("downloaded", logging.String("key", key), logging.String("path", path))
	return path, nil
}
