// Package sharelink mints short public links to single files.
package sharelink

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/ayxkaddd/FilesBoard/internal/logging"
	"github.com/ayxkaddd/FilesBoard/internal/metrics"
	"github.com/ayxkaddd/FilesBoard/internal/notify"
	"github.com/ayxkaddd/FilesBoard/pkg/client"
	"github.com/ayxkaddd/FilesBoard/pkg/models"
)

// Minter is the server side of link creation.
type Minter interface {
	GenerateTempToken(ctx context.Context, folder, name string) (string, error)
	MakeShort(ctx context.Context, target string) (string, error)
}

// Clipboard receives finished links.
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard writes to the desktop clipboard.
type SystemClipboard struct{}

// WriteAll implements Clipboard.
func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard unsupported on this system")
	}
	return clipboard.WriteAll(text)
}

// Service creates public links.
type Service struct {
	minter    Minter
	origin    string
	clipboard Clipboard
	notifier  notify.Notifier
}

// NewService creates a link service. origin prefixes public and short URLs.
// A nil clipboard skips the copy step.
func NewService(m Minter, origin string, cb Clipboard, n notify.Notifier) *Service {
	if n == nil {
		n = notify.Discard
	}
	return &Service{
		minter:    m,
		origin:    strings.TrimSuffix(origin, "/"),
		clipboard: cb,
		notifier:  n,
	}
}

// CreateLink mints a temp token for name, shortens the public URL that
// embeds it and copies the result to the clipboard. Either server step
// failing aborts with no link and no clipboard write.
func (s *Service) CreateLink(ctx context.Context, name, folder string) (models.PublicLink, error) {
	link, err := s.mint(ctx, name, folder)
	metrics.RecordShareLink(err == nil)
	if err != nil {
		logging.Warn("public link failed",
			logging.String("name", name),
			logging.String("folder", folder),
			logging.Err(err),
		)
		return models.PublicLink{}, fmt.Errorf("generate public link: %w", err)
	}

	logging.Info("public link created",
		logging.String("name", name),
		logging.String("url", link.ShortURL),
	)
	s.copy(link.ShortURL)
	return link, nil
}

func (s *Service) mint(ctx context.Context, name, folder string) (models.PublicLink, error) {
	temp, err := s.minter.GenerateTempToken(ctx, folder, name)
	if err != nil {
		return models.PublicLink{}, fmt.Errorf("temp token: %w", err)
	}

	public := client.PublicFileURL(s.origin, name, folder, temp)
	short, err := s.minter.MakeShort(ctx, public)
	if err != nil {
		return models.PublicLink{}, fmt.Errorf("shorten: %w", err)
	}

	link := models.PublicLink{TempToken: temp, ShortURL: s.absolute(short)}
	if exp, _, err := client.TokenClaims(temp); err == nil {
		link.ExpiresAt = exp
	}
	return link, nil
}

// absolute prefixes server-relative short paths with the origin.
func (s *Service) absolute(short string) string {
	if strings.HasPrefix(short, "http://") || strings.HasPrefix(short, "https://") {
		return short
	}
	if !strings.HasPrefix(short, "/") {
		short = "/" + short
	}
	return s.origin + short
}

func (s *Service) copy(text string) {
	if s.clipboard == nil {
		return
	}
	if err := s.clipboard.WriteAll(text); err != nil {
		logging.Warn("clipboard write failed", logging.Err(err))
		notify.Info(s.notifier, "Link ready, copy it manually: %s", text)
		return
	}
	notify.Info(s.notifier, "Short URL: %s was copied to the clipboard.", text)
}
