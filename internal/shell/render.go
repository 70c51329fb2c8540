package shell

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ayxkaddd/FilesBoard/internal/cache"
	"github.com/ayxkaddd/FilesBoard/internal/navigator"
	"github.com/ayxkaddd/FilesBoard/internal/notify"
	"github.com/ayxkaddd/FilesBoard/internal/preview"
	"github.com/ayxkaddd/FilesBoard/internal/upload"
	"github.com/ayxkaddd/FilesBoard/pkg/models"
)

// glyphs maps extensions to a short marker. Unknown extensions fall back to
// the kind glyph.
var glyphs = map[string]string{
	"pdf":  "[pdf]",
	"doc":  "[doc]",
	"docx": "[doc]",
	"xls":  "[xls]",
	"xlsx": "[xls]",
	"ppt":  "[ppt]",
	"pptx": "[ppt]",
	"zip":  "[zip]",
	"rar":  "[zip]",
	"exe":  "[exe]",
}

var kindGlyphs = map[models.Kind]string{
	models.KindFolder: "[dir]",
	models.KindImage:  "[img]",
	models.KindVideo:  "[vid]",
	models.KindText:   "[txt]",
	models.KindOther:  "[---]",
}

// Glyph returns the marker shown in front of an entry.
func Glyph(e models.FileEntry) string {
	if g, ok := glyphs[e.Extension]; ok {
		return g
	}
	return kindGlyphs[e.Kind]
}

type styles struct {
	header  lipgloss.Style
	crumb   lipgloss.Style
	folder  lipgloss.Style
	file    lipgloss.Style
	glyph   lipgloss.Style
	recent  lipgloss.Style
	faded   lipgloss.Style
	muted   lipgloss.Style
	info    lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FFFF")),
		crumb:   r.NewStyle().Foreground(lipgloss.Color("#4A90E2")),
		folder:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#3498DB")),
		file:    r.NewStyle().Foreground(lipgloss.Color("#FFFFFF")),
		glyph:   r.NewStyle().Foreground(lipgloss.Color("#808080")).Width(6),
		recent:  r.NewStyle().Foreground(lipgloss.Color("#FFFFFF")),
		faded:   r.NewStyle().Foreground(lipgloss.Color("#9CA3AF")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("#808080")),
		info:    r.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		success: r.NewStyle().Foreground(lipgloss.Color("#00FF80")),
		failure: r.NewStyle().Foreground(lipgloss.Color("#FF0000")),
	}
}

// renderer prints core data to a terminal.
type renderer struct {
	out io.Writer
	st  styles
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{out: out, st: newStyles(lipgloss.NewRenderer(out))}
}

func (r *renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *renderer) breadcrumbs(crumbs []navigator.Crumb) {
	parts := make([]string, len(crumbs))
	for i, c := range crumbs {
		parts[i] = r.st.crumb.Render(fmt.Sprintf("%d:%s", i, c.Label))
	}
	r.printf("%s\n", strings.Join(parts, r.st.muted.Render(" > ")))
}

func (r *renderer) listing(crumbs []navigator.Crumb, entries []models.FileEntry) {
	r.breadcrumbs(crumbs)
	if len(entries) == 0 {
		r.printf("%s\n", r.st.muted.Render("No files found"))
		return
	}
	for _, e := range entries {
		name := r.st.file.Render(e.Name)
		if e.IsFolder() {
			name = r.st.folder.Render(e.Name + "/")
		}
		r.printf("%s%s\n", r.st.glyph.Render(Glyph(e)), name)
	}
	r.printf("%s\n", r.st.muted.Render(fmt.Sprintf("%d entries", len(entries))))
}

// preview prints the first RecentLines at full emphasis and the rest faded.
func (r *renderer) preview(name string, res preview.Result) {
	r.printf("%s\n", r.st.header.Render(name))
	if !res.Available {
		r.printf("%s\n", r.st.muted.Render("Preview not available"))
		return
	}
	for _, line := range res.Lines {
		style := r.st.faded
		if line.Recent {
			style = r.st.recent
		}
		r.printf("  %s\n", style.Render(line.Text))
	}
}

func (r *renderer) queue(tasks []upload.Task) {
	if len(tasks) == 0 {
		r.printf("%s\n", r.st.muted.Render("Upload queue is empty"))
		return
	}
	for i, t := range tasks {
		r.printf("%2d. %s %s %s\n", i+1, t.Name,
			r.st.muted.Render(fmt.Sprintf("(%d bytes)", t.Size)),
			r.st.muted.Render(t.ID))
	}
}

func (r *renderer) cache(dir string, entries []cache.Entry, size, maxSize int64) {
	r.printf("%s\n", r.st.header.Render(dir))
	if len(entries) == 0 {
		r.printf("%s\n", r.st.muted.Render("No cached files"))
	}
	for _, e := range entries {
		r.printf("  %s %s\n", e.Key, r.st.muted.Render(fmt.Sprintf("(%d bytes)", e.Size)))
	}
	r.printf("%s\n", r.st.muted.Render(fmt.Sprintf("%d of %d bytes used", size, maxSize)))
}

func (r *renderer) notice(n notify.Notice) {
	style := r.st.info
	switch n.Level {
	case notify.LevelSuccess:
		style = r.st.success
	case notify.LevelError:
		style = r.st.failure
	}
	r.printf("%s\n", style.Render(n.Message))
}

func (r *renderer) link(l models.PublicLink) {
	r.printf("%s\n", r.st.success.Render(l.ShortURL))
	if !l.ExpiresAt.IsZero() {
		r.printf("%s\n", r.st.muted.Render("expires "+l.ExpiresAt.Local().Format(time.Kitchen)))
	}
}

func (r *renderer) failure(err error) {
	r.printf("%s\n", r.st.failure.Render("Error: "+err.Error()))
}
