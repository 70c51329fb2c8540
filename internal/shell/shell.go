// Package shell is a line-oriented terminal front end. It turns typed
// commands into explorer calls and renders the results and notices.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ayxkaddd/FilesBoard/internal/explorer"
	"github.com/ayxkaddd/FilesBoard/internal/logging"
	"github.com/ayxkaddd/FilesBoard/internal/notify"
	"github.com/ayxkaddd/FilesBoard/internal/upload"
)

// errQuit ends the read loop.
var errQuit = errors.New("quit")

// PasswordFunc reads a password without echo.
type PasswordFunc func(prompt string) (string, error)

// Opener hands a local file or URL to the desktop. Optional.
type Opener func(target string) error

// Shell reads commands from in and writes output to out.
type Shell struct {
	ex       *explorer.Explorer
	notices  *notify.Broadcaster
	in       *bufio.Scanner
	out      io.Writer
	r        *renderer
	password PasswordFunc
	open     Opener
	start    string

	sub *notify.Subscription
	// errorShown is set once an error notice was rendered for the
	// running command.
	errorShown bool
}

type command struct {
	usage string
	help  string
	min   int
	run   func(ctx context.Context, s *Shell, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"ls":       {"ls", "reload and list the current folder", 0, cmdList},
		"cd":       {"cd <path|..|/>", "change folder (relative or /absolute)", 1, cmdCd},
		"up":       {"up", "go to the parent folder", 0, cmdUp},
		"crumb":    {"crumb <n>", "jump to breadcrumb n", 1, cmdCrumb},
		"pwd":      {"pwd", "show breadcrumbs", 0, cmdPwd},
		"mkdir":    {"mkdir <name>", "create a folder", 1, cmdMkdir},
		"mv":       {"mv <old> <new>", "rename a file", 2, cmdRename},
		"rm":       {"rm <name>", "delete a file or folder (asks first)", 1, cmdDelete},
		"add":      {"add <path>...", "queue local files for upload", 1, cmdAdd},
		"unqueue":  {"unqueue <n|id>", "drop a queued upload", 1, cmdUnqueue},
		"queue":    {"queue", "show queued uploads", 0, cmdQueue},
		"submit":   {"submit", "upload queued files one by one", 0, cmdSubmit},
		"cat":      {"cat <name>", "preview a text file", 1, cmdPreview},
		"share":    {"share <name>", "create a public short link", 1, cmdShare},
		"get":      {"get <name>", "download into the local cache", 1, cmdGet},
		"open":     {"open <name>", "download and open with the desktop", 1, cmdOpen},
		"url":      {"url <name>", "print the private raw URL", 1, cmdURL},
		"login":    {"login <username>", "log in again", 1, cmdLogin},
		"logout":   {"logout", "forget the saved token", 0, cmdLogout},
		"cache":    {"cache [clear]", "list or clear downloaded files", 0, cmdCache},
		"loglevel": {"loglevel <level>", "set log level (debug, info, warn, error)", 1, cmdLogLevel},
		"help":     {"help", "show this help", 0, cmdHelp},
		"quit":     {"quit", "leave the shell", 0, cmdQuit},
	}
	commands["exit"] = commands["quit"]
}

// New creates a shell over ex. notices must be the broadcaster ex publishes to.
func New(ex *explorer.Explorer, notices *notify.Broadcaster, in io.Reader, out io.Writer, password PasswordFunc, open Opener) *Shell {
	return &Shell{
		ex:       ex,
		notices:  notices,
		in:       bufio.NewScanner(in),
		out:      out,
		r:        newRenderer(out),
		password: password,
		open:     open,
	}
}

// StartIn makes Run open folder instead of the current one.
func (s *Shell) StartIn(folder string) {
	s.start = folder
}

// Run lists the starting folder and processes commands until EOF or quit.
func (s *Shell) Run(ctx context.Context) error {
	s.sub = s.notices.Subscribe()
	defer s.notices.Unsubscribe(s.sub)

	switch {
	case s.ex.Session.LoginRequired():
		s.r.printf("Not logged in. Use: login <username>\n")
	case s.start != "":
		s.dispatch(ctx, []string{"cd", "/" + strings.TrimPrefix(s.start, "/")})
	default:
		s.dispatch(ctx, []string{"ls"})
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if n := s.ex.Uploads.Len(); n > 0 {
			s.r.printf("/%s [%d queued]> ", s.ex.Folder(), n)
		} else {
			s.r.printf("/%s> ", s.ex.Folder())
		}
		if !s.in.Scan() {
			s.r.printf("\n")
			return s.in.Err()
		}
		if err := s.exec(ctx, s.in.Text()); errors.Is(err, errQuit) {
			return nil
		}
	}
}

// exec parses and runs one command line.
func (s *Shell) exec(ctx context.Context, line string) error {
	args, err := splitArgs(line)
	if err != nil {
		s.r.failure(err)
		return err
	}
	if len(args) == 0 {
		return nil
	}
	return s.dispatch(ctx, args)
}

// dispatch runs one parsed command and renders pending notices.
func (s *Shell) dispatch(ctx context.Context, args []string) error {
	var err error
	s.errorShown = false
	ctx = logging.WithRequestID(ctx, uuid.NewString())
	cmd, ok := commands[args[0]]
	switch {
	case !ok:
		err = fmt.Errorf("unknown command %q, try help", args[0])
	case len(args)-1 < cmd.min:
		err = fmt.Errorf("usage: %s", cmd.usage)
	default:
		logging.WithContext(ctx).Debug("shell command",
			logging.String("cmd", args[0]),
			logging.Int("args", len(args)-1),
		)
		err = cmd.run(ctx, s, args[1:])
	}
	if errors.Is(err, errQuit) {
		return err
	}

	s.drain()
	if err != nil && !s.errorShown {
		s.r.failure(err)
	}
	if s.ex.Session.LoginRequired() && args[0] != "login" && args[0] != "logout" {
		s.r.printf("Login required. Use: login <username>\n")
	}
	return err
}

// drain prints queued notices.
func (s *Shell) drain() {
	for _, n := range s.sub.Drain() {
		s.r.notice(n)
		if n.Level == notify.LevelError {
			s.errorShown = true
		}
	}
}

// follow renders notices as they arrive until the returned stop func is
// called. Nothing else may write output in between.
func (s *Shell) follow() (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case <-s.sub.Ready():
				s.drain()
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

// Confirm implements explorer.Confirmer by reading y/N from the input.
func (s *Shell) Confirm(_ context.Context, prompt string) (explorer.Outcome, error) {
	s.r.printf("%s [y/N] ", prompt)
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return explorer.Outcome{}, err
		}
		return explorer.Outcome{}, nil
	}
	answer := strings.ToLower(strings.TrimSpace(s.in.Text()))
	return explorer.Outcome{Confirmed: answer == "y" || answer == "yes"}, nil
}

// splitArgs splits on spaces; double quotes group words.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case (r == ' ' || r == '\t') && !inQuote:
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}

func cmdList(ctx context.Context, s *Shell, _ []string) error {
	if err := s.ex.Reload(ctx); err != nil {
		return err
	}
	s.r.listing(s.ex.Nav.Breadcrumbs(), s.ex.Entries())
	return nil
}

func cmdCd(ctx context.Context, s *Shell, args []string) error {
	var err error
	switch target := args[0]; {
	case target == "..":
		if s.ex.Nav.Current().IsRoot() {
			return errors.New("already at the root folder")
		}
		err = s.ex.Up(ctx)
	case strings.HasPrefix(target, "/"):
		err = s.ex.Navigate(ctx, target)
	default:
		err = s.ex.Enter(ctx, target)
	}
	if err != nil {
		return err
	}
	s.r.listing(s.ex.Nav.Breadcrumbs(), s.ex.Entries())
	return nil
}

func cmdUp(ctx context.Context, s *Shell, _ []string) error {
	return cmdCd(ctx, s, []string{".."})
}

func cmdCrumb(ctx context.Context, s *Shell, args []string) error {
	k, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("breadcrumb must be a number: %w", err)
	}
	if err := s.ex.Breadcrumb(ctx, k); err != nil {
		return err
	}
	s.r.listing(s.ex.Nav.Breadcrumbs(), s.ex.Entries())
	return nil
}

func cmdPwd(_ context.Context, s *Shell, _ []string) error {
	s.r.breadcrumbs(s.ex.Nav.Breadcrumbs())
	return nil
}

func cmdMkdir(ctx context.Context, s *Shell, args []string) error {
	return s.ex.CreateFolder(ctx, args[0])
}

func cmdRename(ctx context.Context, s *Shell, args []string) error {
	return s.ex.Rename(ctx, args[0], args[1])
}

func cmdDelete(ctx context.Context, s *Shell, args []string) error {
	deleted, err := s.ex.Delete(ctx, args[0], s)
	if err == nil && !deleted {
		s.r.printf("Cancelled\n")
	}
	return err
}

func cmdAdd(_ context.Context, s *Shell, args []string) error {
	var errs []error
	for _, path := range args {
		task, err := s.ex.Uploads.AddFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.r.printf("Queued %s\n", task.Name)
	}
	return errors.Join(errs...)
}

func cmdUnqueue(_ context.Context, s *Shell, args []string) error {
	id := args[0]
	if n, err := strconv.Atoi(id); err == nil {
		tasks := s.ex.Uploads.Tasks()
		if n < 1 || n > len(tasks) {
			return fmt.Errorf("no queued upload #%d", n)
		}
		id = tasks[n-1].ID
	}
	if !s.ex.Uploads.Remove(id) {
		return fmt.Errorf("no queued upload %s", id)
	}
	return nil
}

func cmdQueue(_ context.Context, s *Shell, _ []string) error {
	s.r.queue(s.ex.Uploads.Tasks())
	return nil
}

func cmdSubmit(ctx context.Context, s *Shell, _ []string) error {
	stop := s.follow()
	sum, err := s.ex.SubmitUploads(ctx)
	stop()
	if errors.Is(err, upload.ErrEmpty) {
		return err
	}
	s.drain()
	s.r.printf("%d uploaded, %d failed\n", len(sum.Succeeded), len(sum.Failed))
	if err != nil {
		return err
	}
	s.r.listing(s.ex.Nav.Breadcrumbs(), s.ex.Entries())
	return nil
}

func cmdPreview(ctx context.Context, s *Shell, args []string) error {
	s.r.preview(args[0], s.ex.Preview(ctx, args[0]))
	return nil
}

func cmdShare(ctx context.Context, s *Shell, args []string) error {
	link, err := s.ex.Share(ctx, args[0])
	if err != nil {
		return err
	}
	s.r.link(link)
	return nil
}

func cmdGet(ctx context.Context, s *Shell, args []string) error {
	path, err := s.ex.Download(ctx, args[0])
	if err != nil {
		return err
	}
	s.r.printf("Saved to %s\n", path)
	return nil
}

func cmdOpen(ctx context.Context, s *Shell, args []string) error {
	if s.open == nil {
		return errors.New("opening files is not supported here")
	}
	path, err := s.ex.Download(ctx, args[0])
	if err != nil {
		return err
	}
	return s.open(path)
}

func cmdURL(_ context.Context, s *Shell, args []string) error {
	s.r.printf("%s\n", s.ex.RawFileURL(args[0]))
	return nil
}

func cmdLogin(ctx context.Context, s *Shell, args []string) error {
	if s.password == nil {
		return errors.New("no password prompt available")
	}
	password, err := s.password("Password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if err := s.ex.Login(ctx, args[0], password); err != nil {
		return err
	}
	s.r.printf("Logged in as %s\n", args[0])
	return cmdList(ctx, s, nil)
}

func cmdLogout(_ context.Context, s *Shell, _ []string) error {
	if err := s.ex.Logout(); err != nil {
		return err
	}
	s.r.printf("Logged out\n")
	return nil
}

func cmdCache(_ context.Context, s *Shell, args []string) error {
	c := s.ex.Cache
	if c == nil {
		return errors.New("download cache not configured")
	}
	switch {
	case len(args) == 0:
		size, maxSize, _ := c.Stats()
		s.r.cache(c.Dir(), c.List(), size, maxSize)
		return nil
	case args[0] == "clear":
		s.r.printf("Removed %d cached files\n", c.Clear())
		return nil
	}
	return fmt.Errorf("usage: %s", commands["cache"].usage)
}

func cmdLogLevel(_ context.Context, s *Shell, args []string) error {
	if err := logging.SetLevel(args[0]); err != nil {
		return err
	}
	s.r.printf("Log level set to %s\n", args[0])
	return nil
}

func cmdHelp(_ context.Context, s *Shell, _ []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		if name != "exit" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands[name]
		s.r.printf("  %-18s %s\n", c.usage, s.r.st.muted.Render(c.help))
	}
	return nil
}

func cmdQuit(context.Context, *Shell, []string) error {
	return errQuit
}
