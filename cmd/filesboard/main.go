// FilesBoard terminal client.
//
// Browses a remote file store: folders with breadcrumbs, text previews,
// queued uploads, public short links, folder creation, renames and
// confirmed deletes.
//
// Sub-commands:
//
//	filesboard [shell]            Interactive shell (default)
//	filesboard login [-u user]    Log in and save the token
//	filesboard logout             Forget the saved token
//	filesboard status             Show session and cache status
//
// Configuration comes from .env, the YAML file named by FILESBOARD_CONFIG
// and FILESBOARD_* environment variables.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/ayxkaddd/FilesBoard/internal/cache"
	"github.com/ayxkaddd/FilesBoard/internal/config"
	"github.com/ayxkaddd/FilesBoard/internal/explorer"
	"github.com/ayxkaddd/FilesBoard/internal/logging"
	"github.com/ayxkaddd/FilesBoard/internal/metrics"
	"github.com/ayxkaddd/FilesBoard/internal/notify"
	"github.com/ayxkaddd/FilesBoard/internal/session"
	"github.com/ayxkaddd/FilesBoard/internal/sharelink"
	"github.com/ayxkaddd/FilesBoard/internal/shell"
	"github.com/ayxkaddd/FilesBoard/pkg/client"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: init logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	args := os.Args[1:]
	cmd := "shell"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "shell":
		err = cmdShell(cfg, args)
	case "login":
		err = cmdLogin(cfg, args)
	case "logout":
		err = cmdLogout(cfg, args)
	case "status":
		err = cmdStatus(cfg, args)
	default:
		err = fmt.Errorf("unknown command %q (shell, login, logout, status)", cmd)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logging.Sync()
		os.Exit(1)
	}
}

func newExplorer(cfg *config.Config, c *cache.Cache, n notify.Notifier) *explorer.Explorer {
	return explorer.New(explorer.Options{
		Server:    cfg.Server,
		Origin:    cfg.Origin,
		TokenFile: cfg.TokenFile,
		Timeout:   cfg.Timeout,
		Clipboard: sharelink.SystemClipboard{},
		Cache:     c,
		Notifier:  n,
	})
}

// restore installs FILESBOARD_TOKEN or the saved token file.
func restore(cfg *config.Config, sess *session.Session) {
	if cfg.Token != "" {
		sess.SetToken(cfg.Token)
		return
	}
	if err := sess.Restore(); err != nil && !errors.Is(err, session.ErrNoToken) {
		logging.Warn("could not restore saved token", logging.Err(err))
	}
}

func cmdShell(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("shell", flag.ExitOnError)
	folder := fs.String("folder", "", "Folder to open first")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr)
	}

	c, err := cache.New(cfg.CacheDir, cfg.CacheMaxBytes)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	notices := notify.NewBroadcaster()
	ex := newExplorer(cfg, c, notices)
	restore(cfg, ex.Session)

	logging.Info("starting shell",
		logging.String("server", cfg.Server),
		logging.String("cache", c.Dir()),
	)
	sh := shell.New(ex, notices, os.Stdin, os.Stdout, terminalPassword, openDesktop)
	if *folder != "" {
		sh.StartIn(*folder)
	}
	if err := sh.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func cmdLogin(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("u", "", "Username (prompted when empty)")
	fs.Parse(args)

	in := bufio.NewReader(os.Stdin)
	if *username == "" {
		fmt.Print("Username: ")
		line, _ := in.ReadString('\n')
		*username = strings.TrimSpace(line)
	}
	if *username == "" {
		return errors.New("username is required")
	}
	password, err := readPassword(in, "Password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	ex := newExplorer(cfg, nil, notify.Discard)
	if err := ex.Login(context.Background(), *username, password); err != nil {
		return err
	}
	fmt.Printf("Login successful! Logged in as %s. Token saved to %s\n", ex.Session.Username(), ex.Session.TokenPath())
	return nil
}

func cmdLogout(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	fs.Parse(args)

	sess := session.New(cfg.Server, cfg.TokenFile)
	if err := sess.Logout(); err != nil {
		return fmt.Errorf("delete token file: %w", err)
	}
	fmt.Println("Logged out successfully.")
	return nil
}

func cmdStatus(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.Parse(args)

	fmt.Printf("Server:          %s\n", cfg.Server)
	fmt.Printf("Token file:      %s\n", cfg.TokenFile)
	switch tf, err := client.LoadToken(cfg.TokenFile); {
	case err != nil:
		fmt.Printf("Session:         not logged in\n")
	case tf.IsExpired(0):
		fmt.Printf("Session:         %s (expired %s)\n", tf.Username, tf.ExpiresAt.Local().Format(time.RFC1123))
	case tf.ExpiresAt.IsZero():
		fmt.Printf("Session:         %s\n", tf.Username)
	default:
		fmt.Printf("Session:         %s (expires %s)\n", tf.Username, tf.ExpiresAt.Local().Format(time.RFC1123))
	}

	c, err := cache.New(cfg.CacheDir, cfg.CacheMaxBytes)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	size, maxSize, count := c.Stats()
	fmt.Printf("Cache directory: %s\n", c.Dir())
	fmt.Printf("Cached files:    %d\n", count)
	fmt.Printf("Cache size:      %d bytes\n", size)
	fmt.Printf("Max size:        %d bytes\n", maxSize)
	return nil
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.Info("metrics listening", logging.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error("metrics server failed", logging.Err(err))
	}
}

// readPassword reads without echo on a terminal, or one line from in when
// input is piped.
func readPassword(in *bufio.Reader, prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Print(prompt)
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	return terminalPassword(prompt)
}

// terminalPassword is the shell's prompt. The shell owns buffered stdin,
// so piped input cannot be read here.
func terminalPassword(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("password prompt needs a terminal, use: filesboard login")
	}
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// openDesktop hands a local file to the platform's default application.
func openDesktop(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	return cmd.Start()
}
