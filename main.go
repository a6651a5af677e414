package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/datathon-cli/internal/api"
	"github.com/isdelr/datathon-cli/internal/config"
	"github.com/isdelr/datathon-cli/internal/history"
	"github.com/isdelr/datathon-cli/internal/logger"
	"github.com/isdelr/datathon-cli/internal/render"
	"github.com/isdelr/datathon-cli/internal/session"
	"github.com/isdelr/datathon-cli/internal/stubserver"
	"github.com/isdelr/datathon-cli/internal/submit"
	"github.com/isdelr/datathon-cli/internal/watch"
)

const usageText = `datathon is a terminal client for the datathon scoring backend.

Usage:

  datathon <command> [flags]

Commands:

  login        authenticate and store the session token
  logout       forget the stored session
  whoami       show the logged-in user
  submit       validate and upload a prediction CSV
  leaderboard  show the top scores (use -watch to keep refreshing)
  scores       show your submissions and stats
  quota        show remaining submissions for today
  history      list locally recorded submissions
  stubserver   run the local scoring backend
  help         show this help

Environment:

  DATATHON_API_URL       backend base URL (default http://localhost:8089)
  DATATHON_CONFIG_DIR    session and history location (default OS config dir)
  DATATHON_LOG_LEVEL     log level (default warn)
  DATATHON_HTTP_TIMEOUT  request timeout such as 30s (default none)
`

// app bundles what every client command needs.
type app struct {
	cfg    *config.Config
	sess   *session.Session
	client *api.Client
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Init(cfg.LogLevel)

	sess, err := session.Load(cfg.ConfigDir)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:    cfg,
		sess:   sess,
		client: api.New(cfg.APIBaseURL, cfg.HTTPTimeout, sess),
	}, nil
}

func (a *app) requireAuth() error {
	if !a.sess.Authenticated() {
		return errors.New("not logged in (run: datathon login)")
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		fmt.Print(usageText)
		return
	}

	var err error
	if cmd == "stubserver" {
		err = cmdStubServer(args)
	} else {
		var a *app
		a, err = newApp()
		if err == nil {
			switch cmd {
			case "login":
				err = cmdLogin(a, args)
			case "logout":
				err = cmdLogout(a)
			case "whoami":
				err = cmdWhoami(a)
			case "submit":
				err = cmdSubmit(a, args)
			case "leaderboard":
				err = cmdLeaderboard(a, args)
			case "scores":
				err = cmdScores(a, args)
			case "quota":
				err = cmdQuota(a, args)
			case "history":
				err = cmdHistory(a, args)
			default:
				fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
				fmt.Fprint(os.Stderr, usageText)
				os.Exit(2)
			}
		}
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func cmdLogin(a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	token := fs.String("token", "", "store an existing bearer token instead of logging in")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *token != "" {
		a.sess.Token = *token
		a.sess.User = nil
		if err := a.sess.Save(); err != nil {
			return err
		}
		if claims, err := a.sess.Claims(); err == nil {
			fmt.Printf("Stored token for %s\n", claims.Username)
		} else {
			log.Warn().Err(err).Msg("Token stored but could not be decoded")
		}
		return nil
	}

	if *email == "" || *password == "" {
		return errors.New("login requires -email and -password (or -token)")
	}

	ctx, cancel := signalContext()
	defer cancel()
	resp, err := a.client.Login(ctx, *email, *password)
	if err != nil {
		return err
	}

	a.sess.Token = resp.Token
	a.sess.User = &resp.User
	if err := a.sess.Save(); err != nil {
		return err
	}
	fmt.Printf("Logged in as %s\n", resp.User.Username)
	return nil
}

func cmdLogout(a *app) error {
	if err := a.sess.Clear(); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

func cmdWhoami(a *app) error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	if a.sess.User != nil {
		fmt.Printf("User:  %s\n", a.sess.User.Username)
		fmt.Printf("Email: %s\n", a.sess.User.Email)
	}
	claims, err := a.sess.Claims()
	if err != nil {
		return err
	}
	if a.sess.User == nil {
		fmt.Printf("User:  %s\n", claims.Username)
	}
	if claims.ExpiresAt != nil {
		fmt.Printf("Token expires: %s\n", claims.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func cmdSubmit(a *app, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	strict := fs.Bool("strict", false, "treat validation warnings as errors")
	dryRun := fs.Bool("dry-run", false, "validate and preview without uploading")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := fs.Arg(0)
	if path == "" {
		return errors.New("usage: datathon submit [-strict] [-dry-run] <predictions.csv>")
	}

	if *dryRun {
		return submit.Describe(os.Stdout, path)
	}

	if err := a.requireAuth(); err != nil {
		return err
	}

	store, err := history.Open(a.cfg.HistoryPath)
	if err != nil {
		log.Warn().Err(err).Msg("Submission history unavailable")
		store = nil
	} else {
		defer store.Close()
	}

	ctx, cancel := signalContext()
	defer cancel()

	runner := &submit.Runner{Client: a.client, History: store, Out: os.Stdout}
	_, err = runner.Run(ctx, path, submit.Options{Strict: *strict})
	return err
}

func cmdLeaderboard(a *app, args []string) error {
	fs := flag.NewFlagSet("leaderboard", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "number of entries to fetch")
	watchMode := fs.Bool("watch", false, "keep refreshing until interrupted")
	interval := fs.Duration("interval", watch.DefaultInterval, "refresh interval in watch mode")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	rend := render.New(os.Stdout)

	if !*watchMode {
		entries, err := a.client.Leaderboard(ctx, *limit)
		if err != nil {
			return err
		}
		rend.Leaderboard(entries, a.sess.UserID())
		return nil
	}

	tick := func(ctx context.Context) {
		entries, err := a.client.Leaderboard(ctx, *limit)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("Leaderboard refresh failed")
			return
		}
		fmt.Printf("Leaderboard as of %s\n", time.Now().Format("15:04:05"))
		rend.Leaderboard(entries, a.sess.UserID())
		fmt.Println()
	}
	watch.New(*interval, tick).Run(ctx)
	return nil
}

func cmdScores(a *app, args []string) error {
	fs := flag.NewFlagSet("scores", flag.ContinueOnError)
	watchMode := fs.Bool("watch", false, "keep refreshing until interrupted")
	interval := fs.Duration("interval", watch.DefaultInterval, "refresh interval in watch mode")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireAuth(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	rend := render.New(os.Stdout)

	if !*watchMode {
		scores, quota, err := a.client.Dashboard(ctx)
		if err != nil {
			return err
		}
		rend.Dashboard(scores, quota)
		return nil
	}

	tick := func(ctx context.Context) {
		scores, quota, err := a.client.Dashboard(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("Scores refresh failed")
			return
		}
		fmt.Printf("Scores as of %s\n", time.Now().Format("15:04:05"))
		rend.Dashboard(scores, quota)
		fmt.Println()
	}
	watch.New(*interval, tick).Run(ctx)
	return nil
}

func cmdQuota(a *app, args []string) error {
	fs := flag.NewFlagSet("quota", flag.ContinueOnError)
	legacy := fs.Bool("legacy", false, "use the older submissions-remaining endpoint")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireAuth(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if *legacy {
		n, err := a.client.SubmissionsRemaining(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Submissions remaining: %d\n", n)
		return nil
	}

	q, err := a.client.RemainingSubmissions(ctx)
	if err != nil {
		return err
	}
	render.New(os.Stdout).Quota(q)
	return nil
}

func cmdHistory(a *app, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "number of records to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := history.Open(a.cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.Recent(*limit)
	if err != nil {
		return err
	}
	render.New(os.Stdout).History(recs)
	return nil
}

func cmdStubServer(args []string) error {
	fs := flag.NewFlagSet("stubserver", flag.ContinueOnError)
	port := fs.Int("port", 0, "listen port (overrides STUB_PORT)")
	truth := fs.String("truth", "", "ground-truth CSV path (overrides STUB_TRUTH_PATH)")
	dbPath := fs.String("db", "", "database path (overrides STUB_DATABASE_PATH)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadStub()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *truth != "" {
		cfg.TruthPath = *truth
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	logger.Init("info")

	srv, err := stubserver.New(cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, cancel := signalContext()
	defer cancel()
	return srv.Run(ctx)
}
