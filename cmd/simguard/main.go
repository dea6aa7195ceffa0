package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"simguard/client/internal/api"
	"simguard/client/internal/auth"
	"simguard/client/internal/config"
	"simguard/client/internal/history"
	"simguard/client/internal/ids"
	"simguard/client/internal/jobs"
	"simguard/client/internal/log"
	"simguard/client/internal/models"
	"simguard/client/internal/session"
	"simguard/client/internal/tracker"
)

const usageText = `Usage: simguard <command> [flags]

Commands:
  login      Authenticate and store the session
  register   Create a new account
  logout     Clear the stored session
  whoami     Show the current identity
  submit     Upload two files and track the comparison
  report     Show the report for a submission
  history    List past submissions
  delete     Delete a submission
  profile    Update the display name
  passwd     Change the account password
`

type app struct {
	cfg     *config.AppConfig
	log     zerolog.Logger
	store   *session.Store
	client  *api.Client
	gateway *auth.Gateway
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	logger := log.New(cfg.Environment, os.Getenv("SIMGUARD_VERBOSE") != "")

	store, err := session.NewStore(cfg.Session.Dir, cfg.Session.Passphrase, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	store.Load()

	clientID, err := ids.ClientID(cfg.Session.Dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	client := api.NewClient(cfg.API, store, clientID, logger)
	client.OnUnauthorized(func() {
		fmt.Fprintln(os.Stderr, "Session expired. Run 'simguard login' to sign in again.")
	})

	gateway := auth.NewGateway(client, store, logger)
	gateway.OnLoggedOut(func() {
		fmt.Println("Logged out.")
	})

	a := &app{
		cfg:     cfg,
		log:     logger,
		store:   store,
		client:  client,
		gateway: gateway,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	if err := a.run(ctx, cmd, args); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Cancelled.")
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.cmdLogin(ctx, args)
	case "register":
		return a.cmdRegister(ctx, args)
	case "logout":
		a.gateway.Logout()
		return nil
	case "whoami":
		return a.cmdWhoami(ctx, args)
	case "submit":
		return a.cmdSubmit(ctx, args)
	case "report":
		return a.cmdReport(ctx, args)
	case "history":
		return a.cmdHistory(ctx, args)
	case "delete":
		return a.cmdDelete(ctx, args)
	case "profile":
		return a.cmdProfile(ctx, args)
	case "passwd":
		return a.cmdPasswd(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usageText)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return errors.New("-email and -password are required")
	}

	sess, err := a.gateway.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s (%s plan)\n", sess.User.FullName, sess.User.Plan)
	return nil
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "Account email")
	name := fs.String("name", "", "Full name")
	password := fs.String("password", "", "Account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *name == "" || *password == "" {
		return errors.New("-email, -name and -password are required")
	}

	msg, err := a.gateway.Register(ctx, *email, *name, *password)
	if err != nil {
		var ve *api.ValidationError
		if errors.As(err, &ve) {
			for _, m := range ve.Messages {
				fmt.Fprintln(os.Stderr, " -", m)
			}
		}
		return err
	}
	fmt.Println(msg)
	return nil
}

func (a *app) cmdWhoami(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	remote := fs.Bool("remote", false, "Refresh the identity from the server")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !a.store.IsAuthenticated() {
		return errors.New("not logged in")
	}

	user := *a.store.Session().User
	if *remote {
		fresh, err := a.client.Me(ctx)
		if err != nil {
			return err
		}
		user = fresh
	}

	fmt.Printf("%s <%s>\n", user.FullName, user.Email)
	fmt.Printf("  plan: %s  provider: %s  verified: %t\n", user.Plan, user.AuthProvider, user.Verified)
	return nil
}

func (a *app) cmdSubmit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	file1 := fs.String("file1", "", "First file")
	file2 := fs.String("file2", "", "Second file")
	mode := fs.String("mode", string(models.ModeText), "Comparison mode: text|code")
	lang := fs.String("lang", "", "Language override for code mode")
	if err := fs.Parse(args); err != nil {
		return err
	}

	t := tracker.New(a.client, a.cfg.Poll, a.log)
	t.OnStep(func(step tracker.Step) {
		fmt.Printf("  -> %s\n", step)
	})

	outcome, err := t.Run(ctx, tracker.Input{
		File1Path:    *file1,
		File2Path:    *file2,
		Mode:         models.SubmissionMode(*mode),
		LangOverride: *lang,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Submission %d completed.\n", outcome.SubmissionID)
	printDetail(outcome.Detail)
	return nil
}

func (a *app) cmdReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	id := fs.Int64("id", 0, "Submission id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return errors.New("-id is required")
	}

	detail, err := a.client.Report(ctx, *id)
	if err != nil {
		return err
	}
	printDetail(detail)
	return nil
}

func (a *app) cmdHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	page := fs.Int("page", 1, "Page number")
	mode := fs.String("mode", "", "Filter by mode: text|code")
	risk := fs.String("risk", "", "Filter by risk: LOW|MEDIUM|HIGH")
	sortOrder := fs.String("sort", "desc", "Sort by creation time: asc|desc")
	watch := fs.Bool("watch", false, "Keep refreshing until interrupted")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sync := history.New(a.client, a.cfg.History.PageSize, a.log)
	if *mode != "" {
		if _, err := sync.SetMode(ctx, models.SubmissionMode(*mode)); err != nil {
			return err
		}
	}
	if *risk != "" {
		if _, err := sync.SetRisk(ctx, models.RiskLevel(*risk)); err != nil {
			return err
		}
	}
	if _, err := sync.SetSort(ctx, models.SortOrder(*sortOrder)); err != nil {
		return err
	}

	view, err := sync.Fetch(ctx, *page)
	if err != nil {
		return err
	}
	printView(view)

	if !*watch {
		return nil
	}

	refresher := jobs.NewRefresher(a.log)
	err = refresher.Start(a.cfg.History.WatchInterval, func() {
		v, ferr := sync.Fetch(ctx, view.Page)
		if ferr != nil {
			a.log.Warn().Err(ferr).Msg("history refresh failed")
			return
		}
		fmt.Println()
		printView(v)
	})
	if err != nil {
		return err
	}
	defer refresher.Stop()

	<-ctx.Done()
	return nil
}

func (a *app) cmdDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.Int64("id", 0, "Submission id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return errors.New("-id is required")
	}

	sync := history.New(a.client, a.cfg.History.PageSize, a.log)
	if _, err := sync.Fetch(ctx, 1); err != nil {
		return err
	}
	view, err := sync.Delete(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted submission %d (%d remaining).\n", *id, view.Total)
	return nil
}

func (a *app) cmdProfile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	name := fs.String("name", "", "New display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return errors.New("-name is required")
	}

	user, err := a.gateway.UpdateProfile(ctx, *name)
	if err != nil {
		return err
	}
	fmt.Printf("Profile updated: %s\n", user.FullName)
	return nil
}

func (a *app) cmdPasswd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	current := fs.String("current", "", "Current password")
	next := fs.String("new", "", "New password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *current == "" || *next == "" {
		return errors.New("-current and -new are required")
	}

	msg, err := a.gateway.ChangePassword(ctx, *current, *next)
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

func printDetail(d models.SubmissionDetail) {
	fmt.Printf("Submission %d  [%s]  %s vs %s  status=%s\n", d.ID, d.Mode, d.File1Name, d.File2Name, d.Status)
	if d.ErrorMessage != nil {
		fmt.Printf("  error: %s\n", *d.ErrorMessage)
	}
	if d.Report == nil {
		return
	}
	r := d.Report
	fmt.Printf("  similarity: %.1f%%  risk: %s\n", r.FinalSimilarity*100, r.RiskLevel)
	printScore := func(name string, v *float64) {
		if v != nil {
			fmt.Printf("    %-10s %.4f\n", name, *v)
		}
	}
	printScore("cosine", r.Scores.Cosine)
	printScore("jaccard", r.Scores.Jaccard)
	printScore("lcs", r.Scores.LCS)
	printScore("winnowing", r.Scores.Winnowing)
	printScore("ast", r.Scores.AST)
	if r.Language != nil {
		fmt.Printf("    language:  %s\n", *r.Language)
	}
}

func printView(v history.View) {
	fmt.Printf("Page %d/%d (%d total)\n", v.Page, v.TotalPages, v.Total)
	for _, item := range v.Items {
		risk := "-"
		if item.RiskLevel != nil {
			risk = string(*item.RiskLevel)
		}
		sim := "-"
		if item.FinalSimilarity != nil {
			sim = fmt.Sprintf("%.1f%%", *item.FinalSimilarity*100)
		}
		fmt.Printf("  %6d  %-4s  %-10s  %-6s  %-7s  %s vs %s\n",
			item.ID, item.Mode, item.Status, risk, sim,
			item.File1Name, item.File2Name)
	}
}
