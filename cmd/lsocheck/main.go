package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/pavelanni/lsocheck/internal/handler"
	appI18n "github.com/pavelanni/lsocheck/internal/i18n"
	"github.com/pavelanni/lsocheck/internal/model"
	"github.com/pavelanni/lsocheck/internal/questionnaire"
	"github.com/pavelanni/lsocheck/internal/store"
	"github.com/pavelanni/lsocheck/internal/submit"
	"github.com/pavelanni/lsocheck/internal/tui"
	"github.com/pavelanni/lsocheck/internal/webhook"
)

// errIneligible makes `evaluate --fail-ineligible` exit with status 2.
var errIneligible = errors.New("ineligible")

func main() {
	if err := rootCmd().Execute(); err != nil {
		if errors.Is(err, errIneligible) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lsocheck",
		Short:         "Second Chance Law eligibility questionnaire",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	serve := serveCmd()
	root.AddCommand(serve, askCmd(), evaluateCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `lsocheck --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(cmd *cobra.Command) {
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", "text", "Log format (text, json)")
}

func addSubmitFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("webhook-url", "", "Webhook receiving finished questionnaires (empty disables it)")
	f.String("webhook-format", string(model.WebhookJSON), "Webhook body encoding (json, form)")
	f.Duration("webhook-timeout", 10*time.Second, "Timeout of a single webhook request")
	f.Int("submit-retries", 2, "Extra delivery attempts per sink")
	f.Duration("submit-retry-delay", 2*time.Second, "Pause between delivery attempts")
	f.Duration("submit-timeout", time.Minute, "Deadline for delivering one submission to all sinks")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP questionnaire API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "lsocheck.db", "SQLite database path")
	f.StringP("lang", "l", appI18n.DefaultLang, "Default language (es, en)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /lso)")
	f.Bool("secure-cookies", true, "Set Secure flag on cookies")
	f.Duration("session-ttl", 2*time.Hour, "Idle questionnaire sessions are dropped after this")
	f.String("access-password", "", "Password required to use the API (or set LSOCHECK_ACCESS_PASSWORD)")
	f.Duration("access-ttl", 24*time.Hour, "Lifetime of a granted access cookie")
	f.String("admin-password", "", "Password for GET /api/submissions/export as user admin (or set LSOCHECK_ADMIN_PASSWORD); empty disables it")
	addSubmitFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Run the questionnaire in the terminal",
		RunE:  runAsk,
	}
	f := cmd.Flags()
	f.String("db", "", "SQLite database path (empty keeps no record)")
	f.StringP("lang", "l", appI18n.DefaultLang, "Language (es, en)")
	f.Bool("skip-contact", false, "Do not ask for contact details")
	f.String("log-file", "", "Write logs to this file (the terminal is used by the questionnaire)")
	addSubmitFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate FILE",
		Short: "Evaluate eligibility for answers stored in a JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE:  runEvaluate,
	}
	f := cmd.Flags()
	f.StringP("lang", "l", appI18n.DefaultLang, "Language of reason texts (es, en)")
	f.Bool("fail-ineligible", false, "Exit with status 2 when the answers are ineligible")
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored submissions as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "lsocheck.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.StringP("lang", "l", appI18n.DefaultLang, "Language of the summary line (es, en)")
	addLogFlags(cmd)
	return cmd
}

func setupLogging(cmd *cobra.Command, out io.Writer) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(out, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("LSOCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("lsocheck")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/lsocheck")
	v.AddConfigPath("/etc/lsocheck")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// catalogFingerprint identifies the question set the submissions answer.
func catalogFingerprint() string {
	return questionnaire.PrimaryCatalog().Fingerprint() + ":" + questionnaire.AssetCatalog().Fingerprint()
}

// newDispatcher builds the sink fan-out. db may be nil.
func newDispatcher(v *viper.Viper, db *store.Store) (*submit.Dispatcher, *webhook.Client, error) {
	var sinks []submit.Sink
	var recorder submit.DeliveryRecorder
	if db != nil {
		sinks = append(sinks, db)
		recorder = db
	}

	var hook *webhook.Client
	if u := v.GetString("webhook-url"); u != "" {
		var err error
		hook, err = webhook.NewClient(webhook.Config{
			URL:     u,
			Format:  model.WebhookFormat(strings.ToLower(v.GetString("webhook-format"))),
			Timeout: v.GetDuration("webhook-timeout"),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create webhook client: %w", err)
		}
		sinks = append(sinks, hook)
	}
	if len(sinks) == 0 {
		slog.Warn("no submission sinks configured, finished questionnaires are not kept")
	}

	d := submit.NewDispatcher(submit.Config{
		Retries:    v.GetInt("submit-retries"),
		RetryDelay: v.GetDuration("submit-retry-delay"),
		Timeout:    v.GetDuration("submit-timeout"),
	}, recorder, sinks...)
	return d, hook, nil
}

func openStore(path string) (*store.Store, error) {
	db, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.CheckCatalogFingerprint(catalogFingerprint()); err != nil {
		db.Close()
		return nil, fmt.Errorf("check catalog fingerprint: %w", err)
	}
	return db, nil
}

// hashPassword returns "" for an empty password.
func hashPassword(pw string) (string, error) {
	if pw == "" {
		return "", nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd, os.Stderr)
	v := viperForCmd(cmd)

	db, err := openStore(v.GetString("db"))
	if err != nil {
		return err
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	dispatcher, hook, err := newDispatcher(v, db)
	if err != nil {
		return err
	}

	accessHash, err := hashPassword(v.GetString("access-password"))
	if err != nil {
		return fmt.Errorf("hash access password: %w", err)
	}
	adminHash, err := hashPassword(v.GetString("admin-password"))
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if adminHash != "" && v.GetString("admin-password") == v.GetString("access-password") {
		return errors.New("admin password must differ from the access password")
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.AppConfig{
		Lang:               lang,
		BasePath:           basePath,
		SecureCookies:      v.GetBool("secure-cookies"),
		SessionTTL:         v.GetDuration("session-ttl"),
		AccessPasswordHash: accessHash,
		AccessTTL:          v.GetDuration("access-ttl"),
		AdminPasswordHash:  adminHash,
	}

	var contact handler.ContactPoster
	if hook != nil {
		contact = hook
	}
	h, err := handler.New(db, dispatcher, contact, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go h.RunJanitor(ctx, time.Minute)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"base_path", basePath,
		"sinks", dispatcher.Sinks(),
		"access_gate", accessHash != "",
		"admin_export", adminHash != "",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), v.GetDuration("submit-timeout")+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		slog.Warn("pending submissions not delivered", "error", err)
	}
	return nil
}

func runAsk(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)

	logOut := io.Discard
	if path := v.GetString("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	setupLogging(cmd, logOut)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	var db *store.Store
	if path := v.GetString("db"); path != "" {
		var err error
		if db, err = openStore(path); err != nil {
			return err
		}
		defer db.Close()
	}

	dispatcher, _, err := newDispatcher(v, db)
	if err != nil {
		return err
	}
	timeout := v.GetDuration("submit-timeout")
	opts := tui.Options{SkipContact: v.GetBool("skip-contact")}
	if len(dispatcher.Sinks()) > 0 {
		opts.Submit = func(ctx context.Context, sub model.Submission) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return dispatcher.Dispatch(ctx, sub)
		}
	}

	ctx := appI18n.WithLocalizer(cmd.Context(), appI18n.NewLocalizer(lang))
	return tui.Run(ctx, opts)
}

// answerFile is the input of `evaluate`.
type answerFile struct {
	Primary questionnaire.Answers `json:"primary" yaml:"primary"`
	Asset   questionnaire.Answers `json:"asset" yaml:"asset"`
}

// evaluation is the output of `evaluate`.
type evaluation struct {
	questionnaire.Verdict
	ReasonTexts   []string                 `json:"reason_texts"`
	Documents     []questionnaire.Document `json:"documents,omitempty"`
	DocumentTexts []string                 `json:"document_texts,omitempty"`
}

func loadAnswerFile(path string) (answerFile, error) {
	var af answerFile
	data, err := os.ReadFile(path)
	if err != nil {
		return af, fmt.Errorf("read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &af)
	default:
		err = json.Unmarshal(data, &af)
	}
	if err != nil {
		return af, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := checkAnswers(questionnaire.PrimaryCatalog(), af.Primary); err != nil {
		return af, fmt.Errorf("%s: %w", path, err)
	}
	if err := checkAnswers(questionnaire.AssetCatalog(), af.Asset); err != nil {
		return af, fmt.Errorf("%s: %w", path, err)
	}
	return af, nil
}

// checkAnswers rejects values that are not choices of their question.
// Unknown question IDs are ignored with a warning.
func checkAnswers(c questionnaire.Catalog, a questionnaire.Answers) error {
	known := make(map[string]questionnaire.Question, c.Len())
	for i := 0; i < c.Len(); i++ {
		q, _ := c.At(i)
		known[q.ID] = q
	}
	for id, val := range a {
		q, ok := known[id]
		if !ok {
			slog.Warn("ignoring answer to unknown question", "catalog", c.Name(), "question", id)
			continue
		}
		if val != "" && !q.HasChoice(val) {
			return fmt.Errorf("question %s: %q is not a valid choice", id, val)
		}
	}
	return nil
}

func evaluate(ctx context.Context, af answerFile) evaluation {
	ev := evaluation{Verdict: questionnaire.Evaluate(af.Primary)}
	ev.ReasonTexts = appI18n.ReasonTexts(ctx, ev.Reasons)
	if ev.Eligible && len(af.Asset) > 0 {
		ev.Documents = questionnaire.RequiredDocuments(af.Asset)
		ev.DocumentTexts = appI18n.DocumentTexts(ctx, ev.Documents)
	}
	return ev
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	setupLogging(cmd, os.Stderr)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	af, err := loadAnswerFile(args[0])
	if err != nil {
		return err
	}
	ctx := appI18n.WithLocalizer(cmd.Context(), appI18n.NewLocalizer(lang))
	ev := evaluate(ctx, af)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(ev); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if !ev.Eligible && v.GetBool("fail-ineligible") {
		return errIneligible
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd, os.Stderr)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportAllSubmissions()
	if err != nil {
		return fmt.Errorf("export submissions: %w", err)
	}
	if export.CatalogFingerprint != "" && export.CatalogFingerprint != catalogFingerprint() {
		slog.Warn("stored submissions were answered against a different question catalog")
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err == nil {
		ctx := appI18n.WithLocalizer(cmd.Context(), appI18n.NewLocalizer(lang))
		fmt.Fprintln(cmd.ErrOrStderr(), appI18n.Tp(ctx, "SubmissionsStored", export.Total))
	}
	return nil
}
