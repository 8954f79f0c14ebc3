package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/alecgard/ovpnadmin/internal/apiclient"
	"github.com/alecgard/ovpnadmin/internal/auth"
	"github.com/alecgard/ovpnadmin/internal/config"
	"github.com/alecgard/ovpnadmin/internal/crypto"
	"github.com/alecgard/ovpnadmin/internal/i18n"
	"github.com/alecgard/ovpnadmin/internal/locale"
	"github.com/alecgard/ovpnadmin/internal/logging"
	"github.com/alecgard/ovpnadmin/internal/model"
	"github.com/alecgard/ovpnadmin/internal/notify"
	"github.com/alecgard/ovpnadmin/internal/policy"
	"github.com/alecgard/ovpnadmin/internal/session"
	"github.com/alecgard/ovpnadmin/internal/storage"
)

// cipherPurpose separates the session sealing key from any other key
// derived from storage.secret.
const cipherPurpose = "session"

// newFs is the filesystem profiles are written to.
var newFs = afero.NewOsFs

var (
	// errReported means the failure was already shown to the user.
	errReported = errors.New("reported")
	errAborted  = errors.New("aborted")
)

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setupLogging installs the process logger and returns its closer.
func setupLogging(opts config.LogConfig) func() {
	logger, closer := logging.New(logging.Options{
		Level:      opts.Level,
		Format:     opts.Format,
		File:       opts.File,
		MaxSizeMB:  opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAgeDays: opts.MaxAgeDays,
	})
	slog.SetDefault(logger)
	return func() { _ = closer.Close() }
}

// newSuppressor shares notification suppression through Redis when
// configured, and keeps it in memory otherwise.
func newSuppressor(cfg *config.Config) (notify.Suppressor, func(), error) {
	if cfg.Notify.RedisURL == "" {
		return notify.NewMemorySuppressor(nil), func() {}, nil
	}
	rs, err := notify.DialRedis(cfg.Notify.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return rs, func() { _ = rs.Close() }, nil
}

// app is the terminal console: one persisted session in a local SQLite
// file, driven by the same controller the web console uses.
type app struct {
	cmd      *cobra.Command
	cfg      *config.Config
	out      io.Writer
	errOut   io.Writer
	in       *bufio.Reader
	kv       *storage.SQLite
	store    *session.Store
	locales  *locale.Store
	tr       *i18n.Translator
	notifier *notify.Notifier
	client   *apiclient.Client
	auth     *auth.Controller
	fs       afero.Fs
	closers  []func()
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logOpts := cfg.Log
	if logOpts.File == "" && logging.ParseLevel(logOpts.Level) < slog.LevelWarn {
		// Keep the terminal for command output.
		logOpts.Level = "warn"
	}
	a := &app{
		cmd:    cmd,
		cfg:    cfg,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		in:     bufio.NewReader(cmd.InOrStdin()),
		fs:     newFs(),
	}
	a.closers = append(a.closers, setupLogging(logOpts))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	path, err := cfg.StatePath()
	if err != nil {
		a.Close()
		return nil, err
	}
	kv, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.kv = kv
	a.closers = append(a.closers, func() { _ = kv.Close() })

	cipher, err := crypto.NewCipher(cfg.Storage.Secret, cipherPurpose)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = session.NewStore(kv, session.NewTokenSlot(kv, cipher), cipher)
	if err := a.store.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.tr, err = i18n.NewTranslator(ctx, i18n.DefaultRegistry(), cfg.Locale.Default)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.locales = locale.NewStore(kv, a.tr)
	if a.locales.Preference(ctx) != "" {
		a.locales.Init(ctx)
	}

	sup, closeSup, err := newSuppressor(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeSup)
	a.notifier = notify.New(notify.WriterSink{W: a.errOut}, sup, cfg.Notify.Window)

	a.client, err = apiclient.New(cfg.Backend.BaseURL, a.store,
		apiclient.WithTimeout(cfg.Backend.Timeout),
		apiclient.WithLocale(func(context.Context) string { return a.tr.Locale() }),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.auth = auth.NewController(a.client, a.store, auth.Deps{
		Notifier: a.notifier,
		Navigator: auth.NavigatorFunc(func(ctx context.Context, route string) {
			logging.FromContext(ctx).Debug("controller navigation", "route", route)
		}),
		Messages: a.tr,
	})
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// run wraps a command body with app setup and teardown.
func run(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return fn(ctx, a, args)
	}
}

func (a *app) t(key string, pairs ...any) string {
	var params map[string]any
	if len(pairs) >= 2 {
		params = make(map[string]any, len(pairs)/2)
		for i := 0; i+1 < len(pairs); i += 2 {
			if k, ok := pairs[i].(string); ok {
				params[k] = pairs[i+1]
			}
		}
	}
	return a.tr.T(key, params)
}

// login revalidates the persisted session and returns the current user.
// A persisted login is never trusted without a successful refresh.
func (a *app) login(ctx context.Context) (model.User, error) {
	if !a.store.IsLogin() {
		return model.User{}, errors.New(a.t("cli.not_logged_in"))
	}
	if !a.auth.Bootstrap(ctx) {
		return model.User{}, errReported
	}
	return *a.auth.User(), nil
}

// forbiddenKeys names the refusal shown for each gated action.
var forbiddenKeys = map[policy.Action]string{
	policy.ViewClients:       "clients.forbidden",
	policy.ManageClients:     "clients.forbidden",
	policy.ViewUsers:         "users.forbidden",
	policy.CreateUser:        "users.forbidden",
	policy.EditUser:          "users.forbidden",
	policy.DeleteUser:        "users.forbidden",
	policy.ManageDepartments: "departments.forbidden",
	policy.ManageServer:      "server.forbidden",
}

// require revalidates the session and refuses locally when the policy
// denies action.
func (a *app) require(ctx context.Context, action policy.Action) (model.User, error) {
	u, err := a.login(ctx)
	if err != nil {
		return u, err
	}
	if !policy.Decide(u, action, nil) {
		key, ok := forbiddenKeys[action]
		if !ok {
			key = "common.errors.forbidden"
		}
		return u, errors.New(a.t(key))
	}
	return u, nil
}

// fail turns a backend error into the message shown to the user.
func (a *app) fail(err error) error {
	switch {
	case apiclient.IsUnauthorized(err):
		return errors.New(a.t("auth.errors.session_expired"))
	case apiclient.IsForbidden(err):
		return errors.New(a.t("common.errors.forbidden"))
	case apiclient.IsNotFound(err):
		return errors.New(a.t("common.errors.not_found"))
	}
	return errors.New(a.t("common.errors.request_failed", "message", apiclient.Message(err)))
}

func (a *app) say(key string, pairs ...any) {
	fmt.Fprintln(a.out, a.t(key, pairs...))
}

// printJSON writes v as indented JSON.
func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes tab-aligned rows under translated headers.
func (a *app) table(headerKeys []string, rows [][]string) error {
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	headers := make([]string, len(headerKeys))
	for i, k := range headerKeys {
		headers[i] = strings.ToUpper(a.t(k))
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

// confirm asks before a destructive action unless --yes was given.
func (a *app) confirm(message string) bool {
	if assumeYes {
		return true
	}
	fmt.Fprintln(a.errOut, message)
	fmt.Fprint(a.errOut, a.t("cli.confirm_prompt"))
	line, _ := a.in.ReadString('\n')
	if strings.TrimSpace(line) == "yes" {
		return true
	}
	a.say("cli.aborted")
	return false
}

// secret returns value, or prompts for it on stdin when empty.
func (a *app) secret(value, labelKey string) string {
	if value != "" {
		return value
	}
	fmt.Fprintf(a.errOut, "%s: ", a.t(labelKey))
	line, _ := a.in.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

// confirm is the prompt used by commands that run without an app.
func confirm(cmd *cobra.Command, message string) bool {
	if assumeYes {
		return true
	}
	fmt.Fprintln(cmd.ErrOrStderr(), message)
	fmt.Fprint(cmd.ErrOrStderr(), "Type yes to continue: ")
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if strings.TrimSpace(line) == "yes" {
		return true
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
	return false
}
