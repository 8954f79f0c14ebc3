package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/alecgard/ovpnadmin/internal/i18n"
	"github.com/alecgard/ovpnadmin/internal/locale"
)

var localeCmd = &cobra.Command{
	Use:   "locale",
	Short: "Show or change the display language",
}

var localeGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the active locale",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		fmt.Fprintln(a.out, a.locales.Get(ctx))
		return nil
	}),
}

var localeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List supported locales",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		active := a.locales.Get(ctx)
		rows := make([][]string, 0, len(locale.Supported()))
		for _, l := range locale.Supported() {
			mark := ""
			if l == active {
				mark = "*"
			}
			rows = append(rows, []string{mark, l, a.t("common.locales." + l)})
		}
		if jsonOutput {
			return a.printJSON(locale.Supported())
		}
		return a.table([]string{"", "common.labels.language", "common.labels.name"}, rows)
	}),
}

var localeSetCmd = &cobra.Command{
	Use:   "set <locale>",
	Short: "Persist a locale preference",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, a *app, args []string) error {
		if _, err := a.locales.Set(ctx, args[0], false); err != nil {
			if errors.Is(err, locale.ErrUnsupportedLocale) {
				return fmt.Errorf("%w (supported: %v)", err, locale.Supported())
			}
			return err
		}
		a.say("cli.locale_set", "locale", args[0])
		return nil
	}),
}

var i18nCmd = &cobra.Command{
	Use:   "i18n",
	Short: "Translation catalog tools",
}

var i18nCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify every locale defines the same keys as the default",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		reg := i18n.DefaultRegistry()
		rep, err := i18n.CheckConsistency(ctx, reg, locale.Default)
		if err != nil {
			return err
		}
		if jsonOutput {
			if err := a.printJSON(rep); err != nil {
				return err
			}
		} else {
			for _, l := range sortedLocales(rep.Missing) {
				for _, k := range rep.Missing[l] {
					fmt.Fprintln(a.errOut, a.t("cli.i18n_missing", "locale", l, "key", k))
				}
			}
			for _, l := range sortedLocales(rep.Extra) {
				for _, k := range rep.Extra[l] {
					fmt.Fprintln(a.errOut, a.t("cli.i18n_extra", "locale", l, "key", k))
				}
			}
		}
		if !rep.OK() {
			return errReported
		}
		if !jsonOutput {
			a.say("cli.i18n_ok", "count", len(reg.Locales()))
		}
		return nil
	}),
}

func sortedLocales(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for l := range m {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func init() {
	localeCmd.AddCommand(localeGetCmd, localeListCmd, localeSetCmd)
	i18nCmd.AddCommand(i18nCheckCmd)
	rootCmd.AddCommand(localeCmd, i18nCmd)
}
