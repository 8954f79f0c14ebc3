package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alecgard/ovpnadmin/internal/apiclient"
	"github.com/alecgard/ovpnadmin/internal/model"
	"github.com/alecgard/ovpnadmin/internal/policy"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Inspect and control the OpenVPN daemon",
}

var serverStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon status",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		if _, err := a.require(ctx, policy.ManageServer); err != nil {
			return err
		}
		st, err := a.client.ServerStatus(ctx)
		if err != nil {
			return a.fail(err)
		}
		if jsonOutput {
			return a.printJSON(st)
		}
		state := a.t("server.stopped")
		if st.Running {
			state = a.t("server.running")
		}
		rows := [][]string{
			{a.t("server.status"), state},
			{a.t("server.version"), st.Version},
			{a.t("server.uptime"), (time.Duration(st.Uptime) * time.Second).String()},
			{a.t("clients.connections"), strconv.Itoa(st.Connections)},
		}
		if !st.StartedAt.IsZero() {
			rows = append(rows, []string{a.t("server.started_at"), st.StartedAt.Format(time.RFC3339)})
		}
		return a.table([]string{"config.key", "config.value"}, rows)
	}),
}

func serverActionCmd(action apiclient.ServerAction, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app, _ []string) error {
			if _, err := a.require(ctx, policy.ManageServer); err != nil {
				return err
			}
			label := a.t("server." + string(action))
			if action != apiclient.ServerStart && !a.confirm(label+"?") {
				return errAborted
			}
			if err := a.client.ControlServer(ctx, action); err != nil {
				return a.fail(err)
			}
			a.say("server.requested", "action", label)
			return nil
		}),
	}
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and change the server configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show configuration rows",
	Args:  cobra.MaximumNArgs(1),
	RunE: run(func(ctx context.Context, a *app, args []string) error {
		if _, err := a.require(ctx, policy.ManageServer); err != nil {
			return err
		}
		items, err := a.client.ConfigItems(ctx, a.tr.Locale())
		if err != nil {
			return a.fail(err)
		}
		if len(args) == 1 {
			it, ok := findConfigItem(items, args[0])
			if !ok {
				return errors.New(a.t("common.errors.not_found"))
			}
			items = []model.ConfigItem{it}
		}
		if jsonOutput {
			return a.printJSON(items)
		}
		rows := make([][]string, 0, len(items))
		for _, it := range items {
			rows = append(rows, []string{it.Key, it.Label, strings.ReplaceAll(it.DisplayValue(), "\n", ", ")})
		}
		return a.table([]string{"config.key", "common.labels.name", "config.value"}, rows)
	}),
}

var configSetCmd = &cobra.Command{
	Use:   "set key=value...",
	Short: "Change configuration rows; arrays take comma-separated values",
	Args:  cobra.MinimumNArgs(1),
	RunE: run(func(ctx context.Context, a *app, args []string) error {
		if _, err := a.require(ctx, policy.ManageServer); err != nil {
			return err
		}
		items, err := a.client.ConfigItems(ctx, a.tr.Locale())
		if err != nil {
			return a.fail(err)
		}
		changes, bad := parseAssignments(items, args)
		if bad != nil {
			return errors.New(a.t("config.invalid", "key", bad.key, "reason", bad.Error()))
		}
		if len(changes) > 0 {
			if err := a.client.UpdateConfig(ctx, changes); err != nil {
				return a.fail(err)
			}
		}
		a.say("config.saved")
		return nil
	}),
}

type assignmentError struct {
	key string
	err error
}

func (e *assignmentError) Error() string { return e.err.Error() }

// parseAssignments type-checks key=value arguments against the current
// rows and returns only the values that differ.
func parseAssignments(items []model.ConfigItem, args []string) (map[string]any, *assignmentError) {
	changes := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, &assignmentError{key: arg, err: errors.New("expected key=value")}
		}
		it, found := findConfigItem(items, key)
		if !found {
			return nil, &assignmentError{key: key, err: errors.New("unknown key")}
		}
		v, err := it.ParseValue(raw)
		if err != nil {
			return nil, &assignmentError{key: key, err: err}
		}
		if current, err := it.ParseValue(it.DisplayValue()); err == nil && fmt.Sprint(current) == fmt.Sprint(v) {
			continue
		}
		changes[key] = v
	}
	return changes, nil
}

func findConfigItem(items []model.ConfigItem, key string) (model.ConfigItem, bool) {
	for _, it := range items {
		if it.Key == key {
			return it, true
		}
	}
	return model.ConfigItem{}, false
}

func init() {
	serverCmd.AddCommand(
		serverStatusCmd,
		serverActionCmd(apiclient.ServerStart, "Start the daemon"),
		serverActionCmd(apiclient.ServerStop, "Stop the daemon"),
		serverActionCmd(apiclient.ServerRestart, "Restart the daemon"),
	)
	configCmd.AddCommand(configGetCmd, configSetCmd)
	rootCmd.AddCommand(serverCmd, configCmd)
}
