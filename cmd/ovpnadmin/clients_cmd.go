package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/alecgard/ovpnadmin/internal/model"
	"github.com/alecgard/ovpnadmin/internal/policy"
)

var (
	clientName  string
	clientOwner string
	clientOS    string
	clientOut   string
	logsOffset  int
	logsLimit   int
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Manage OpenVPN clients",
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the VPN clients you can see",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		actor, err := a.require(ctx, policy.ViewClients)
		if err != nil {
			return err
		}
		all, err := a.client.ListClients(ctx)
		if err != nil {
			return a.fail(err)
		}
		clients := policy.VisibleClients(actor, all)
		if jsonOutput {
			return a.printJSON(clients)
		}
		rows := make([][]string, 0, len(clients))
		for _, c := range clients {
			expires := ""
			if c.ExpiresAt != nil {
				expires = c.ExpiresAt.Format("2006-01-02")
			}
			revoked := ""
			if c.Revoked {
				revoked = a.t("clients.revoked")
			}
			rows = append(rows, []string{c.ID, c.Name, c.Email, c.FixedIP, expires, revoked})
		}
		return a.table([]string{
			"common.labels.id", "common.labels.name", "common.labels.email",
			"users.fixed_ip", "clients.expires_at", "clients.revoked",
		}, rows)
	}),
}

var clientsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Issue a client certificate",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		actor, err := a.require(ctx, policy.ManageClients)
		if err != nil {
			return err
		}
		owner := clientOwner
		if owner == "" {
			owner = actor.ID
		}
		if !ownerVisible(ctx, a, actor, owner) {
			return errors.New(a.t("clients.forbidden"))
		}
		vc, err := a.client.AddClient(ctx, model.VPNClientInput{
			UserID: owner,
			Name:   strings.TrimSpace(clientName),
		})
		if err != nil {
			return a.fail(err)
		}
		if jsonOutput {
			return a.printJSON(vc)
		}
		a.say("clients.added", "name", vc.Name)
		return nil
	}),
}

var clientsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Revoke and remove a client",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, a *app, args []string) error {
		actor, err := a.require(ctx, policy.ManageClients)
		if err != nil {
			return err
		}
		vc, err := findClient(ctx, a, actor, args[0])
		if err != nil {
			return err
		}
		if !a.confirm(a.t("common.confirm.delete", "name", vc.Name)) {
			return errAborted
		}
		if err := a.client.DeleteClient(ctx, vc.ID); err != nil {
			return a.fail(err)
		}
		a.say("clients.deleted", "name", vc.Name)
		return nil
	}),
}

var clientsConfigCmd = &cobra.Command{
	Use:   "config <id>",
	Short: "Download a client profile",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, a *app, args []string) error {
		os, err := model.ParseClientOS(clientOS)
		if err != nil {
			return err
		}
		actor, err := a.require(ctx, policy.ViewClients)
		if err != nil {
			return err
		}
		vc, err := findClient(ctx, a, actor, args[0])
		if err != nil {
			return err
		}
		profile, err := a.client.ClientConfig(ctx, vc.ID, os)
		if err != nil {
			return a.fail(err)
		}
		path, err := saveProfile(a.fs, clientOut, profile)
		if err != nil {
			return err
		}
		a.say("clients.profile_saved", "path", path)
		return nil
	}),
}

var clientsConnectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "List live VPN sessions",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		actor, err := a.require(ctx, policy.ViewClients)
		if err != nil {
			return err
		}
		clients, err := a.client.ListClients(ctx)
		if err != nil {
			return a.fail(err)
		}
		conns, err := a.client.Connections(ctx)
		if err != nil {
			return a.fail(err)
		}
		visible := policy.ConnectionsOf(policy.VisibleClients(actor, clients), conns)
		if jsonOutput {
			return a.printJSON(visible)
		}
		rows := make([][]string, 0, len(visible))
		for _, cn := range visible {
			rows = append(rows, []string{
				cn.CommonName, cn.RealAddress, cn.VirtualAddress,
				strconv.FormatInt(cn.BytesReceived, 10),
				strconv.FormatInt(cn.BytesSent, 10),
				cn.ConnectedSince.Format("2006-01-02 15:04"),
			})
		}
		return a.table([]string{
			"clients.common_name", "clients.real_address", "clients.virtual_address",
			"clients.bytes_in", "clients.bytes_out", "clients.connected_since",
		}, rows)
	}),
}

var clientsLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print a window of the server log",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		if _, err := a.require(ctx, policy.ManageServer); err != nil {
			return err
		}
		page, err := a.client.Logs(ctx, logsOffset, logsLimit)
		if err != nil {
			return a.fail(err)
		}
		if jsonOutput {
			return a.printJSON(page)
		}
		for _, e := range page.Entries {
			fmt.Fprintf(a.out, "%s %-5s %s\n", e.Time.Format("2006-01-02 15:04:05"), e.Level, e.Message)
		}
		return nil
	}),
}

// findClient returns the client with id when actor may see it. Clients
// outside the actor's scope are reported as missing.
func findClient(ctx context.Context, a *app, actor model.User, id string) (model.VPNClient, error) {
	all, err := a.client.ListClients(ctx)
	if err != nil {
		return model.VPNClient{}, a.fail(err)
	}
	for _, c := range policy.VisibleClients(actor, all) {
		if c.ID == id {
			return c, nil
		}
	}
	return model.VPNClient{}, errors.New(a.t("common.errors.not_found"))
}

// ownerVisible reports whether actor may issue a client for owner.
func ownerVisible(ctx context.Context, a *app, actor model.User, owner string) bool {
	if owner == actor.ID {
		return true
	}
	users, err := a.client.ListUsers(ctx)
	if err != nil {
		return false
	}
	for _, u := range policy.VisibleUsers(actor, users) {
		if u.ID == owner {
			return true
		}
	}
	return false
}

// saveProfile writes profile to out, which may name a file or an existing
// directory. An empty out uses the profile's own filename in the working
// directory. The profile filename never leaves the chosen directory.
func saveProfile(fs afero.Fs, out string, profile model.Profile) (string, error) {
	name := filepath.Base(filepath.Clean(profile.Filename))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid profile filename %q", profile.Filename)
	}
	path := out
	if path == "" {
		path = name
	} else if isDir, err := afero.IsDir(fs, path); err == nil && isDir {
		path = filepath.Join(path, name)
	}
	if err := afero.WriteFile(fs, path, profile.Data, 0o600); err != nil {
		return "", fmt.Errorf("writing profile: %w", err)
	}
	return path, nil
}

func init() {
	clientsAddCmd.Flags().StringVar(&clientName, "name", "", "client name")
	clientsAddCmd.Flags().StringVar(&clientOwner, "owner", "", "owning user id (defaults to you)")
	clientsConfigCmd.Flags().StringVar(&clientOS, "os", string(model.OSLinux), "windows, macos, linux, android or ios")
	clientsConfigCmd.Flags().StringVarP(&clientOut, "out", "o", "", "output file or directory")
	clientsLogsCmd.Flags().IntVar(&logsOffset, "offset", 0, "first entry to show")
	clientsLogsCmd.Flags().IntVar(&logsLimit, "limit", 100, "entries to show")

	clientsCmd.AddCommand(clientsListCmd, clientsAddCmd, clientsDeleteCmd,
		clientsConfigCmd, clientsConnectionsCmd, clientsLogsCmd)
	rootCmd.AddCommand(clientsCmd)
}
