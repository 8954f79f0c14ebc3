package main

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alecgard/ovpnadmin/internal/model"
)

var (
	flagEmail          string
	flagPassword       string
	flagName           string
	flagCode           string
	flagToken          string
	flagAvatar         string
	flagBio            string
	flagRole           string
	flagChangePassword bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the backend",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		cred := model.Credentials{
			Email:    strings.TrimSpace(flagEmail),
			Password: a.secret(flagPassword, "common.labels.password"),
		}
		u, ok := a.auth.Login(ctx, cred)
		if !ok {
			return errReported
		}
		a.say("auth.login.success", "name", u.Name)
		return nil
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the stored session",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		a.auth.Logout(ctx)
		a.say("cli.logged_out")
		return nil
	}),
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		pw := a.secret(flagPassword, "common.labels.password")
		reg := model.Registration{
			Name:            strings.TrimSpace(flagName),
			Email:           strings.TrimSpace(flagEmail),
			Password:        pw,
			PasswordConfirm: a.secret("", "common.labels.password_confirm"),
		}
		if !a.auth.Register(ctx, reg) {
			return errReported
		}
		a.say("auth.register.success")
		return nil
	}),
}

var verifyEmailCmd = &cobra.Command{
	Use:   "verify-email",
	Short: "Confirm an email address with the emailed code",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		if !a.auth.VerifyEmail(ctx, strings.TrimSpace(flagEmail), strings.TrimSpace(flagCode)) {
			return errReported
		}
		a.say("auth.verify.success")
		return nil
	}),
}

var forgotPasswordCmd = &cobra.Command{
	Use:   "forgot-password",
	Short: "Request a password reset email",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		if !a.auth.ForgotPassword(ctx, strings.TrimSpace(flagEmail)) {
			return errReported
		}
		a.say("auth.forgot.success")
		return nil
	}),
}

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Set a new password with an emailed reset token",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		pw := a.secret(flagPassword, "common.labels.password")
		confirm := a.secret("", "common.labels.password_confirm")
		if !a.auth.ResetPassword(ctx, strings.TrimSpace(flagToken), pw, confirm) {
			return errReported
		}
		a.say("auth.reset.success")
		return nil
	}),
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		u, err := a.login(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return a.printJSON(u)
		}
		a.say("cli.logged_in_as", "name", u.Name, "role", a.t("common.roles."+string(u.Role)))
		return nil
	}),
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your own profile",
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update your name, email, avatar, bio, role or password",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		if _, err := a.login(ctx); err != nil {
			return err
		}
		flags := a.cmd.Flags()
		var up model.UserUpdate
		if flags.Changed("name") {
			up.Name = &flagName
		}
		if flags.Changed("email") {
			up.Email = &flagEmail
		}
		if flags.Changed("avatar") {
			up.Avatar = &flagAvatar
		}
		if flags.Changed("bio") {
			up.Bio = &flagBio
		}
		if flags.Changed("role") {
			role, err := model.ParseRole(flagRole)
			if err != nil {
				return err
			}
			up.Role = &role
		}
		if flagChangePassword {
			pw := a.secret("", "profile.new_password")
			if pw != a.secret("", "common.labels.password_confirm") {
				return errors.New(a.t("auth.errors.password_mismatch"))
			}
			up.Password = &pw
		}
		u, ok := a.auth.UpdateUserInfo(ctx, up)
		if !ok {
			return errReported
		}
		if jsonOutput {
			return a.printJSON(u)
		}
		a.say("profile.updated")
		return nil
	}),
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd, verifyEmailCmd, forgotPasswordCmd} {
		c.Flags().StringVar(&flagEmail, "email", "", "account email")
		_ = c.MarkFlagRequired("email")
	}
	loginCmd.Flags().StringVar(&flagPassword, "password", "", "password (prompted when omitted)")
	registerCmd.Flags().StringVar(&flagPassword, "password", "", "password (prompted when omitted)")
	registerCmd.Flags().StringVar(&flagName, "name", "", "display name")
	_ = registerCmd.MarkFlagRequired("name")
	verifyEmailCmd.Flags().StringVar(&flagCode, "code", "", "verification code")
	_ = verifyEmailCmd.MarkFlagRequired("code")
	resetPasswordCmd.Flags().StringVar(&flagToken, "token", "", "reset token from the email")
	resetPasswordCmd.Flags().StringVar(&flagPassword, "password", "", "new password (prompted when omitted)")
	_ = resetPasswordCmd.MarkFlagRequired("token")

	pf := profileUpdateCmd.Flags()
	pf.StringVar(&flagName, "name", "", "new display name")
	pf.StringVar(&flagEmail, "email", "", "new email")
	pf.StringVar(&flagAvatar, "avatar", "", "avatar URL")
	pf.StringVar(&flagBio, "bio", "", "short bio")
	pf.StringVar(&flagRole, "role", "", "new role (superadmins only)")
	pf.BoolVar(&flagChangePassword, "password", false, "prompt for a new password")
	profileCmd.AddCommand(profileUpdateCmd)

	rootCmd.AddCommand(loginCmd, logoutCmd, registerCmd, verifyEmailCmd,
		forgotPasswordCmd, resetPasswordCmd, whoamiCmd, profileCmd)
}
