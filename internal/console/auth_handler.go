package console

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/alecgard/ovpnadmin/internal/auth"
	"github.com/alecgard/ovpnadmin/internal/model"
)

// home handles GET /.
func (c *Console) home(w http.ResponseWriter, r *http.Request) {
	cs := sessionFrom(r.Context())
	if cs.auth.User() != nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	c.render(w, r, http.StatusOK, "home", View{TitleKey: "common.nav.home"})
}

// loginForm handles GET /login.
func (c *Console) loginForm(w http.ResponseWriter, r *http.Request) {
	cs := sessionFrom(r.Context())
	if cs.auth.User() != nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	c.render(w, r, http.StatusOK, "login", View{
		TitleKey: "auth.login.title",
		Form:     url.Values{"next": {r.URL.Query().Get("next")}},
	})
}

// login handles POST /login.
func (c *Console) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	if err := r.ParseForm(); err != nil {
		c.badForm(w, r, "login", "auth.login.title")
		return
	}

	u, ok := cs.auth.Login(ctx, model.Credentials{
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Password: r.PostForm.Get("password"),
	})
	if !ok {
		c.render(w, r, http.StatusUnprocessableEntity, "login", View{
			TitleKey: "auth.login.title",
			Form:     withoutSecrets(r.PostForm),
		})
		return
	}
	c.markVerified(ctx, cs)

	target := r.PostForm.Get("next")
	if !safeNext(target) || strings.HasPrefix(target, "/login") {
		target = "/dashboard"
	}
	c.redirectWithFlash(w, r, target, "auth.login.success", "name", u.Name)
}

// loginThrottled renders the login form when the client exceeded its
// attempt budget.
func (c *Console) loginThrottled(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	_ = r.ParseForm()
	cs.notifier.Error(ctx, cs.t("auth.errors.too_many_attempts"))
	c.render(w, r, http.StatusTooManyRequests, "login", View{
		TitleKey: "auth.login.title",
		Form:     withoutSecrets(r.PostForm),
	})
}

// registerForm handles GET /register.
func (c *Console) registerForm(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, http.StatusOK, "register", View{TitleKey: "auth.register.title"})
}

// register handles POST /register.
func (c *Console) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	if err := r.ParseForm(); err != nil {
		c.badForm(w, r, "register", "auth.register.title")
		return
	}

	email := strings.TrimSpace(r.PostForm.Get("email"))
	ok := cs.auth.Register(ctx, model.Registration{
		Name:            strings.TrimSpace(r.PostForm.Get("name")),
		Email:           email,
		Password:        r.PostForm.Get("password"),
		PasswordConfirm: r.PostForm.Get("password_confirm"),
	})
	if !ok {
		c.render(w, r, http.StatusUnprocessableEntity, "register", View{
			TitleKey: "auth.register.title",
			Form:     withoutSecrets(r.PostForm),
		})
		return
	}
	c.redirectWithFlash(w, r, auth.RouteVerifyEmail+"?email="+url.QueryEscape(email), "auth.register.success")
}

// verifyForm handles GET /verify-email.
func (c *Console) verifyForm(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, http.StatusOK, "verify", View{
		TitleKey: "auth.verify.title",
		Form:     url.Values{"email": {r.URL.Query().Get("email")}},
	})
}

// verify handles POST /verify-email.
func (c *Console) verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	if err := r.ParseForm(); err != nil {
		c.badForm(w, r, "verify", "auth.verify.title")
		return
	}

	ok := cs.auth.VerifyEmail(ctx, strings.TrimSpace(r.PostForm.Get("email")), strings.TrimSpace(r.PostForm.Get("code")))
	if !ok {
		c.render(w, r, http.StatusUnprocessableEntity, "verify", View{
			TitleKey: "auth.verify.title",
			Form:     r.PostForm,
		})
		return
	}
	c.redirectWithFlash(w, r, auth.RouteLogin, "auth.verify.success")
}

// forgotForm handles GET /forgot-password.
func (c *Console) forgotForm(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, http.StatusOK, "forgot", View{TitleKey: "auth.forgot.title"})
}

// forgot handles POST /forgot-password.
func (c *Console) forgot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	if err := r.ParseForm(); err != nil {
		c.badForm(w, r, "forgot", "auth.forgot.title")
		return
	}

	if !cs.auth.ForgotPassword(ctx, strings.TrimSpace(r.PostForm.Get("email"))) {
		c.render(w, r, http.StatusUnprocessableEntity, "forgot", View{
			TitleKey: "auth.forgot.title",
			Form:     r.PostForm,
		})
		return
	}
	c.redirectWithFlash(w, r, auth.RouteLogin, "auth.forgot.success")
}

// resetForm handles GET /reset-password?token=...
func (c *Console) resetForm(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, http.StatusOK, "reset", View{
		TitleKey: "auth.reset.title",
		Form:     url.Values{"token": {r.URL.Query().Get("token")}},
	})
}

// reset handles POST /reset-password.
func (c *Console) reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	if err := r.ParseForm(); err != nil {
		c.badForm(w, r, "reset", "auth.reset.title")
		return
	}

	ok := cs.auth.ResetPassword(ctx,
		strings.TrimSpace(r.PostForm.Get("token")),
		r.PostForm.Get("password"),
		r.PostForm.Get("password_confirm"),
	)
	if !ok {
		c.render(w, r, http.StatusUnprocessableEntity, "reset", View{
			TitleKey: "auth.reset.title",
			Form:     withoutSecrets(r.PostForm),
		})
		return
	}
	c.redirectWithFlash(w, r, auth.RouteLogin, "auth.reset.success")
}

// logout handles POST /logout.
func (c *Console) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	cs.auth.Logout(ctx)
	if err := cs.kv.Delete(ctx, verifiedKey); err != nil {
		c.logWarn(r, "clearing session verification marker", err)
	}

	target := cs.takeRedirect()
	if target == "" {
		target = auth.RouteHome
	}
	c.redirectWithFlash(w, r, target, "auth.logout.success")
}

// badForm re-renders page after an unparseable submission.
func (c *Console) badForm(w http.ResponseWriter, r *http.Request, page, titleKey string) {
	cs := sessionFrom(r.Context())
	cs.notifier.Error(r.Context(), cs.t("common.errors.invalid_form"))
	c.render(w, r, http.StatusBadRequest, page, View{TitleKey: titleKey})
}

// withoutSecrets drops password fields before a form is echoed back.
func withoutSecrets(form url.Values) url.Values {
	out := make(url.Values, len(form))
	for k, v := range form {
		if strings.Contains(k, "password") {
			continue
		}
		out[k] = v
	}
	return out
}
