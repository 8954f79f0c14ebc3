package console

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/alecgard/ovpnadmin/internal/model"
	"github.com/alecgard/ovpnadmin/internal/policy"
)

type profileData struct {
	Roles         []model.Role
	CanChangeRole bool
}

// profileForm handles GET /profile.
func (c *Console) profileForm(w http.ResponseWriter, r *http.Request) {
	cs := sessionFrom(r.Context())
	u := *cs.auth.User()
	c.render(w, r, http.StatusOK, "profile", View{
		TitleKey: "profile.title",
		Form: url.Values{
			"name":   {u.Name},
			"email":  {u.Email},
			"avatar": {u.Avatar},
			"bio":    {u.Bio},
			"role":   {string(u.Role)},
		},
		Data: profileDataFor(u),
	})
}

// updateProfile handles POST /profile.
func (c *Console) updateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	current := *cs.auth.User()
	if err := r.ParseForm(); err != nil {
		c.badForm(w, r, "profile", "profile.title")
		return
	}
	form := r.PostForm

	var up model.UserUpdate
	setIfChanged(&up.Name, form.Get("name"), current.Name)
	setIfChanged(&up.Email, form.Get("email"), current.Email)
	setIfChanged(&up.Avatar, form.Get("avatar"), current.Avatar)
	setIfChanged(&up.Bio, form.Get("bio"), current.Bio)
	if role := model.Role(form.Get("role")); role != "" && role != current.Role {
		up.Role = &role
	}
	if pw := form.Get("password"); pw != "" {
		if pw != form.Get("password_confirm") {
			cs.notifier.Error(ctx, cs.t("auth.errors.password_mismatch"))
			c.renderProfileFailure(w, r, current)
			return
		}
		up.Password = &pw
	}

	if _, ok := cs.auth.UpdateUserInfo(ctx, up); !ok {
		if target := cs.takeRedirect(); target != "" {
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		c.renderProfileFailure(w, r, current)
		return
	}
	c.redirectWithFlash(w, r, "/profile", "profile.updated")
}

func (c *Console) renderProfileFailure(w http.ResponseWriter, r *http.Request, u model.User) {
	c.render(w, r, http.StatusUnprocessableEntity, "profile", View{
		TitleKey: "profile.title",
		Form:     withoutSecrets(r.PostForm),
		Data:     profileDataFor(u),
	})
}

func profileDataFor(u model.User) profileData {
	d := profileData{CanChangeRole: policy.CanChangeOwnRole(u)}
	if d.CanChangeRole {
		d.Roles = model.Roles
	}
	return d
}

// setIfChanged points dst at the trimmed submitted value when it differs
// from the current one.
func setIfChanged(dst **string, submitted, current string) {
	v := strings.TrimSpace(submitted)
	if v != current {
		*dst = &v
	}
}
