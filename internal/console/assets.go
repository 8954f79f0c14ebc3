package console

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path"
	"time"
)

//go:embed templates static
var assets embed.FS

// layoutFile wraps every page; each page defines "content".
const layoutFile = "templates/layout.html"

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02 15:04")
	},
	"datep": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	},
	"duration": func(seconds int64) string {
		return (time.Duration(seconds) * time.Second).String()
	},
	"add": func(a, b int) int { return a + b },
	"str": func(v any) string { return fmt.Sprint(v) },
}

// parsePages parses the layout with each page template.
func parsePages() (map[string]*template.Template, error) {
	files, err := fs.Glob(assets, "templates/*.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template, len(files))
	for _, f := range files {
		if f == layoutFile {
			continue
		}
		name := path.Base(f)
		name = name[:len(name)-len(path.Ext(name))]
		t, err := template.New(name).Funcs(funcs).ParseFS(assets, layoutFile, f)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", f, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// staticHandler serves the stylesheet. If OVPNADMIN_DEV=1 is set, it reads
// files from disk on each request for live reloading.
func staticHandler() http.Handler {
	if os.Getenv("OVPNADMIN_DEV") == "1" {
		return devHandler()
	}
	sub, _ := fs.Sub(assets, "static")
	return http.FileServer(http.FS(sub))
}

func devHandler() http.Handler {
	fsrv := http.FileServer(http.Dir("internal/console/static"))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		fsrv.ServeHTTP(w, r)
	})
}
