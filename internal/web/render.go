package web

import (
	"embed"
	"html/template"
	"io"
	"sync"
	"time"

	"github.com/matst80/ntriprelay/internal/obs"
)

//go:embed templates/*.html
var tmplFS embed.FS

var pages = sync.OnceValue(func() *template.Template {
	funcs := template.FuncMap{
		"kbps": formatKbps,
		"ago":  func(t time.Time) string { return formatAgo(t, time.Now()) },
	}
	// base.html sorts before the pages, so each page's "content" wins
	return template.Must(template.New("pages").Funcs(funcs).ParseFS(tmplFS, "templates/*.html"))
})

// Render executes the named page with data, adding Now. Pages wrap themselves in "base".
func Render(w io.Writer, name string, data map[string]any) error {
	tmpl := pages()
	if data == nil {
		data = map[string]any{}
	}
	data["Now"] = time.Now().Format(time.RFC822)
	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		obs.Error("web.render", obs.Fields{"template": name, "err": err})
		return err
	}
	return nil
}
