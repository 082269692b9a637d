package main

import (
	"bytes"
	"fmt"
	"github.com/myrjola/decisionverse/internal/contexthelpers"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/models"
	"github.com/myrjola/decisionverse/ui"
	"html/template"
	"log/slog"
	"net/http"
	"time"
)

type BaseTemplateData struct {
	Authenticated bool
	CurrentPath   string
}

func newBaseTemplateData(r *http.Request) BaseTemplateData {
	ctx := r.Context()
	return BaseTemplateData{
		Authenticated: contexthelpers.IsAuthenticated(ctx),
		CurrentPath:   contexthelpers.CurrentPath(ctx),
	}
}

var templateFuncs = template.FuncMap{
	// nonce and csrf are replaced per request in render.
	"nonce": func() template.HTMLAttr {
		panic("not implemented")
	},
	"csrf": func() template.HTML {
		panic("not implemented")
	},
	"decision": func(d models.Decision) string {
		if d == models.DecisionYes {
			return "SÍ"
		}
		return "NO"
	},
	"outcome": func(o models.Outcome) string {
		if o == models.OutcomeSuccess {
			return "ÉXITO"
		}
		return "FALLO"
	},
	"seconds": func(ms int64) string {
		return fmt.Sprintf("%.1f s", float64(ms)/1000) //nolint:mnd // milliseconds
	},
	"percent": func(v float64) string {
		return fmt.Sprintf("%.0f %%", v)
	},
	"probability": func(p float64) string {
		return fmt.Sprintf("%.0f %%", p*100) //nolint:mnd // percent
	},
	"date": func(t time.Time) string {
		return t.Local().Format("02/01/2006 15:04")
	},
	"inc": func(i int) int {
		return i + 1
	},
}

// pageTemplate returns the template for the given page.
//
// pageName corresponds to a directory inside ui/templates/pages. It has to define a template named "page".
func (app *application) pageTemplate(pageName string) (*template.Template, error) {
	t, err := template.New(pageName).Funcs(templateFuncs).ParseFS(ui.Files,
		"templates/base.gohtml",
		"templates/partials/*.gohtml",
		fmt.Sprintf("templates/pages/%s/*.gohtml", pageName),
	)
	if err != nil {
		return nil, errors.Wrap(err, "parse page templates", slog.String("page", pageName))
	}
	return t, nil
}

func (app *application) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	var (
		err error
		t   *template.Template
	)

	if t, err = app.pageTemplate(page); err != nil {
		app.serverError(w, r, err)
		return
	}

	buf := new(bytes.Buffer)
	ctx := r.Context()
	nonce := fmt.Sprintf("nonce=\"%s\"", contexthelpers.CSPNonce(ctx))
	csrf := fmt.Sprintf("<input type=\"hidden\" name=\"csrf_token\" value=\"%s\"/>", contexthelpers.CSRFToken(ctx))
	t.Funcs(template.FuncMap{
		"nonce": func() template.HTMLAttr {
			return template.HTMLAttr(nonce) //nolint:gosec // generated by the server
		},
		"csrf": func() template.HTML {
			return template.HTML(csrf) //nolint:gosec // generated by the server
		},
	})
	if err = t.ExecuteTemplate(buf, "base", data); err != nil {
		app.serverError(w, r, errors.Wrap(err, "execute template", slog.String("page", page)))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	_, _ = buf.WriteTo(w)
}
