package serv

import (
	"html/template"
	"net/http"

	"github.com/go-http-utils/headers"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var webUITmpl = template.Must(template.New("webui").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.AppName}}</title>
<style>
body { font-family: sans-serif; margin: 2em auto; max-width: 60em; }
textarea { width: 100%; font-size: 1.1em; }
pre { background: #f4f4f4; padding: 1em; overflow-x: auto; }
.collections { color: #666; }
</style>
</head>
<body>
<h1>{{.AppName}}</h1>
<p class="collections">Collections: {{range $i, $c := .Collections}}{{if $i}}, {{end}}{{$c}}{{end}}</p>
<form method="post" action="/">
<textarea name="query" rows="3" placeholder="sales where year > 2020 show total sales grouped by region">{{.Query}}</textarea>
<p><button type="submit">Translate</button></p>
</form>
{{if .Error}}<p><strong>{{.Error}}</strong></p>{{end}}
{{if .Result}}<pre>{{.Result}}</pre>{{end}}
</body>
</html>
`))

type webUIPage struct {
	AppName     string
	Collections []string
	Query       string
	Result      string
	Error       string
}

// webUIHandler serves a form that translates a sentence and shows the
// resulting pipeline
func (s1 *HttpService) webUIHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := s1.Load().(*service)

		name := s.conf.AppName
		if name == "" {
			name = serverName
		}

		page := webUIPage{
			AppName:     cases.Title(language.English).String(name),
			Collections: s.engine.Schema().Names(),
		}

		if r.Method == http.MethodPost {
			r.Body = http.MaxBytesReader(w, r.Body, maxReadBytes)
			page.Query = r.PostFormValue("query")

			if page.Query == "" {
				page.Error = errQueryRequired.Error()
			} else if res, err := s.engine.Translate(r.Context(), page.Query); err != nil {
				page.Error = err.Error()
			} else if b, err := res.Pretty(); err != nil {
				page.Error = err.Error()
			} else {
				s.metrics.observeResult(res)
				page.Result = string(b)
			}
		}

		w.Header().Set(headers.ContentType, "text/html; charset=utf-8")
		if err := webUITmpl.Execute(w, page); err != nil {
			s.log.Errorf("web ui: %s", err)
		}
	})
}
