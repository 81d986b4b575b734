package http

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"
)

var pages = template.Must(template.New("pages").Parse(`
{{define "layout_top"}}<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
</head>
<body>
{{end}}
{{define "layout_bottom"}}</body>
</html>
{{end}}
{{define "greet_form"}}<form method="post" action="/greet">
    <label for="name">Your name</label>
    <input id="name" name="name" type="text" autocomplete="name">
    <button type="submit">Greet me</button>
</form>
{{end}}
{{define "welcome"}}{{template "layout_top" .}}<h1>Welcome to callvoice</h1>
<p>This service answers telephony call events with synthesized Telugu speech.</p>
<p>Point your provider's voice URL at <code>/voice-response</code>.</p>
{{template "greet_form" .}}{{template "layout_bottom" .}}{{end}}
{{define "greet"}}{{template "layout_top" .}}{{if .Name}}<h1>Hello, {{.Name}}!</h1>
<p><a href="/">Back</a></p>
{{else}}<h1>Greet</h1>
{{template "greet_form" .}}{{end}}{{template "layout_bottom" .}}{{end}}
`))

type pageData struct {
	Title string
	Name  string
}

func renderPage(w http.ResponseWriter, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("rendering page", "page", name, "error", err)
	}
}

func handleWelcome(w http.ResponseWriter, r *http.Request) {
	renderPage(w, "welcome", pageData{Title: "callvoice"})
}

func handleGreetForm(w http.ResponseWriter, r *http.Request) {
	renderPage(w, "greet", pageData{Title: "Greet"})
}

func handleGreet(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(r.PostForm.Get("name"))
	if name == "" {
		name = "Guest"
	}
	renderPage(w, "greet", pageData{Title: "Greet", Name: name})
}
