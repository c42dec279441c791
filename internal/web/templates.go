package web

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"leasesync/internal/logs"
	"leasesync/internal/runner"
)

const layoutTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>leasesync</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
.success { color: #2a7; } .warnings { color: #c80; } .fatal { color: #c22; }
</style>
</head>
<body>
<h1>leasesync</h1>
{{template "body" .}}
</body>
</html>`

const statusTemplate = `{{define "body"}}
{{with .Report}}
<h2>Last run <span class="{{.Outcome}}">{{.Outcome}}</span></h2>
<table>
<tr><th>Run</th><td>{{.RunID}}</td></tr>
<tr><th>Started</th><td>{{since .Started}}</td></tr>
<tr><th>Duration</th><td>{{.Finished.Sub .Started}}</td></tr>
<tr><th>Dry run</th><td>{{.DryRun}}</td></tr>
<tr><th>Commands</th><td>{{.Applied}} applied, {{.Failed}} failed</td></tr>
<tr><th>Tracking calls</th><td>{{.PresenceApplied}} applied, {{.PresenceFailed}} failed</td></tr>
{{if .Error}}<tr><th>Error</th><td class="fatal">{{.Error}}</td></tr>{{end}}
{{if .Unreachable}}<tr><th>Unreachable</th><td class="fatal">{{join .Unreachable}}</td></tr>{{end}}
</table>
{{if .MissingScopes}}
<h3>Missing DHCP servers</h3>
<table>
<tr><th>Router</th><th>Servers</th></tr>
{{range $router, $scopes := .MissingScopes}}<tr><td>{{$router}}</td><td>{{join $scopes}}</td></tr>
{{end}}</table>
{{end}}
{{if .Planned}}
<h3>Planned changes</h3>
<table>
<tr><th>Target</th><th>Command</th></tr>
{{range .Planned}}<tr><td>{{.Target}}</td><td><code>{{.Command}}</code></td></tr>
{{end}}</table>
{{end}}
{{else}}
<p>No run has finished yet.</p>
{{end}}
<h3>Recent log</h3>
<table>
{{range .Logs}}<tr><td>{{.Time.Format "2006-01-02 15:04:05"}}</td><td class="{{.Level}}">{{.Level}}</td><td>{{.Message}}</td></tr>
{{end}}</table>
{{end}}`

// PageData holds data for the status page
type PageData struct {
	Report *runner.Report
	Logs   []logs.Entry
}

// TemplateManager handles template parsing and rendering
type TemplateManager struct {
	templates map[string]*template.Template
}

// NewTemplateManager creates a new template manager
func NewTemplateManager() *TemplateManager {
	return &TemplateManager{templates: make(map[string]*template.Template)}
}

// LoadTemplates parses every page against the shared layout
func (tm *TemplateManager) LoadTemplates() error {
	funcs := template.FuncMap{
		"join": func(items []string) string { return strings.Join(items, ", ") },
		"since": func(t time.Time) string {
			return fmt.Sprintf("%s (%s ago)", t.Format(time.RFC3339), time.Since(t).Round(time.Second))
		},
	}

	pages := map[string]string{
		"status": statusTemplate,
	}

	for name, body := range pages {
		tmpl, err := template.New(name).Funcs(funcs).Parse(layoutTemplate)
		if err != nil {
			return fmt.Errorf("parse layout for %s: %w", name, err)
		}
		if _, err := tmpl.Parse(body); err != nil {
			return fmt.Errorf("parse template %s: %w", name, err)
		}
		tm.templates[name] = tmpl
	}

	return nil
}

// Render renders a template with the given data
func (tm *TemplateManager) Render(name string, data any) (string, error) {
	tmpl, exists := tm.templates[name]
	if !exists {
		return "", fmt.Errorf("template %s not found", name)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}

// HasTemplate checks if a template exists
func (tm *TemplateManager) HasTemplate(name string) bool {
	_, exists := tm.templates[name]
	return exists
}
