package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"lower": strings.ToLower,
	"join":  func(items []string) string { return strings.Join(items, ", ") },
}).Parse(reportTemplateText))

// TemplateData is the report model: epics in creation order, tasks in
// execution order within each epic.
type TemplateData struct {
	Title       string
	ProjectID   string
	GeneratedAt time.Time
	TotalTasks  int
	TotalHours  int
	Epics       []TemplateEpic
}

type TemplateEpic struct {
	Name        string
	Description string
	Priority    string
	Tasks       []TemplateTask
}

type TemplateTask struct {
	Order          int
	Title          string
	Status         string
	Priority       string
	AssignedTo     string
	EstimatedHours int
	Dependencies   []string
}

// RenderReportHTML renders the task breakdown report.
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const reportTemplateText = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    h2 { margin-top: 2rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; font-size: 0.9em; }
    th { background: #f5f5f5; }
    .status { text-transform: uppercase; font-size: 0.8em; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">
    Project {{.ProjectID}} | {{.TotalTasks}} tasks | {{.TotalHours}} estimated hours |
    Generated {{.GeneratedAt.Format "Jan 2, 2006"}}
  </div>
  {{range .Epics}}
  <h2>{{.Name}}{{if .Priority}} <small>({{.Priority | lower}})</small>{{end}}</h2>
  {{if .Description}}<p>{{.Description}}</p>{{end}}
  <table>
    <tr><th>#</th><th>Task</th><th>Status</th><th>Priority</th><th>Assignee</th><th>Hours</th><th>Depends on</th></tr>
    {{range .Tasks}}
    <tr>
      <td>{{.Order}}</td>
      <td>{{.Title}}</td>
      <td class="status">{{.Status}}</td>
      <td>{{.Priority}}</td>
      <td>{{.AssignedTo}}</td>
      <td>{{.EstimatedHours}}</td>
      <td>{{join .Dependencies}}</td>
    </tr>
    {{end}}
  </table>
  {{end}}
</body>
</html>`
