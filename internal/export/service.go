package export

import (
	"context"
	"fmt"
	"time"

	"taskforge/api/internal/store"
)

type dataStore interface {
	ListEpics(ctx context.Context, projectID string) ([]store.Epic, error)
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]store.Task, error)
}

// Service builds task breakdown reports.
type Service struct {
	store dataStore
}

func NewService(store dataStore) *Service {
	return &Service{store: store}
}

// Export renders the project report in the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	data, err := s.buildTemplateData(ctx, req)
	if err != nil {
		return nil, err
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	switch req.Format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(data.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return exportPDF(html, data.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

func (s *Service) buildTemplateData(ctx context.Context, req Request) (TemplateData, error) {
	epics, err := s.store.ListEpics(ctx, req.ProjectID)
	if err != nil {
		return TemplateData{}, fmt.Errorf("list epics: %w", err)
	}
	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{ProjectID: req.ProjectID})
	if err != nil {
		return TemplateData{}, fmt.Errorf("list tasks: %w", err)
	}

	titleByID := make(map[string]string, len(tasks))
	for _, task := range tasks {
		titleByID[task.ID] = task.Title
	}

	byEpic := make(map[string][]TemplateTask)
	totalHours := 0
	for _, task := range tasks {
		deps := make([]string, 0, len(task.Dependencies))
		for _, depID := range task.Dependencies {
			if title, ok := titleByID[depID]; ok {
				deps = append(deps, title)
			} else {
				deps = append(deps, depID)
			}
		}
		byEpic[task.Epic] = append(byEpic[task.Epic], TemplateTask{
			Order:          task.Order,
			Title:          task.Title,
			Status:         task.Status,
			Priority:       task.Priority,
			AssignedTo:     task.AssignedTo,
			EstimatedHours: task.EstimatedHours,
			Dependencies:   deps,
		})
		totalHours += task.EstimatedHours
	}

	data := TemplateData{
		Title:       req.Title,
		ProjectID:   req.ProjectID,
		GeneratedAt: time.Now(),
		TotalTasks:  len(tasks),
		TotalHours:  totalHours,
	}
	if data.Title == "" {
		data.Title = "Task Breakdown"
	}

	seen := make(map[string]bool)
	for _, epic := range epics {
		data.Epics = append(data.Epics, TemplateEpic{
			Name:        epic.Name,
			Description: epic.Description,
			Priority:    epic.Priority,
			Tasks:       byEpic[epic.Name],
		})
		seen[epic.Name] = true
	}
	// Tasks can reference epics that were never persisted; group them too so
	// the report never silently drops work.
	for _, task := range tasks {
		if seen[task.Epic] {
			continue
		}
		seen[task.Epic] = true
		name := task.Epic
		if name == "" {
			name = "Unassigned"
		}
		data.Epics = append(data.Epics, TemplateEpic{
			Name:  name,
			Tasks: byEpic[task.Epic],
		})
	}
	return data, nil
}
