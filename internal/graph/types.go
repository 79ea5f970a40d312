// Package graph turns a raw, title-referenced task list into a validated,
// deterministically ordered dependency graph. Build is pure: no I/O, no
// persisted intermediate state.
package graph

import (
	"fmt"
	"strings"
)

// RawEpic and RawTask mirror the payload emitted by the generative-text
// provider. Dependencies reference other tasks by title; Build rewrites them
// to batch-local ids.
type RawEpic struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type RawTask struct {
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	Epic                string   `json:"epic"`
	Type                string   `json:"type"`
	Priority            string   `json:"priority"`
	EstimatedComplexity string   `json:"estimatedComplexity"`
	Dependencies        []string `json:"dependencies"`
	RequiredSkills      []string `json:"requiredSkills"`
	SuggestedOrder      int      `json:"suggestedOrder"`
}

// Input is one synthesis batch. Anchor seeds the batch-local id space; callers
// pass a value unique across batches (a timestamp in practice) so generated
// ids never collide with already-persisted ones.
type Input struct {
	Anchor int64
	Epics  []RawEpic
	Tasks  []RawTask
}

type Epic struct {
	ID          string
	Name        string
	Description string
	Priority    string
}

type Task struct {
	ID             string
	Title          string
	Description    string
	Epic           string
	Type           string
	Priority       string
	Complexity     string
	Dependencies   []string
	RequiredSkills []string
	EstimatedHours int
	Order          int
	SuggestedOrder int
}

// Result is the fully resolved graph: ids assigned, dependencies rewritten,
// order monotonic with respect to the dependency partial order.
type Result struct {
	Epics    []Epic
	Tasks    []Task
	Warnings []string
}

// DanglingDependencyError rejects a batch containing a dependency title that
// resolves to no task in the batch.
type DanglingDependencyError struct {
	TaskTitle    string
	MissingTitle string
}

func (e *DanglingDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task %q", e.TaskTitle, e.MissingTitle)
}

// CycleDetectedError rejects a batch whose dependency edges form a cycle.
// Titles lists the tasks on the detected cycle in traversal order.
type CycleDetectedError struct {
	Titles []string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Titles, " -> "))
}

// DuplicateTitleError rejects a batch in which two tasks share a title, since
// title-based dependency references would be ambiguous.
type DuplicateTitleError struct {
	Title string
}

func (e *DuplicateTitleError) Error() string {
	return fmt.Sprintf("duplicate task title %q in batch", e.Title)
}
