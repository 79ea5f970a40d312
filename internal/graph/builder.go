package graph

import (
	"fmt"
	"sort"
)

const (
	defaultComplexity = "medium"
	defaultHours      = 8
)

var complexityHours = map[string]int{
	"trivial": 1,
	"easy":    4,
	"medium":  8,
	"hard":    16,
	"complex": 24,
}

// ComplexityToHours maps a complexity label to an hour estimate. Unrecognized
// labels fall back to the medium estimate; ok reports whether the label was
// recognized.
func ComplexityToHours(complexity string) (hours int, ok bool) {
	if hours, ok := complexityHours[complexity]; ok {
		return hours, true
	}
	return defaultHours, false
}

// Build validates and orders one synthesis batch. The whole batch is rejected
// on the first dangling dependency or cycle; no partial result is returned.
// Output is deterministic for identical input.
func Build(input Input) (Result, error) {
	n := len(input.Tasks)

	// Batch-local ids: anchor plus position. Stable within the batch and
	// unique across batches as long as anchors differ.
	ids := make([]string, n)
	titleIndex := make(map[string]int, n)
	for i, task := range input.Tasks {
		ids[i] = fmt.Sprintf("task-%d-%d", input.Anchor, i)
		if _, exists := titleIndex[task.Title]; exists {
			return Result{}, &DuplicateTitleError{Title: task.Title}
		}
		titleIndex[task.Title] = i
	}

	// Rewrite title references to index edges. edges[i] holds the indexes of
	// the tasks that task i depends on.
	edges := make([][]int, n)
	for i, task := range input.Tasks {
		for _, depTitle := range task.Dependencies {
			depIndex, ok := titleIndex[depTitle]
			if !ok {
				return Result{}, &DanglingDependencyError{TaskTitle: task.Title, MissingTitle: depTitle}
			}
			edges[i] = append(edges[i], depIndex)
		}
	}

	if cycle := findCycle(edges); cycle != nil {
		titles := make([]string, len(cycle))
		for i, index := range cycle {
			titles[i] = input.Tasks[index].Title
		}
		return Result{}, &CycleDetectedError{Titles: titles}
	}

	order := topologicalOrder(input.Tasks, edges)

	var warnings []string
	tasks := make([]Task, n)
	for i, raw := range input.Tasks {
		hours, known := ComplexityToHours(raw.EstimatedComplexity)
		complexity := raw.EstimatedComplexity
		if !known {
			if complexity == "" {
				complexity = defaultComplexity
			}
			warnings = append(warnings, fmt.Sprintf("task %q: unrecognized complexity %q, assuming medium", raw.Title, raw.EstimatedComplexity))
		}

		dependencies := make([]string, len(edges[i]))
		for j, depIndex := range edges[i] {
			dependencies[j] = ids[depIndex]
		}
		skills := raw.RequiredSkills
		if skills == nil {
			skills = []string{}
		}

		tasks[i] = Task{
			ID:             ids[i],
			Title:          raw.Title,
			Description:    raw.Description,
			Epic:           raw.Epic,
			Type:           raw.Type,
			Priority:       raw.Priority,
			Complexity:     complexity,
			Dependencies:   dependencies,
			RequiredSkills: skills,
			EstimatedHours: hours,
			Order:          order[i],
			SuggestedOrder: raw.SuggestedOrder,
		}
	}

	epics := make([]Epic, len(input.Epics))
	for i, raw := range input.Epics {
		epics[i] = Epic{
			ID:          fmt.Sprintf("epic-%d-%d", input.Anchor, i),
			Name:        raw.Name,
			Description: raw.Description,
			Priority:    raw.Priority,
		}
	}

	return Result{Epics: epics, Tasks: tasks, Warnings: warnings}, nil
}

// findCycle runs a depth-first search with recursion-stack tracking and
// returns the node indexes on the first cycle found, or nil if the edge set
// is acyclic.
func findCycle(edges [][]int) []int {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make([]int, len(edges))
	stack := make([]int, 0, len(edges))

	var visit func(node int) []int
	visit = func(node int) []int {
		state[node] = inStack
		stack = append(stack, node)
		for _, next := range edges[node] {
			switch state[next] {
			case inStack:
				// Slice the stack from the first occurrence of next: that
				// suffix is the cycle.
				for i, member := range stack {
					if member == next {
						return append([]int(nil), stack[i:]...)
					}
				}
			case unvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[node] = done
		return nil
	}

	for node := range edges {
		if state[node] == unvisited {
			if cycle := visit(node); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// topologicalOrder assigns 1-based order values via Kahn's algorithm. Ties
// among simultaneously available nodes break by suggestedOrder ascending,
// then by input position, so identical input always yields identical output.
// Must only be called with an acyclic edge set.
func topologicalOrder(tasks []RawTask, edges [][]int) []int {
	n := len(tasks)
	indegree := make([]int, n)
	dependents := make([][]int, n)
	for node, deps := range edges {
		indegree[node] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], node)
		}
	}

	available := make([]int, 0, n)
	for node := 0; node < n; node++ {
		if indegree[node] == 0 {
			available = append(available, node)
		}
	}

	order := make([]int, n)
	next := 1
	for len(available) > 0 {
		sort.Slice(available, func(i, j int) bool {
			a, b := available[i], available[j]
			if tasks[a].SuggestedOrder != tasks[b].SuggestedOrder {
				return tasks[a].SuggestedOrder < tasks[b].SuggestedOrder
			}
			return a < b
		})

		node := available[0]
		available = available[1:]
		order[node] = next
		next++

		for _, dependent := range dependents[node] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				available = append(available, dependent)
			}
		}
	}
	return order
}
