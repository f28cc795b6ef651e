package logger

import (
	"sort"
	"sync"
)

// ComponentCounts is the number of warnings and errors logged by one component.
type ComponentCounts struct {
	Component string
	Warnings  int
	Errors    int
}

var (
	countsMu sync.Mutex
	counts   = map[string]*ComponentCounts{}
)

func counter(component string) *ComponentCounts {
	c, ok := counts[component]
	if !ok {
		c = &ComponentCounts{Component: component}
		counts[component] = c
	}
	return c
}

func recordWarn(component string) {
	countsMu.Lock()
	counter(component).Warnings++
	countsMu.Unlock()
}

func recordError(component string) {
	countsMu.Lock()
	counter(component).Errors++
	countsMu.Unlock()
}

// Counts returns a snapshot of per-component warning and error totals,
// sorted by component name.
func Counts() []ComponentCounts {
	countsMu.Lock()
	defer countsMu.Unlock()

	out := make([]ComponentCounts, 0, len(counts))
	for _, c := range counts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Component < out[j].Component })
	return out
}

// ResetCounts clears all totals.
func ResetCounts() {
	countsMu.Lock()
	counts = map[string]*ComponentCounts{}
	countsMu.Unlock()
}

// LogSummary writes one line with the warning and error totals of the run.
func (l *Log) LogSummary() {
	warnings, errors := 0, 0
	byComponent := Fields{}
	for _, c := range Counts() {
		warnings += c.Warnings
		errors += c.Errors
		byComponent[c.Component] = map[string]int{"warnings": c.Warnings, "errors": c.Errors}
	}
	l.WithComponent("summary").WithFields(Fields{
		"warnings":     warnings,
		"errors":       errors,
		"by_component": byComponent,
	}).Info("run summary")
}
