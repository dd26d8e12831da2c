package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/nanotodo/internal/validation"
	"github.com/arthur-debert/nanotodo/types"
)

// OutputFormatter renders command results as table, json or yaml.
type OutputFormatter struct {
	format string
	out    io.Writer
	now    func() time.Time
}

// NewOutputFormatter creates a new output formatter
func NewOutputFormatter(format string, out io.Writer) *OutputFormatter {
	return &OutputFormatter{format: strings.ToLower(format), out: out, now: time.Now}
}

// todoView is the yaml shape of a todo; json uses the Todo tags directly.
type todoView struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	DueDate     string `yaml:"dueDate,omitempty"`
	Done        bool   `yaml:"done"`
	OwnerKey    string `yaml:"ownerKey,omitempty"`
	CreatedAt   string `yaml:"createdAt"`
	UpdatedAt   string `yaml:"updatedAt"`
}

func newTodoView(t types.Todo) todoView {
	return todoView{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Done:        t.Done,
		OwnerKey:    t.OwnerKey,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// Todos renders a list.
func (of *OutputFormatter) Todos(todos []types.Todo) error {
	switch of.format {
	case "json":
		return of.writeJSON(todos)
	case "yaml":
		views := make([]todoView, len(todos))
		for i, t := range todos {
			views[i] = newTodoView(t)
		}
		return of.writeYAML(views)
	default:
		if len(todos) == 0 {
			_, err := fmt.Fprintln(of.out, "No todos.")
			return err
		}
		return of.table(todos)
	}
}

// Todo renders a single todo.
func (of *OutputFormatter) Todo(todo *types.Todo) error {
	switch of.format {
	case "json":
		return of.writeJSON(todo)
	case "yaml":
		return of.writeYAML(newTodoView(*todo))
	default:
		return of.table([]types.Todo{*todo})
	}
}

// Deleted renders the outcome of a delete.
func (of *OutputFormatter) Deleted(id string, removed bool) error {
	result := struct {
		ID      string `json:"id" yaml:"id"`
		Removed bool   `json:"removed" yaml:"removed"`
	}{id, removed}

	switch of.format {
	case "json":
		return of.writeJSON(result)
	case "yaml":
		return of.writeYAML(result)
	default:
		msg := fmt.Sprintf("Deleted %s", id)
		if !removed {
			msg = fmt.Sprintf("Nothing to delete: %s", id)
		}
		_, err := fmt.Fprintln(of.out, msg)
		return err
	}
}

// Settings renders a flat key/value map sorted by key.
func (of *OutputFormatter) Settings(settings map[string]interface{}) error {
	switch of.format {
	case "json":
		return of.writeJSON(settings)
	case "yaml":
		return of.writeYAML(settings)
	default:
		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w := tabwriter.NewWriter(of.out, 0, 0, 2, ' ', 0)
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%v\n", k, settings[k])
		}
		return w.Flush()
	}
}

func (of *OutputFormatter) table(todos []types.Todo) error {
	now := of.now()
	w := tabwriter.NewWriter(of.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDONE\tTITLE\tDUE\tUPDATED")
	for _, t := range todos {
		done := " "
		if t.Done {
			done = "x"
		}
		fmt.Fprintf(w, "%s\t[%s]\t%s\t%s\t%s\n", t.ID, done, t.Title, dueLabel(t.DueDate, now), humanize.RelTime(t.UpdatedAt, now, "ago", "from now"))
	}
	return w.Flush()
}

// dueLabel shows a due date relative to now, or the raw value if it does
// not parse.
func dueLabel(due string, now time.Time) string {
	if due == "" {
		return "-"
	}
	at, err := validation.ParseDueDate(due)
	if err != nil {
		return due
	}
	return humanize.RelTime(at, now, "ago", "from now")
}

func (of *OutputFormatter) writeJSON(v interface{}) error {
	enc := json.NewEncoder(of.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (of *OutputFormatter) writeYAML(v interface{}) error {
	enc := yaml.NewEncoder(of.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
