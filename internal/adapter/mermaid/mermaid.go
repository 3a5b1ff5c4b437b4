// Package mermaid renders computed schedules as Mermaid flowcharts
// (activity on node).
package mermaid

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Strob0t/PertForge/internal/domain/schedule"
)

const (
	critClass = "classDef crit stroke:#d33,stroke-width:3px,color:#d33;"
	critLink  = "stroke:#d33,stroke-width:3px"
)

// Options controls what the diagram shows.
type Options struct {
	// Dates adds ES/EF and slack to every node label.
	Dates bool
	// CriticalEdges overrides the edges drawn as critical. Nil means
	// the result's own CriticalEdges.
	CriticalEdges []schedule.Edge
}

// Render returns the diagram for r as a string.
func Render(r *schedule.Result, opts Options) string {
	var b strings.Builder
	_ = Write(&b, r, opts)
	return b.String()
}

// Write writes the diagram for r to w. Node identifiers are positional
// (t0, t1, ...) so that task names with spaces or punctuation stay valid;
// the task name is kept as the node label.
func Write(w io.Writer, r *schedule.Result, opts Options) error {
	ew := &errWriter{w: w}

	ids := make(map[string]string, len(r.Order))
	ew.line("flowchart LR")
	for i, name := range r.Order {
		id := "t" + strconv.Itoa(i)
		ids[name] = id
		ew.line(fmt.Sprintf("  %s[\"%s\"]", id, label(r.Tasks[name], opts.Dates)))
	}

	critical := opts.CriticalEdges
	if critical == nil {
		critical = r.CriticalEdges
	}
	crit := make(map[schedule.Edge]bool, len(critical))
	for _, e := range critical {
		crit[e] = true
	}

	var critLinks []string
	for i, e := range r.Edges {
		ew.line(fmt.Sprintf("  %s --> %s", ids[e.From], ids[e.To]))
		if crit[e] {
			critLinks = append(critLinks, strconv.Itoa(i))
		}
	}

	ew.line(critClass)
	if len(r.CriticalPath) > 0 {
		nodes := make([]string, len(r.CriticalPath))
		for i, name := range r.CriticalPath {
			nodes[i] = ids[name]
		}
		ew.line("class " + strings.Join(nodes, ",") + " crit")
	}
	if len(critLinks) > 0 {
		ew.line("linkStyle " + strings.Join(critLinks, ",") + " " + critLink)
	}
	return ew.err
}

func label(t schedule.TaskSchedule, dates bool) string {
	name := escape(t.Name)
	if !dates {
		return name
	}
	return fmt.Sprintf("%s<br/>d=%d ES=%d EF=%d<br/>slack=%d", name, t.Duration, t.EarliestStart, t.EarliestFinish, t.TotalSlack)
}

var labelEscaper = strings.NewReplacer(
	`"`, "#quot;",
	"<", "#lt;",
	">", "#gt;",
)

func escape(s string) string { return labelEscaper.Replace(s) }

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) line(s string) {
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, s+"\n")
}
