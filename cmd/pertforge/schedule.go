package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Strob0t/PertForge/internal/adapter/mermaid"
	"github.com/Strob0t/PertForge/internal/domain/schedule"
	"github.com/Strob0t/PertForge/internal/taskfile"
)

// runSchedule computes the schedule of a task file and prints it as a table
// or as a Mermaid flowchart.
func runSchedule(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	file := fs.String("f", "", "task file, .json, .yaml, .yml or .toml (required)")
	t0 := fs.Int("t0", schedule.DefaultProjectStart, "project start, overrides the file")
	asMermaid := fs.Bool("mermaid", false, "print a Mermaid flowchart instead of a table")
	dates := fs.Bool("dates", false, "include dates in Mermaid node labels")
	strict := fs.Bool("strict", false, "only mark critical edges without a gap")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *file == "" {
		return errors.New("-f is required")
	}

	tf, err := taskfile.Load(*file)
	if err != nil {
		return err
	}

	start := tf.Start()
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t0" {
			start = *t0
		}
	})

	res, err := schedule.Compute(tf.RawTasks(), start)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", *file, err)
	}

	edges := res.CriticalEdges
	if *strict {
		edges = schedule.StrictCriticalEdges(res)
	}

	if *asMermaid {
		return mermaid.Write(out, res, mermaid.Options{Dates: *dates, CriticalEdges: edges})
	}
	return writeTable(out, tf.Name, res)
}

func writeTable(out io.Writer, name string, res *schedule.Result) error {
	if name != "" {
		_, _ = fmt.Fprintf(out, "Project: %s\n", name)
	}
	_, _ = fmt.Fprintf(out, "Start: %d  Finish: %d  Duration: %d\n\n",
		res.ProjectStart, res.ProjectFinish, res.Duration())

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TASK\tDUR\tES\tEF\tLS\tLF\tSLACK\tFREE\tCRIT")
	for _, n := range res.Order {
		t := res.Tasks[n]
		crit := ""
		if t.IsCritical {
			crit = "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			t.Name, t.Duration, t.EarliestStart, t.EarliestFinish,
			t.LatestStart, t.LatestFinish, t.TotalSlack, t.FreeSlack, crit)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(out, "\nCritical path: %s\n", strings.Join(res.CriticalPath, " -> "))
	return err
}
