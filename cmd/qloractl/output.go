package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/qlora-pipeline/controlplane/internal/domain/model"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func jobTimes(j model.Job) (started, finished time.Time) {
	switch st := j.State.(type) {
	case model.Running:
		return st.StartedAt, time.Time{}
	case model.Completed:
		return st.StartedAt, st.FinishedAt
	case model.Failed:
		return st.StartedAt, st.FinishedAt
	}
	return time.Time{}, time.Time{}
}

func printJobs(w io.Writer, jobs []model.Job) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tCREATED\tSUMMARY")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", j.ID, j.Kind, j.Status(), formatTime(j.CreatedAt), truncate(j.Summary, 60))
	}
	return tw.Flush()
}

func printJob(w io.Writer, j model.Job) error {
	started, finished := jobTimes(j)
	tw := newTable(w)
	fmt.Fprintf(tw, "ID:\t%s\n", j.ID)
	fmt.Fprintf(tw, "Kind:\t%s\n", j.Kind)
	fmt.Fprintf(tw, "Status:\t%s\n", j.Status())
	fmt.Fprintf(tw, "Summary:\t%s\n", j.Summary)
	fmt.Fprintf(tw, "Created:\t%s\n", formatTime(j.CreatedAt))
	fmt.Fprintf(tw, "Started:\t%s\n", formatTime(started))
	fmt.Fprintf(tw, "Finished:\t%s\n", formatTime(finished))
	if err := tw.Flush(); err != nil {
		return err
	}

	switch st := j.State.(type) {
	case model.Failed:
		fmt.Fprintf(w, "Error: %s\n", st.Error)
	case model.Completed:
		if st.Result != nil {
			fmt.Fprintln(w, "Result:")
			return writeJSON(w, st.Result)
		}
	}
	return nil
}

func printStats(w io.Writer, s model.JobStats) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "PENDING\tRUNNING\tCOMPLETED\tFAILED")
	fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n", s.Pending, s.Running, s.Completed, s.Failed)
	return tw.Flush()
}

func printParams(w io.Writer, specs []model.TrainParamSpec) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tTYPE\tDEFAULT\tCATEGORY")
	for _, p := range specs {
		typ := p.Type
		if p.Subtype != "" {
			typ += "[" + p.Subtype + "]"
		}
		def := "-"
		if p.Default != nil {
			raw, _ := json.Marshal(p.Default)
			def = string(raw)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, typ, def, p.Category)
	}
	return tw.Flush()
}

func printHistory(w io.Writer, entries []*model.HistoryEntry) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tFINISHED\tLOG LINES\tSUMMARY")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.JobID, e.Kind, e.Status, formatTime(e.FinishedAt), e.LogTotal, truncate(e.Summary, 60))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func printAdapters(w io.Writer, adapters []model.AdapterEntry) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tTRAINED\tPATH")
	for _, a := range adapters {
		name, date := a.Name(), a.TrainingDate()
		if name == "" {
			name = "-"
		}
		if date == "" {
			date = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, date, a.Path())
	}
	return tw.Flush()
}

func printCatalog(w io.Writer, cat model.StorageCatalog) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "GROUP\tPATH\tLABEL")
	groups := []struct {
		name    string
		entries []model.CatalogEntry
	}{
		{"models", cat.Models},
		{"merge", cat.Merge},
		{"predictions", cat.Predictions},
		{"references", cat.References},
		{"evaluation", cat.EvaluationResults},
	}
	for _, g := range groups {
		for _, e := range g.entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", g.name, e.Path, e.Label)
		}
	}
	return tw.Flush()
}
