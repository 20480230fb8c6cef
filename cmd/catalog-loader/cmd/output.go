package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Sternrassler/catalog-loader/pkg/catalog"
	"github.com/Sternrassler/catalog-loader/pkg/loader"
	"github.com/spf13/viper"
)

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func jsonOutput(v *viper.Viper) bool {
	return v.GetString(keyOutput) == "json"
}

func printItems(w io.Writer, items []catalog.Item, header bool) error {
	tw := newTabWriter(w)
	if header {
		tw.writef("ID\tTITLE\tPRICE\tTHUMBNAIL\n")
	}
	for _, it := range items {
		tw.writef("%d\t%s\t%.2f\t%s\n", it.ID, it.Title, it.Price, it.Thumbnail)
	}
	return tw.finish()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// snapshotView is the JSON form of a loader snapshot.
type snapshotView struct {
	Mode      string         `json:"mode"`
	Term      string         `json:"term,omitempty"`
	Offset    int            `json:"offset"`
	PageSize  int            `json:"page_size"`
	Count     int            `json:"count"`
	Exhausted bool           `json:"exhausted"`
	Error     string         `json:"error,omitempty"`
	Items     []catalog.Item `json:"items"`
}

func viewOf(s loader.Snapshot) snapshotView {
	view := snapshotView{
		Mode:      s.Mode.String(),
		Term:      s.Term,
		Offset:    s.Offset,
		PageSize:  s.PageSize,
		Count:     len(s.Items),
		Exhausted: s.Exhausted,
		Items:     s.Items,
	}
	if s.Err != nil {
		view.Error = s.Err.Error()
	}
	return view
}

func printSnapshot(w io.Writer, v *viper.Viper, s loader.Snapshot) error {
	if jsonOutput(v) {
		return printJSON(w, viewOf(s))
	}
	if err := printItems(w, s.Items, true); err != nil {
		return err
	}
	status := fmt.Sprintf("%d items (%s", len(s.Items), s.Mode)
	if s.Term != "" {
		status += fmt.Sprintf(" %q", s.Term)
	} else {
		status += fmt.Sprintf(", skip=%d", s.Offset)
	}
	if s.Exhausted && s.Mode == loader.ModeBrowse {
		status += ", end of catalog"
	}
	status += ")"
	if _, err := fmt.Fprintln(w, status); err != nil {
		return err
	}
	if s.Err != nil {
		_, err := fmt.Fprintf(w, "error: %v\n", s.Err)
		return err
	}
	return nil
}
