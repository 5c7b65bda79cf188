package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kuhandran/Content-Hub-sub001/internal/client"
	"github.com/kuhandran/Content-Hub-sub001/internal/content"
	"github.com/kuhandran/Content-Hub-sub001/internal/model"
	"github.com/kuhandran/Content-Hub-sub001/internal/resolve"
	contentsync "github.com/kuhandran/Content-Hub-sub001/internal/sync"
	"github.com/kuhandran/Content-Hub-sub001/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(data))
}

// printResult writes a resolved item: the payload, pretty-printed when it
// is JSON, followed by where it came from.
func printResult(w io.Writer, res *resolve.Result) {
	if len(res.Content) > 0 {
		var pretty any
		if json.Unmarshal(res.Content, &pretty) == nil {
			printJSON(w, pretty)
		} else {
			fmt.Fprintln(w, string(res.Content))
		}
	} else if res.Text != "" {
		fmt.Fprintln(w, res.Text)
	}
	fmt.Fprintf(w, "%s %s  tier=%s  hash=%s\n",
		ui.RenderMuted("#"),
		res.Key,
		ui.RenderTier(string(res.SourceTier)),
		shortHash(res.ContentHash),
	)
}

func printCollections(w io.Writer, recs []*model.CollectionRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LANG\tFOLDER\tFILE\tHASH\tUPDATED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Language, r.Type, r.Filename, shortHash(r.ContentHash), formatTime(r.UpdatedAt))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d collections\n", len(recs))
}

func printFiles(w io.Writer, table model.Table, files []content.FileSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if table.IsBinary() {
		fmt.Fprintln(tw, "FILE\tMIME\tSIZE\tHASH\tUPDATED")
		for _, f := range files {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", f.Filename, f.MimeType, f.Size, shortHash(f.ContentHash), formatTime(f.UpdatedAt))
		}
	} else {
		fmt.Fprintln(tw, "FILE\tTYPE\tHASH\tUPDATED")
		for _, f := range files {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Filename, f.FileType, shortHash(f.ContentHash), formatTime(f.UpdatedAt))
		}
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d files in %s\n", len(files), table)
}

func printWrite(w io.Writer, what string, resp *client.WriteResponse) {
	if resp.Deleted {
		fmt.Fprintf(w, "%s %s\n", ui.RenderOK("deleted"), what)
	} else {
		fmt.Fprintf(w, "%s %s\n", ui.RenderOK("saved"), what)
	}
	if resp.Warning != "" {
		fmt.Fprintf(w, "%s %s\n", ui.RenderWarn("warning:"), resp.Warning)
	}
}

func printPumpReport(w io.Writer, r *model.PumpReport) {
	fmt.Fprintf(w, "Run:      %s\n", r.RunID)
	fmt.Fprintf(w, "Root:     %s\n", r.Root)
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		fmt.Fprintf(w, "Duration: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(w, "Scanned:  %d files\n", r.FilesScanned)

	tables := make([]string, 0, len(r.TablesLoaded))
	for t := range r.TablesLoaded {
		tables = append(tables, string(t))
	}
	sort.Strings(tables)
	for _, t := range tables {
		fmt.Fprintf(w, "  %-18s %d\n", t, r.TablesLoaded[model.Table(t)])
	}
	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped:  %d unchanged\n", len(r.Skipped))
	}
	if len(r.Deleted) > 0 {
		fmt.Fprintf(w, "Removed:  %s\n", strings.Join(r.Deleted, ", "))
	}
	if len(r.Errors) == 0 {
		fmt.Fprintf(w, "Errors:   %s\n", ui.RenderOK("none"))
		return
	}
	fmt.Fprintf(w, "Errors:   %s\n", ui.RenderError(fmt.Sprintf("%d", len(r.Errors))))
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  [%s] %s: %s\n", e.Kind, e.Path, e.Message)
	}
}

func printDiff(w io.Writer, d *model.DiffReport) {
	for _, p := range d.New {
		fmt.Fprintf(w, "%s %s\n", ui.RenderOK("+"), p)
	}
	for _, p := range d.Modified {
		fmt.Fprintf(w, "%s %s\n", ui.RenderWarn("~"), p)
	}
	for _, p := range d.Deleted {
		fmt.Fprintf(w, "%s %s\n", ui.RenderError("-"), p)
	}
	fmt.Fprintf(w, "\n%d new, %d modified, %d deleted, %d unchanged\n", len(d.New), len(d.Modified), len(d.Deleted), d.Unchanged)
}

func printClear(w io.Writer, r *model.ClearReport) {
	printCounts(w, r.RowsDeleted)
	fmt.Fprintf(w, "\ncleared %d tables\n", r.TablesCleared)
}

// printCounts writes a table-name → count map in name order.
func printCounts(w io.Writer, counts map[string]int64) {
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Strings(names)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tROWS")
	for _, n := range names {
		fmt.Fprintf(tw, "%s\t%d\n", n, counts[n])
	}
	tw.Flush()
}

func printStatus(w io.Writer, st *contentsync.Status) {
	if st.Running {
		started := ""
		if st.StartedAt != nil {
			started = " since " + formatTime(*st.StartedAt)
		}
		fmt.Fprintf(w, "Pump:     %s (%s%s)\n", ui.RenderWarn("running"), st.RunID, started)
	} else {
		fmt.Fprintf(w, "Pump:     idle\n")
	}
	if st.Last == nil {
		fmt.Fprintln(w, "Last run: none")
		return
	}
	fmt.Fprintf(w, "Last run: %s at %s, %d files, %d errors\n",
		st.Last.RunID, formatTime(st.Last.FinishedAt), st.Last.FilesScanned, len(st.Last.Errors))
}

func printManifest(w io.Writer, entries []*model.ManifestEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tTABLE\tHASH\tLAST SYNCED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.FilePath, e.TableName, shortHash(e.FileHash), formatTime(e.LastSynced))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d entries\n", len(entries))
}

func printHealth(w io.Writer, h *client.HealthResponse) {
	fmt.Fprintf(w, "Health: %s\n", ui.RenderStatus(h.Status))
	names := make([]string, 0, len(h.Checks))
	for n := range h.Checks {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-6s %s\n", n, ui.RenderStatus(h.Checks[n]))
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}
