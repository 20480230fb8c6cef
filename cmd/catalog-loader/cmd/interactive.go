package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Sternrassler/catalog-loader/pkg/loader"
	"github.com/Sternrassler/catalog-loader/pkg/logging"
	"github.com/Sternrassler/catalog-loader/pkg/scroll"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const interactiveHelp = `Enter      scroll down one screen
<text>     search for text
/clear     clear the search and browse again
/retry     retry the last failed request
/status    show the loader state
/quit      exit`

func interactiveCommand(v *viper.Viper) *cobra.Command {
	var rows int

	interactiveCmd := &cobra.Command{
		Use:   "interactive",
		Short: "Scroll and search the catalog from the terminal",
		Long:  "Shows the catalog one screen at a time. Scrolling past the last loaded row loads the next page.\n\n" + interactiveHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rows < 1 {
				return fmt.Errorf("--rows must be at least 1 (got %d)", rows)
			}

			view := &terminalView{rows: rows}
			monitor := scroll.NewMonitor(view, scroll.WithLogger(logging.NewLogger(logging.ComponentScroll)))

			s, err := newSession(cmd.Context(), v, monitor)
			if err != nil {
				return err
			}
			defer s.Close()
			view.snapshot = s.controller.Snapshot

			if err := s.controller.Start(cmd.Context()); err != nil {
				return err
			}

			r := &repl{
				in:         cmd.InOrStdin(),
				out:        cmd.OutOrStdout(),
				view:       view,
				monitor:    monitor,
				controller: s.controller,
			}
			return r.run()
		},
	}
	interactiveCmd.Flags().IntVar(&rows, "rows", 10, "rows per screen")

	return interactiveCmd
}

// terminalView is a viewport over the loaded rows. One row is one item.
type terminalView struct {
	rows     int
	snapshot func() loader.Snapshot

	mu  sync.Mutex
	top int
}

// Viewport implements scroll.ViewportProvider.
func (t *terminalView) Viewport() scroll.Metrics {
	t.mu.Lock()
	top := t.top
	t.mu.Unlock()

	return scroll.Metrics{
		ScrollPosition: float64(top),
		ViewportHeight: float64(t.rows),
		DocumentHeight: float64(len(t.snapshot().Items)),
	}
}

// scrollDown moves the viewport one screen down, never past the last row.
func (t *terminalView) scrollDown(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.top += t.rows
	if last := total - t.rows; t.top > last {
		t.top = max(last, 0)
	}
}

func (t *terminalView) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.top = 0
}

func (t *terminalView) window() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.top, t.top + t.rows
}

type repl struct {
	in         io.Reader
	out        io.Writer
	view       *terminalView
	monitor    *scroll.Monitor
	controller *loader.Controller

	// printed is the number of rows already written for the current result set.
	printed int
}

func (r *repl) run() error {
	fmt.Fprintln(r.out, interactiveHelp)
	r.controller.Wait()
	r.render()

	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			r.view.scrollDown(len(r.controller.Snapshot().Items))
			r.monitor.HandleScroll()
		case "/quit", "/q":
			return nil
		case "/clear":
			r.newResultSet("")
		case "/retry":
			if !r.controller.Retry() {
				fmt.Fprintln(r.out, "nothing to retry")
			}
		case "/status":
			r.status()
			continue
		case "/help":
			fmt.Fprintln(r.out, interactiveHelp)
			continue
		default:
			r.newResultSet(line)
		}

		r.controller.Wait()
		r.render()
	}
}

func (r *repl) newResultSet(term string) {
	r.view.reset()
	r.printed = 0
	r.controller.SetSearchTerm(term)
}

// render prints rows of the viewport that have not been printed yet.
func (r *repl) render() {
	snap := r.controller.Snapshot()
	_, bottom := r.view.window()
	end := min(bottom, len(snap.Items))

	if end > r.printed {
		if err := printItems(r.out, snap.Items[r.printed:end], false); err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
		r.printed = end
	}

	switch {
	case snap.Err != nil:
		fmt.Fprintf(r.out, "error: %v (type /retry)\n", snap.Err)
	case len(snap.Items) == 0 && !snap.InFlight:
		fmt.Fprintln(r.out, "no items")
	case snap.Exhausted && r.printed == len(snap.Items) && snap.Mode == loader.ModeBrowse:
		fmt.Fprintln(r.out, "-- end of catalog --")
	}
}

func (r *repl) status() {
	snap := r.controller.Snapshot()
	top, bottom := r.view.window()
	fmt.Fprintf(r.out, "mode=%s term=%q skip=%d limit=%d items=%d rows=%d-%d loading=%v exhausted=%v\n",
		snap.Mode, snap.Term, snap.Offset, snap.PageSize, len(snap.Items), top, bottom, snap.InFlight, snap.Exhausted)
}
