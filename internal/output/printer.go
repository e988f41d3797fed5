package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/subspace-cli/subspace/internal/event"
	"github.com/subspace-cli/subspace/internal/parallel"
	"github.com/subspace-cli/subspace/internal/resource"
	"github.com/subspace-cli/subspace/internal/runner"
)

// previewLines bounds the body shown by text-mode Details.
const previewLines = 50

// Printer writes results to out and diagnostics to errOut. It is safe for
// concurrent use.
type Printer struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	format Format

	header *color.Color
	failed *color.Color
	faint  *color.Color
}

// NewPrinter creates a printer.
func NewPrinter(out, errOut io.Writer, format Format) *Printer {
	return &Printer{
		out:    out,
		errOut: errOut,
		format: format,
		header: color.New(color.FgCyan, color.Bold),
		failed: color.New(color.FgRed, color.Bold),
		faint:  color.New(color.FgHiBlack),
	}
}

// Event writes one raw event line of a single streamed run.
func (p *Printer) Event(raw json.RawMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeLine(raw)
}

// Tagged writes one multiplexed event of a parallel run.
func (p *Printer) Tagged(t event.Tagged) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeJSONLine(t)
}

// RunResult prints the outcome of a single run.
func (p *Printer) RunResult(req runner.Request, r *runner.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.format {
	case FormatJSONL:
		if r.Failure != nil {
			fmt.Fprintf(p.errOut, "%s %s\n", p.failed.Sprint("Error:"), r.Failure.Message)
		}
		p.writeJSONLine(runner.CompletionEvent(req, r))
	case FormatJSON:
		p.writeIndented(toResultJSON(r))
	default:
		if r.Failure != nil {
			fmt.Fprintf(p.errOut, "%s %s\n", p.failed.Sprint("Error:"), r.Failure.Message)
			return
		}
		if r.Output != "" {
			fmt.Fprintln(p.out, r.Output)
		}
	}
}

// TaskResult prints one finished task of a parallel run in text mode. Other
// formats report through Tagged and Summary.
func (p *Printer) TaskResult(r *runner.Result) {
	if p.format != FormatText {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	rule := strings.Repeat("=", 60)
	title := p.header.Sprintf("[%s]", r.ID)
	if r.Failed() {
		title = p.failed.Sprintf("[%s]", r.ID)
	}
	fmt.Fprintf(p.out, "\n%s\n%s (completed in %s)\n%s\n", rule, title, formatSeconds(r.ElapsedSeconds()), rule)

	switch {
	case r.Failure != nil:
		fmt.Fprintf(p.out, "Error: %s\n", r.Failure.Message)
	case r.Output != "":
		fmt.Fprintln(p.out, r.Output)
	}
	if r.Failure == nil && r.ExitCode != nil && *r.ExitCode != 0 {
		fmt.Fprintf(p.out, "Exit code: %d\n", *r.ExitCode)
	}
}

// Summary prints the aggregate of a parallel run.
func (p *Printer) Summary(s *parallel.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.format {
	case FormatJSON:
		doc := summaryJSON{
			Results:        make([]resultJSON, len(s.Results)),
			WallTime:       s.Wall.Seconds(),
			TotalAgentTime: s.TotalAgent.Seconds(),
			Failed:         s.Failed(),
		}
		for i, r := range s.Results {
			doc.Results[i] = toResultJSON(r)
		}
		p.writeIndented(doc)
	case FormatText:
		fmt.Fprintln(p.errOut, p.faint.Sprintf("\n[subspace] All complete. Wall time: %s, Total agent time: %s",
			formatSeconds(s.Wall.Seconds()), formatSeconds(s.TotalAgent.Seconds())))
	}
}

// Resources prints a listing of agents or commands.
func (p *Printer) Resources(kind resource.Kind, records []*resource.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format == FormatJSON {
		list := make([]resourceJSON, len(records))
		for i, r := range records {
			list[i] = resourceJSON{
				Name:        displayName(kind, r.Name),
				Path:        r.Path,
				Source:      r.Source.Name,
				SourceType:  string(r.Source.Tier),
				Description: r.Description(),
			}
		}
		p.writeIndented(list)
		return
	}

	if len(records) == 0 {
		fmt.Fprintf(p.errOut, "No %ss found\n", kind)
		return
	}

	tw := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	if kind == resource.KindCommand {
		fmt.Fprintln(tw, "COMMAND\tSOURCE\tDESCRIPTION")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", displayName(kind, r.Name), r.Source.Name, truncate(r.Description(), 50))
		}
	} else {
		fmt.Fprintln(tw, "NAME\tSOURCE\tTYPE\tDESCRIPTION")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.Source.Name, r.Source.Tier, truncate(r.Description(), 50))
		}
	}
	tw.Flush()
}

// Details prints one resource record.
func (p *Printer) Details(kind resource.Kind, r *resource.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format == FormatJSON {
		fm := r.FrontMatter
		if fm == nil {
			fm = map[string]string{}
		}
		p.writeIndented(detailsJSON{
			Name:        displayName(kind, r.Name),
			Path:        r.Path,
			Source:      r.Source.Name,
			SourceType:  string(r.Source.Tier),
			FrontMatter: fm,
			Body:        r.Body,
		})
		return
	}

	label, bodyLabel := "Agent", "Instructions"
	if kind == resource.KindCommand {
		label, bodyLabel = "Command", "Prompt"
	}
	fmt.Fprintf(p.out, "%s %s\n", p.header.Sprintf("%s:", label), displayName(kind, r.Name))
	fmt.Fprintf(p.out, "Source: %s (%s)\n", r.Source.Name, r.Source.Tier)
	fmt.Fprintf(p.out, "Path: %s\n\n", r.Path)

	if len(r.FrontMatter) > 0 {
		fmt.Fprintln(p.out, "Frontmatter:")
		keys := make([]string, 0, len(r.FrontMatter))
		for k := range r.FrontMatter {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(p.out, "  %s: %s\n", k, r.FrontMatter[k])
		}
		fmt.Fprintln(p.out)
	}

	fmt.Fprintf(p.out, "%s:\n%s\n", bodyLabel, strings.Repeat("-", 40))
	lines := strings.Split(strings.TrimSpace(r.Body), "\n")
	if len(lines) > previewLines {
		fmt.Fprintln(p.out, strings.Join(lines[:previewLines], "\n"))
		fmt.Fprintf(p.out, "\n... (%d more lines)\n", len(lines)-previewLines)
		return
	}
	fmt.Fprintln(p.out, strings.Join(lines, "\n"))
}

// Prompt prints the interpolated prompt of `command get`.
func (p *Printer) Prompt(r *resource.Record, args []string, prompt string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format == FormatJSON {
		if args == nil {
			args = []string{}
		}
		p.writeIndented(promptJSON{
			Command: displayName(resource.KindCommand, r.Name),
			Path:    r.Path,
			Source:  r.Source.Name,
			Args:    args,
			Prompt:  prompt,
		})
		return
	}
	fmt.Fprintln(p.out, prompt)
}

func (p *Printer) writeLine(b []byte) {
	p.out.Write(b)
	io.WriteString(p.out, "\n")
}

func (p *Printer) writeJSONLine(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(p.errOut, "encode event: %v\n", err)
		return
	}
	p.writeLine(data)
}

func (p *Printer) writeIndented(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(p.errOut, "encode result: %v\n", err)
		return
	}
	p.writeLine(data)
}

func displayName(kind resource.Kind, name string) string {
	if kind == resource.KindCommand {
		return "/" + name
	}
	return name
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func formatSeconds(s float64) string {
	if s < 60 {
		return fmt.Sprintf("%.1fs", s)
	}
	return fmt.Sprintf("%dm%ds", int(s)/60, int(s)%60)
}
