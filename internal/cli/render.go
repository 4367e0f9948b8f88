package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/events"
	"github.com/drujensen/aibrowser/internal/domain/services"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	answerStyle = lipgloss.NewStyle().PaddingLeft(2)
	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	shotStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	mutedStyle  = lipgloss.NewStyle().Faint(true)
)

// progress prints one line per tool call and saved screenshot while a query runs.
type progress struct {
	out     io.Writer
	mu      sync.Mutex
	cancels []func()
}

func watchProgress(out io.Writer) *progress {
	p := &progress{out: out}
	p.cancels = append(p.cancels,
		events.SubscribeToToolCallEvents(func(data events.ToolCallEventData) {
			p.println(formatToolCall(data.Event))
		}),
		events.SubscribeToScreenshotEvents(func(data events.ScreenshotEventData) {
			p.println(shotStyle.Render("  saved " + data.Record.Path))
		}),
	)
	return p
}

func (p *progress) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}

func (p *progress) Stop() {
	for _, cancel := range p.cancels {
		cancel()
	}
}

func formatToolCall(e *entities.ToolCallEvent) string {
	line := fmt.Sprintf("  → %s %s", e.ToolName, formatArguments(e.Arguments))
	if e.Error != "" {
		return failStyle.Render(line + " failed: " + e.Error)
	}
	return toolStyle.Render(line + " (" + e.Duration.Round(time.Millisecond).String() + ")")
}

func formatArguments(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, 0, len(args))
	for k, v := range args {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, " ")
}

func printResult(out io.Writer, result *services.SessionResult) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render("Answer"))
	fmt.Fprintln(out, answerStyle.Render(result.Answer))
	fmt.Fprintln(out)

	t := result.Telemetry
	summary := fmt.Sprintf("thread %s · %d iterations · %d tool calls · %s",
		result.ThreadID, t.Iterations, t.ToolCalls, t.Total.Round(time.Millisecond))
	if t.Truncated {
		summary += " · stopped early"
	}
	fmt.Fprintln(out, mutedStyle.Render(summary))

	if len(result.Screenshots) > 0 {
		printScreenshots(out, result.Screenshots)
	}
}

func printScreenshots(out io.Writer, records []entities.ScreenshotRecord) {
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Screenshots (%d)", len(records))))
	for _, r := range records {
		fmt.Fprintf(out, "  %s  %s  %s\n",
			r.Path,
			mutedStyle.Render(humanize.Bytes(uint64(r.Size))),
			mutedStyle.Render(humanize.Time(r.CreatedAt)))
	}
}

func printThreads(out io.Writer, threads []entities.ThreadSummary) {
	if len(threads) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("No threads"))
		return
	}
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Threads (%d)", len(threads))))
	for _, t := range threads {
		fmt.Fprintf(out, "  %s  %s  %s\n",
			t.ID,
			mutedStyle.Render(humanize.Comma(int64(t.MessageCount))+" messages"),
			mutedStyle.Render("updated "+humanize.Time(t.UpdatedAt)))
	}
}
