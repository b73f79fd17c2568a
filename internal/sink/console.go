package sink

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const (
	defaultWidth = 80
	maxWidth     = 120
)

var assistantColor = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#89F0CB"}

// Console prints the running transcript of each response to a writer.
//
// On a terminal the current response is redrawn in place as it grows,
// word-wrapped to the terminal width. Anywhere else only the newly added
// text is written, so piped output reads as one line per response.
type Console struct {
	mu sync.Mutex

	out    *termenv.Output
	prefix string
	indent string
	width  int
	redraw bool

	last  string
	lines int
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithWidth overrides the detected wrap width. Zero disables wrapping.
func WithWidth(width int) ConsoleOption {
	return func(c *Console) {
		c.width = width
	}
}

// WithPrefix sets the label printed before each response.
func WithPrefix(label string) ConsoleOption {
	return func(c *Console) {
		c.prefix = label
	}
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer, opts ...ConsoleOption) *Console {
	tty, width := terminalInfo(w)

	profile := termenv.Ascii
	if tty {
		profile = termenv.EnvColorProfile()
	}
	out := termenv.NewOutput(w, termenv.WithProfile(profile))

	c := &Console{
		out:    out,
		prefix: "jarvis",
		width:  width,
		redraw: tty,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.prefix != "" {
		r := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
		label := r.NewStyle().Foreground(assistantColor).Bold(true).Render(c.prefix + ":")
		c.prefix = label + " "
		c.indent = strings.Repeat(" ", lipgloss.Width(c.prefix))
	}

	return c
}

// Emit shows text as the current state of the response being delivered.
// Write errors are ignored.
func (c *Console) Emit(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	continuing := c.last != "" && strings.HasPrefix(text, c.last)

	if c.redraw {
		if continuing {
			c.out.ClearLines(c.lines - 1)
			_, _ = c.out.WriteString("\r")
		} else if c.last != "" {
			_, _ = c.out.WriteString("\n")
		}
		block := c.render(text)
		c.lines = strings.Count(block, "\n") + 1
		_, _ = c.out.WriteString(block)
	} else {
		if continuing {
			_, _ = c.out.WriteString(text[len(c.last):])
		} else {
			if c.last != "" {
				_, _ = c.out.WriteString("\n")
			}
			_, _ = c.out.WriteString(c.prefix + text)
		}
	}

	c.last = text
}

// End finishes the current response so the next emission starts fresh.
func (c *Console) End() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last == "" {
		return
	}
	_, _ = c.out.WriteString("\n")
	c.last = ""
	c.lines = 0
}

func (c *Console) render(text string) string {
	text = strings.TrimRight(text, " ")

	body := text
	if avail := c.width - len(c.indent); c.width > 0 && avail > 0 {
		body = wordwrap.String(text, avail)
	}

	lines := strings.Split(body, "\n")
	for i := range lines {
		if i == 0 {
			lines[i] = c.prefix + lines[i]
		} else {
			lines[i] = c.indent + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

// terminalInfo reports whether w is a terminal and the width to wrap at.
func terminalInfo(w io.Writer) (bool, int) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false, 0
	}

	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return true, defaultWidth
	}
	if width > maxWidth {
		width = maxWidth
	}
	return true, width
}
