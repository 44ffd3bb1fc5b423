package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
)

// progressPrinter renders sync progress. On a terminal the current line is
// rewritten in place; otherwise every event becomes its own line.
type progressPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	inPlace bool
	active  bool
}

func newProgressPrinter(out io.Writer, inPlace bool) *progressPrinter {
	return &progressPrinter{out: out, inPlace: inPlace}
}

func (p *progressPrinter) Render(ev models.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.Stage == models.StageIdle {
		if p.active {
			fmt.Fprintln(p.out)
		}
		p.active = false
		return
	}

	line := formatProgress(ev)
	if p.inPlace {
		fmt.Fprintf(p.out, "\r\033[K%s", line)
		p.active = true
		return
	}
	fmt.Fprintln(p.out, line)
}

func formatProgress(ev models.Progress) string {
	s := fmt.Sprintf("[%s] %d/%d %3d%% %s", ev.Stage, ev.CurrentItem, ev.TotalItems, ev.Percentage(), ev.CurrentItemName)
	if ev.Error != "" {
		s += " (failed: " + ev.Error + ")"
	}
	return s
}
