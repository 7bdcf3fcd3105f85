package log

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/csd2000/Trade-Flow-sub002/internal/scan"
)

// SpinnerStyle defines different spinner animations
type SpinnerStyle string

const (
	SpinnerDots SpinnerStyle = "dots"
	SpinnerLine SpinnerStyle = "line"
)

func spinnerChars(style SpinnerStyle) []string {
	if style == SpinnerLine {
		return []string{"-", "\\", "|", "/"}
	}
	return []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
}

// ProgressConfig configures the scan progress line
type ProgressConfig struct {
	ShowProgress bool
	ShowETA      bool
	SpinnerStyle SpinnerStyle
	BarWidth     int
}

func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{ShowProgress: true, ShowETA: true, SpinnerStyle: SpinnerDots, BarWidth: 20}
}

// ScanProgress renders one status line per scan to a terminal. It is safe
// for the concurrent Advance calls a scan makes.
type ScanProgress struct {
	mu     sync.Mutex
	out    io.Writer
	config ProgressConfig
	chars  []string
	now    func() time.Time

	scanID  string
	total   int
	current int
	started time.Time
	counts  map[string]int
}

// NewScanProgress writes to out, typically stderr when it is a terminal
func NewScanProgress(out io.Writer, config ProgressConfig) *ScanProgress {
	if config.BarWidth <= 0 {
		config.BarWidth = 20
	}
	return &ScanProgress{
		out:    out,
		config: config,
		chars:  spinnerChars(config.SpinnerStyle),
		now:    time.Now,
		counts: make(map[string]int),
	}
}

func (p *ScanProgress) Start(scanID string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.scanID, p.total, p.current = scanID, total, 0
	p.started = p.now()
	p.counts = make(map[string]int)
	p.render("")
}

func (p *ScanProgress) Advance(symbol, outcome string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current++
	p.counts[outcome]++
	p.render(symbol)
}

func (p *ScanProgress) Finish(t scan.Totals) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := p.now().Sub(p.started).Round(time.Millisecond)
	fmt.Fprintf(p.out, "\r\033[K✅ scan %s: %d symbols, %d signals, %d throttled, %d exits, %d errors (%v)\n",
		shortID(p.scanID), t.Attempted, t.Emitted, t.Throttled, t.Exits, t.Errors, elapsed)
	log.Debug().Str("scan_id", p.scanID).Interface("outcomes", p.counts).Msg("Progress finished")
}

func (p *ScanProgress) render(symbol string) {
	var b strings.Builder
	b.WriteString("\r\033[K")
	b.WriteString(p.chars[p.current%len(p.chars)])
	b.WriteString(" scan ")
	b.WriteString(shortID(p.scanID))

	if p.config.ShowProgress && p.total > 0 {
		filled := p.config.BarWidth * p.current / p.total
		b.WriteString(" [")
		b.WriteString(strings.Repeat("█", filled))
		b.WriteString(strings.Repeat("░", p.config.BarWidth-filled))
		fmt.Fprintf(&b, "] %d/%d (%.1f%%)", p.current, p.total, float64(p.current)/float64(p.total)*100)
	} else if p.total > 0 {
		fmt.Fprintf(&b, " (%d/%d)", p.current, p.total)
	}

	if p.config.ShowETA && p.total > 0 && p.current > 0 && p.current < p.total {
		elapsed := p.now().Sub(p.started)
		eta := time.Duration(float64(elapsed) / float64(p.current) * float64(p.total-p.current))
		fmt.Fprintf(&b, " ETA: %v", eta.Round(time.Second))
	}
	if symbol != "" {
		b.WriteString(" - ")
		b.WriteString(symbol)
	}
	fmt.Fprint(p.out, b.String())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var _ scan.Progress = (*ScanProgress)(nil)
