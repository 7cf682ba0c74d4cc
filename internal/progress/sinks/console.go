package sinks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/JakeFAU/sirup-adspend/internal/procurement"
	"github.com/JakeFAU/sirup-adspend/internal/progress"
)

// ConsoleSink prints one status line per event for an interactive terminal.
type ConsoleSink struct {
	mu    sync.Mutex
	w     io.Writer
	ok    *color.Color
	empty *color.Color
	fail  *color.Color
	info  *color.Color
}

// NewConsoleSink writes to w; colored false strips ANSI sequences.
func NewConsoleSink(w io.Writer, colored bool) *ConsoleSink {
	s := &ConsoleSink{
		w:     w,
		ok:    color.New(color.FgGreen),
		empty: color.New(color.FgYellow),
		fail:  color.New(color.FgRed, color.Bold),
		info:  color.New(color.FgCyan),
	}
	for _, c := range []*color.Color{s.ok, s.empty, s.fail, s.info} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

// Consume prints the batch in order.
func (s *ConsoleSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		if err := s.print(evt); err != nil {
			return fmt.Errorf("write console status: %w", err)
		}
	}
	return nil
}

func (s *ConsoleSink) print(evt progress.Event) error {
	var err error
	switch evt.Stage {
	case progress.StageRunStart:
		_, err = s.info.Fprintf(s.w, "📋 Total satuan kerja ditemukan: %d\n", evt.UnitTotal)
	case progress.StageUnitDone:
		prefix := fmt.Sprintf("[%d/%d]", evt.UnitIndex, evt.UnitTotal)
		switch evt.Status {
		case procurement.UnitStatusOK:
			_, err = s.ok.Fprintf(s.w, "%s ✔️ %s (%d cocok)\n", prefix, evt.UnitName, evt.MatchedCount)
		case procurement.UnitStatusEmpty:
			_, err = s.empty.Fprintf(s.w, "%s ❕ %s (0 paket)\n", prefix, evt.UnitName)
		default:
			_, err = s.fail.Fprintf(s.w, "%s ❌ ERROR di %s: %s\n", prefix, evt.UnitName, evt.Note)
		}
	case progress.StageRunDone:
		_, err = s.ok.Fprintf(s.w, "✅ Scraping selesai! %d paket cocok dalam %.2f detik.\n",
			evt.MatchedCount, evt.Dur.Seconds())
	case progress.StageRunError:
		if evt.UnitTotal > 0 {
			_, err = s.fail.Fprintf(s.w, "❌ Scraping dihentikan: %d paket cocok sejauh ini. %s\n",
				evt.MatchedCount, evt.Note)
			break
		}
		_, err = s.fail.Fprintf(s.w, "❌ Gagal ambil data satuan kerja: %s\n", evt.Note)
	}
	return err
}

// Close implements the Sink interface; it performs no action.
func (s *ConsoleSink) Close(context.Context) error {
	return nil
}
