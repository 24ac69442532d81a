package main

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/keybridge/internal/metrics"
	"github.com/dshills/keybridge/internal/pipeline"
	"github.com/dshills/keybridge/internal/ui"
)

// watch runs the terminal loop: updates posted by the ScreenSink are counted,
// redraw requests repaint. It returns when ctx is done or the user quits.
func watch(ctx context.Context, cancel context.CancelFunc, screen tcell.Screen, counts *categoryCounts, m *metrics.Metrics) {
	go func() {
		<-ctx.Done()
		_ = screen.PostEvent(tcell.NewEventInterrupt(nil))
	}()

	draw(screen, counts, m)
	for {
		ev := screen.PollEvent()
		if ev == nil {
			return
		}
		if u, ok := ui.IsUpdate(ev); ok {
			counts.Emit(u)
			continue
		}
		if ui.IsRedraw(ev) {
			draw(screen, counts, m)
			continue
		}

		switch ev := ev.(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
				cancel()
				return
			}
		case *tcell.EventResize:
			screen.Sync()
			draw(screen, counts, m)
		case *tcell.EventInterrupt:
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func draw(screen tcell.Screen, counts *categoryCounts, m *metrics.Metrics) {
	screen.Clear()
	bold := tcell.StyleDefault.Bold(true)
	plain := tcell.StyleDefault

	y := 0
	drawText(screen, 0, y, bold, "keybridge  (q to quit)")
	y += 2

	s := m.Snapshot()
	lines := []string{
		fmt.Sprintf("sent %d  dropped %d  backpressure %d", s.Sent, s.Dropped, s.BackpressureEngaged),
		fmt.Sprintf("received %d  stale %d  filtered %d  deduplicated %d", s.Received, s.Stale, s.Filtered, s.Deduplicated),
		fmt.Sprintf("updates %d  redraws %d  avg age %s", s.UpdatesEmitted, s.Redraws, s.AverageEventAge),
		fmt.Sprintf("frame cost %s  budget %d  frames %d", s.FrameCost, s.FrameBudget, s.Frames),
	}
	for _, line := range lines {
		drawText(screen, 0, y, plain, line)
		y++
	}

	y++
	drawText(screen, 0, y, bold, "updates by category")
	y++
	for c := pipeline.CategoryDocuments; c <= pipeline.CategoryPicker; c++ {
		drawText(screen, 2, y, plain, fmt.Sprintf("%-18s %d", c, counts.get(c)))
		y++
	}
	screen.Show()
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}
