package main

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/andresuchdata/linksync/internal/domain"
)

// barObserver renders one progress bar per run state.
type barObserver struct {
	out   io.Writer
	state domain.State
	bar   *progressbar.ProgressBar
}

func newBarObserver(out io.Writer) *barObserver {
	return &barObserver{out: out}
}

func (o *barObserver) OnState(state domain.State) {
	o.finish()
	o.state = state
	if state.Terminal() {
		fmt.Fprintf(o.out, "%s\n", domain.StateLabel(state))
	}
}

func (o *barObserver) OnProgress(state domain.State, done, total int, name string) {
	if o.bar == nil || state != o.state {
		o.finish()
		o.state = state
		o.bar = newBar(o.out, domain.StateLabel(state), total)
	}
	_ = o.bar.Set(done)
}

func (o *barObserver) finish() {
	if o.bar != nil {
		_ = o.bar.Finish()
		o.bar = nil
	}
}

func newBar(out io.Writer, description string, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}
