package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
)

// StepSpinner shows progress for the sequential startup steps. Without a
// TTY it prints static text so logs stay clean.
type StepSpinner struct {
	w      io.Writer
	s      *spinner.Spinner
	msg    string
	active bool
	noSpin bool
}

// NewStepSpinner creates a spinner that writes to w.
func NewStepSpinner(w io.Writer, noSpin bool) *StepSpinner {
	return &StepSpinner{w: w, noSpin: noSpin}
}

// Run performs one step, marking it done or failed by fn's result.
func (ss *StepSpinner) Run(msg string, fn func() error) error {
	ss.start(msg)
	if err := fn(); err != nil {
		ss.finish(StyleError.Render(SymbolCross))
		return err
	}
	ss.finish(StyleSuccess.Render(SymbolCheck))
	return nil
}

// Warn marks the current step as degraded rather than failed.
func (ss *StepSpinner) Warn(msg, note string) {
	ss.start(msg)
	ss.finish(StyleWarning.Render(SymbolWarning) + " " + StyleHint.Render(note))
}

func (ss *StepSpinner) start(msg string) {
	ss.msg = msg
	if ss.noSpin {
		fmt.Fprintf(ss.w, "  %s", msg)
		return
	}
	ss.s = spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(ss.w))
	ss.s.Prefix = "  "
	ss.s.Suffix = " " + msg
	ss.s.Start()
	ss.active = true
}

func (ss *StepSpinner) finish(mark string) {
	if ss.noSpin {
		fmt.Fprintf(ss.w, " %s\n", mark)
		return
	}
	ss.Stop()
	fmt.Fprintf(ss.w, "\r  %s %s\n", ss.msg, mark)
}

// Stop halts the spinner without printing a status.
func (ss *StepSpinner) Stop() {
	if ss.s != nil && ss.active {
		ss.s.Stop()
		ss.active = false
	}
}
