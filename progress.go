package main

import (
	"log"

	"github.com/schollz/progressbar/v3"
)

// ProgressSink receives phase and per-item progress during a migration.
type ProgressSink interface {
	PhaseStarted(name string)
	Progress(done, total int, item string)
	Warn(msg string)
}

var (
	_ ProgressSink = nopSink{}
	_ ProgressSink = (*cliSink)(nil)
)

// nopSink discards progress, used by tests and library callers.
type nopSink struct{}

func (nopSink) PhaseStarted(string)       {}
func (nopSink) Progress(int, int, string) {}
func (nopSink) Warn(string)               {}

// cliSink renders a terminal progress bar per phase and logs warnings.
type cliSink struct {
	bar *progressbar.ProgressBar
}

func newCLISink() *cliSink { return &cliSink{} }

func (s *cliSink) PhaseStarted(name string) {
	if s.bar != nil {
		s.bar.Finish()
		s.bar = nil
	}
	log.Printf("=== %s ===", name)
}

func (s *cliSink) Progress(done, total int, item string) {
	if s.bar == nil || s.bar.GetMax() != total {
		s.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription(""),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	s.bar.Describe(item)
	s.bar.Set(done)
	if done >= total {
		s.bar.Finish()
		s.bar = nil
	}
}

func (s *cliSink) Warn(msg string) {
	log.Printf("WARNING: %s", msg)
}
