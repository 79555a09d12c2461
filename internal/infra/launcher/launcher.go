// Package launcher opens external pages (scheduling, contract signing,
// resource downloads) without waiting on them.
package launcher

import (
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Launcher runs the configured opener command with the page URL appended.
// With no command it only logs the URL, leaving it to the renderer.
type Launcher struct {
	command []string
	logger  *zap.Logger
	run     func(name string, args ...string) error

	wg sync.WaitGroup
}

// New creates a Launcher. command is split on whitespace, e.g. "xdg-open" or "open -g".
func New(command string, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{
		command: strings.Fields(command),
		logger:  logger,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// Open launches url in the background.
func (l *Launcher) Open(url string) {
	l.logger.Info("opening external page", zap.String("url", url))
	if len(l.command) == 0 || url == "" {
		return
	}

	args := append(append([]string{}, l.command[1:]...), url)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.run(l.command[0], args...); err != nil {
			l.logger.Warn("opener command failed",
				zap.String("command", l.command[0]),
				zap.String("url", url),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until every started opener has exited.
func (l *Launcher) Wait() {
	l.wg.Wait()
}
