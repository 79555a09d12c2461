package launcher

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestOpen_RunsCommandWithURL(t *testing.T) {
	l := New("open -g", zap.NewNop())

	var (
		mu   sync.Mutex
		got  []string
		name string
	)
	l.run = func(n string, args ...string) error {
		mu.Lock()
		defer mu.Unlock()
		name = n
		got = args
		return nil
	}

	l.Open("https://calendly.com/seal/kickoff")
	l.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "open", name)
	assert.Equal(t, []string{"-g", "https://calendly.com/seal/kickoff"}, got)
}

func TestOpen_NoCommandOnlyLogs(t *testing.T) {
	l := New("", zap.NewNop())
	l.run = func(string, ...string) error {
		t.Error("no command should run")
		return nil
	}

	l.Open("https://example.com/contract")
	l.Wait()
}

func TestOpen_CommandFailureIsNotFatal(t *testing.T) {
	l := New("xdg-open", zap.NewNop())
	l.run = func(string, ...string) error { return errors.New("no display") }

	l.Open("https://example.com")
	l.Wait()
}
