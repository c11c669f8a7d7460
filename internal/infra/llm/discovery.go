package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// ModelLister is anything that can enumerate installed models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// CLILister enumerates models by running `ollama list` and reading the first
// column of every row after the header.
type CLILister struct {
	Binary  string
	Timeout time.Duration
	// run is swapped in tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewCLILister returns a lister for the ollama binary on PATH.
func NewCLILister() *CLILister {
	return &CLILister{Binary: "ollama", Timeout: 5 * time.Second}
}

// ListModels runs the CLI and parses its table.
func (c *CLILister) ListModels(ctx context.Context) ([]string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	run := c.run
	if run == nil {
		run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		}
	}
	out, err := run(ctx, c.Binary, "list")
	if err != nil {
		return nil, fmt.Errorf("%s list: %w", c.Binary, err)
	}
	return ParseListOutput(string(out)), nil
}

// ParseListOutput extracts model names from `ollama list` output.
// The first line is the column header.
func ParseListOutput(out string) []string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return []string{}
	}
	names := make([]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		names = append(names, fields[0])
	}
	sort.Strings(names)
	return names
}

// Discovery tries each lister in order and returns the first successful
// result. All failures yield an empty list, never an error.
type Discovery struct {
	listers []ModelLister
	logger  *slog.Logger
}

// NewDiscovery chains listers, most preferred first.
func NewDiscovery(logger *slog.Logger, listers ...ModelLister) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{listers: listers, logger: logger}
}

// Models returns the sorted installed model names.
func (d *Discovery) Models(ctx context.Context) []string {
	for i, l := range d.listers {
		names, err := l.ListModels(ctx)
		if err != nil {
			d.logger.Warn("model listing failed", "source", i, "error", err)
			continue
		}
		sort.Strings(names)
		return names
	}
	return []string{}
}

// ListModels lets a Discovery stand in wherever a ModelLister is accepted.
func (d *Discovery) ListModels(ctx context.Context) ([]string, error) {
	return d.Models(ctx), nil
}
