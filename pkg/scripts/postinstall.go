// pkg/scripts/postinstall.go - Functions for running post-install hooks.

package scripts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	perrors "github.com/windowsadmins/provision/pkg/errors"
	"github.com/windowsadmins/provision/pkg/logging"
	"github.com/windowsadmins/provision/pkg/manifest"
	"github.com/windowsadmins/provision/pkg/runner"
	"github.com/windowsadmins/provision/pkg/utils"
)

// Hook runs one post-install action from the installer's directory.
type Hook struct {
	manifest.PostInstall
	Software  string
	Workspace string
	Runner    runner.Runner
	Timeout   time.Duration
}

// Run executes the hook. With run_on_file_contents the file is read as a JSON
// list and the command runs once per non-empty line, the line resolved to a
// file below the workspace and appended as the last argument. Every line is
// attempted; the hook succeeds only if all of them do.
func (h *Hook) Run(ctx context.Context) error {
	logging.Info("Running post-install", "software", h.Software, "command", h.Command)
	if h.RunOnFileContents == "" {
		return h.runLine(ctx, "")
	}

	path, ok := utils.FindFile(h.Workspace, h.RunOnFileContents)
	if !ok {
		return fmt.Errorf("%w: %s", perrors.ErrNotFound, h.RunOnFileContents)
	}
	lines, err := readLines(path)
	if err != nil {
		return err
	}

	var errs []error
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		target, ok := utils.FindFile(h.Workspace, line)
		if !ok {
			logging.Error("Post-install input not found", "software", h.Software, "file", line)
			errs = append(errs, fmt.Errorf("%w: %s", perrors.ErrNotFound, line))
			continue
		}
		if err := h.runLine(ctx, target); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runLine runs the command, then the fallback if the command fails. A
// non-empty line is appended to both.
func (h *Hook) runLine(ctx context.Context, line string) error {
	err := h.exec(ctx, withLine(h.Command, line))
	if err == nil {
		return nil
	}
	if len(h.FallbackCommand) == 0 {
		return err
	}
	logging.Warn("Post-install command failed, running fallback", "software", h.Software, "error", err)
	return h.exec(ctx, withLine(h.FallbackCommand, line))
}

func (h *Hook) exec(ctx context.Context, args []string) error {
	res, err := h.Runner.Run(ctx, runner.Command{Args: args, Dir: h.Workspace, Capture: true, Timeout: h.Timeout})
	logOutput(h.Software, res.Stdout)
	logOutput(h.Software, res.Stderr)
	if err != nil {
		logging.Error("Post-install command failed", "software", h.Software, "command", args, "error", err)
	}
	return err
}

func withLine(cmd []string, line string) []string {
	out := append([]string{}, cmd...)
	if line != "" {
		out = append(out, line)
	}
	return out
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	data = []byte(strings.TrimPrefix(string(data), "\ufeff"))
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("%s is not a JSON list of strings: %w", path, err)
	}
	return lines, nil
}

// logOutput logs each non-empty output line.
func logOutput(software, output string) {
	for _, line := range strings.Split(output, "\n") {
		txt := strings.TrimSpace(line)
		if txt == "" {
			continue
		}
		// Optionally remove BOM or ANSI escape sequences.
		txt = strings.TrimPrefix(txt, "\ufeff")
		txt = strings.ReplaceAll(txt, "\u001b[0m", "")
		txt = strings.ReplaceAll(txt, "\u001b[", "")
		logging.Info(txt, "software", software)
	}
}

// RunAll runs every hook in order. A failing hook does not stop the rest;
// the joined errors are returned.
func RunAll(ctx context.Context, hooks []*Hook) error {
	var errs []error
	for _, h := range hooks {
		if err := h.Run(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		logging.Error("Post install commands failed", "failed", len(errs), "total", len(hooks))
	}
	return errors.Join(errs...)
}
