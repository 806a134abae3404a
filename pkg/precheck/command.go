package precheck

import (
	"context"
	"strings"

	"github.com/windowsadmins/provision/pkg/logging"
	"github.com/windowsadmins/provision/pkg/manifest"
	"github.com/windowsadmins/provision/pkg/runner"
)

// Command runs a version-printing command and takes the last
// delimiter-separated token of its first output line as the version.
type Command struct {
	target
	check manifest.CommandCheck
	env   *Environment
}

// Kind implements Precheck.
func (c *Command) Kind() string { return "command_check" }

// Enabled implements Precheck.
func (c *Command) Enabled() bool { return len(c.check.Command) > 0 }

// Version runs the version command. Spawn failures, non-zero exits and empty output all
// yield ok=false.
func (c *Command) Version(ctx context.Context) (string, bool) {
	if !c.Enabled() || c.env.Runner == nil {
		return "", false
	}
	args := append(append([]string{}, c.check.Command...), c.check.Options...)
	res, err := c.env.Runner.Run(ctx, runner.Command{Args: args, Capture: true, Timeout: c.env.VersionTimeout})
	if err != nil {
		logging.Debug("Version command failed", "software", c.name, "command", args, "error", err)
		return "", false
	}
	return parseVersionLine(res.Stdout, c.check.Delimiter)
}

// VersionsFound implements Precheck.
func (c *Command) VersionsFound(ctx context.Context) (bool, []string) {
	v, ok := c.Version(ctx)
	if !ok {
		return false, nil
	}
	found := []string{v}
	return c.satisfied(found), found
}

func parseVersionLine(output, delimiter string) (string, bool) {
	if delimiter == "" {
		delimiter = manifest.DefaultDelimiter
	}
	line, _, _ := strings.Cut(output, "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	parts := strings.Split(line, delimiter)
	v := strings.TrimSpace(parts[len(parts)-1])
	return v, v != ""
}
