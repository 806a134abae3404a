// pkg/blocking/blocking.go - refusing to install while an entry's blocking applications run

package blocking

import (
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/windowsadmins/provision/pkg/logging"
)

// Proc is what the matcher needs to know about a running process.
type Proc struct {
	Name string
	Exe  string
}

// Lister enumerates running processes.
type Lister func() ([]Proc, error)

// SystemProcesses lists running processes through gopsutil. Processes whose
// name cannot be read are skipped.
func SystemProcesses() ([]Proc, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	out := make([]Proc, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		exe, _ := p.Exe()
		out = append(out, Proc{Name: name, Exe: exe})
	}
	return out, nil
}

// Checker reports which blocking applications are running.
type Checker struct {
	List Lister // SystemProcesses when nil
}

// isPath treats absolute paths as exact executable matches.
func isPath(app string) bool {
	lower := strings.ToLower(app)
	return strings.HasPrefix(lower, "/") || strings.HasPrefix(lower, `\\`) ||
		(len(lower) >= 3 && lower[1] == ':' && (lower[2] == '\\' || lower[2] == '/'))
}

// matches applies the app-name rules: an absolute path must equal the
// executable path, a name ending in .exe must equal the process name, and
// a bare name matches with or without .exe. All comparisons ignore case.
func matches(app string, p Proc) bool {
	app = strings.TrimSpace(app)
	lower := strings.ToLower(app)
	name := strings.ToLower(p.Name)
	switch {
	case isPath(app):
		return p.Exe != "" && strings.EqualFold(p.Exe, app)
	case strings.HasSuffix(lower, ".exe"):
		return name == lower
	default:
		return name == lower || name == lower+".exe"
	}
}

// RunningApps returns the entries of apps that match a running process, in
// the order given. A failure to list processes is logged and treated as
// nothing running.
func (c *Checker) RunningApps(software string, apps []string) []string {
	if len(apps) == 0 {
		return nil
	}
	list := c.List
	if list == nil {
		list = SystemProcesses
	}
	procs, err := list()
	if err != nil {
		logging.Error("Failed to get process list", "software", software, "error", err)
		return nil
	}

	var running []string
	for _, app := range apps {
		for _, p := range procs {
			if matches(app, p) {
				logging.Debug("Found running blocking application", "software", software, "app", app, "process", p.Name)
				running = append(running, app)
				break
			}
		}
	}
	if len(running) > 0 {
		logging.LogBlockingEvent(software, running)
	}
	return running
}
