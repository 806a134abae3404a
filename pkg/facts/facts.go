// pkg/facts/facts.go - host facts recorded at the start of every run.

package facts

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/windowsadmins/provision/pkg/logging"
)

// SystemFacts describes the machine a run provisions.
type SystemFacts struct {
	Hostname     string    `json:"hostname" yaml:"hostname"`
	OSVersion    string    `json:"os_version" yaml:"os_version"`
	Architecture string    `json:"architecture" yaml:"architecture"`
	Date         time.Time `json:"date" yaml:"date"`
	Domain       string    `json:"domain,omitempty" yaml:"domain,omitempty"`
	Username     string    `json:"username,omitempty" yaml:"username,omitempty"`
	MachineType  string    `json:"machine_type,omitempty" yaml:"machine_type,omitempty"`   // "laptop" or "desktop"
	MachineModel string    `json:"machine_model,omitempty" yaml:"machine_model,omitempty"` // e.g. "Dell OptiPlex 7070"
	JoinedType   string    `json:"joined_type,omitempty" yaml:"joined_type,omitempty"`     // "domain" or "workgroup"
}

// Gather collects facts. Anything that cannot be read is left as "unknown".
func Gather() SystemFacts {
	f := SystemFacts{
		Architecture: unifyArch(runtime.GOARCH),
		Date:         time.Now(),
		OSVersion:    "unknown",
	}
	if info, err := host.Info(); err == nil {
		f.Hostname = info.Hostname
		f.OSVersion = info.Platform + " " + info.PlatformVersion
		if info.KernelArch != "" {
			f.Architecture = unifyArch(info.KernelArch)
		}
	} else {
		logging.Debug("Failed to read host information", "error", err)
		if hostname, err := os.Hostname(); err == nil {
			f.Hostname = hostname
		}
	}

	// Domain and Username from environment
	if domain, exists := os.LookupEnv("USERDOMAIN"); exists {
		f.Domain = domain
	}
	if username, exists := os.LookupEnv("USERNAME"); exists {
		f.Username = username
	} else if username, exists := os.LookupEnv("USER"); exists {
		f.Username = username
	}

	f.MachineType = machineType()
	f.MachineModel, f.JoinedType = computerSystem()
	return f
}

// Log writes the facts as one structured line.
func (f SystemFacts) Log() {
	logging.Info("Host facts",
		"hostname", f.Hostname,
		"os_version", f.OSVersion,
		"architecture", f.Architecture,
		"username", f.Username,
		"machine_type", f.MachineType,
		"machine_model", f.MachineModel,
		"joined_type", f.JoinedType,
	)
}

// unifyArch normalizes common synonyms to "x64", "x86", etc.
func unifyArch(arch string) string {
	switch arch {
	case "amd64", "x86_64":
		return "x64"
	case "386", "i386", "i686":
		return "x86"
	case "aarch64":
		return "arm64"
	}
	return arch
}
