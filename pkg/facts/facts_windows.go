//go:build windows

package facts

import (
	"fmt"

	"github.com/yusufpapurcu/wmi"

	"github.com/windowsadmins/provision/pkg/logging"
)

// WMI structures for querying system information
type win32SystemEnclosure struct {
	ChassisTypes []uint16 `wmi:"ChassisTypes"`
}

type win32ComputerSystem struct {
	Domain       string `wmi:"Domain"`
	PartOfDomain bool   `wmi:"PartOfDomain"`
	Model        string `wmi:"Model"`
	Manufacturer string `wmi:"Manufacturer"`
}

// machineType determines if the machine is a laptop or desktop based on chassis type
func machineType() string {
	var enclosures []win32SystemEnclosure
	if err := wmi.Query("SELECT ChassisTypes FROM Win32_SystemEnclosure", &enclosures); err != nil {
		logging.Debug("Failed to query chassis type", "error", err)
		return "unknown"
	}
	for _, e := range enclosures {
		for _, t := range e.ChassisTypes {
			switch t {
			case 8, 9, 10, 11, 12, 14, 18, 21, 30, 31, 32:
				return "laptop"
			}
		}
	}
	return "desktop"
}

// computerSystem returns the model and the domain join state.
func computerSystem() (string, string) {
	var systems []win32ComputerSystem
	err := wmi.Query("SELECT Domain, PartOfDomain, Model, Manufacturer FROM Win32_ComputerSystem", &systems)
	if err != nil || len(systems) == 0 {
		logging.Debug("Failed to query computer system information", "error", err)
		return "unknown", "unknown"
	}

	s := systems[0]
	model := "unknown"
	switch {
	case s.Manufacturer != "" && s.Model != "":
		model = fmt.Sprintf("%s %s", s.Manufacturer, s.Model)
	case s.Model != "":
		model = s.Model
	case s.Manufacturer != "":
		model = s.Manufacturer
	}

	joined := "workgroup"
	if s.PartOfDomain {
		joined = "domain"
	}
	return model, joined
}
