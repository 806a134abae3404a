//go:build !windows

package facts

func machineType() string { return "unknown" }

func computerSystem() (string, string) { return "unknown", "unknown" }
