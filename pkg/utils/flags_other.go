//go:build !windows

package utils

// PatchArgs is a no-op outside Windows, where os.Args is already exact.
func PatchArgs() {}
