//go:build windows

package utils

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// PatchArgs rebuilds os.Args from the raw process command line with
// CommandLineToArgvW, so workspace paths containing spaces survive intact
// when the tool is launched from a shortcut or a scheduled task.
//
// Call it at the top of main, before cobra reads os.Args.
func PatchArgs() {
	cmdLinePtr := windows.GetCommandLine()
	if cmdLinePtr == nil {
		return
	}
	var argc int32
	argvPtr, err := windows.CommandLineToArgv(cmdLinePtr, &argc)
	if err != nil || argvPtr == nil || argc < 1 {
		return
	}
	defer windows.LocalFree(windows.Handle(uintptr(unsafe.Pointer(argvPtr))))

	argv := unsafe.Slice((**uint16)(unsafe.Pointer(argvPtr)), argc)
	args := make([]string, 0, argc)
	for _, p := range argv {
		if p != nil {
			args = append(args, windows.UTF16PtrToString(p))
		}
	}
	os.Args = args
}
