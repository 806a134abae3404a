//go:build windows

package registry

import (
	"strconv"
	"strings"

	winreg "golang.org/x/sys/windows/registry"
)

// System reads the live registry of this machine.
type System struct{}

// NewReader returns a Reader over the local registry.
func NewReader() Reader { return System{} }

func open(hive Hive, view View, path string) (winreg.Key, error) {
	root := winreg.LOCAL_MACHINE
	if hive == CurrentUser {
		root = winreg.CURRENT_USER
	}
	access := uint32(winreg.READ | winreg.WOW64_64KEY)
	if view == View32 {
		access = winreg.READ | winreg.WOW64_32KEY
	}
	k, err := winreg.OpenKey(root, path, access)
	if err == winreg.ErrNotExist {
		return k, ErrNotExist
	}
	return k, err
}

// Values implements Reader.
func (System) Values(hive Hive, view View, path string, names ...string) (map[string]string, error) {
	k, err := open(hive, view, path)
	if err != nil {
		return nil, err
	}
	defer k.Close()

	if len(names) == 0 {
		names, err = k.ReadValueNames(-1)
		if err != nil {
			return nil, err
		}
	}
	out := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := readValue(k, name); ok {
			out[name] = v
		}
	}
	return out, nil
}

// SubKeys implements Reader.
func (System) SubKeys(hive Hive, view View, path string) ([]string, error) {
	k, err := open(hive, view, path)
	if err != nil {
		return nil, err
	}
	defer k.Close()
	return k.ReadSubKeyNames(-1)
}

// readValue renders string, multi-string and integer values as text.
func readValue(k winreg.Key, name string) (string, bool) {
	_, valType, err := k.GetValue(name, nil)
	if err != nil {
		return "", false
	}
	switch valType {
	case winreg.SZ, winreg.EXPAND_SZ:
		s, _, err := k.GetStringValue(name)
		if err != nil {
			return "", false
		}
		return s, true
	case winreg.MULTI_SZ:
		s, _, err := k.GetStringsValue(name)
		if err != nil {
			return "", false
		}
		return strings.Join(s, "\n"), true
	case winreg.DWORD, winreg.QWORD:
		n, _, err := k.GetIntegerValue(name)
		if err != nil {
			return "", false
		}
		return strconv.FormatUint(n, 10), true
	default:
		return "", false
	}
}
