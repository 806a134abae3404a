//go:build !windows

package registry

// System is the registry of this machine; there is none outside Windows.
type System struct{}

// NewReader returns a Reader that finds no keys.
func NewReader() Reader { return System{} }

// Values implements Reader.
func (System) Values(Hive, View, string, ...string) (map[string]string, error) {
	return nil, ErrNotExist
}

// SubKeys implements Reader.
func (System) SubKeys(Hive, View, string) ([]string, error) {
	return nil, ErrNotExist
}
