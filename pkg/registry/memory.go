package registry

import (
	"sort"
	"strings"
	"sync"
)

// Memory is an in-memory Reader, used for dry runs and tests.
type Memory struct {
	mu    sync.RWMutex
	keys  map[memKey]map[string]string
	names map[memKey]string // key path as first written
}

type memKey struct {
	hive Hive
	view View
	path string
}

// NewMemory returns an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{keys: map[memKey]map[string]string{}, names: map[memKey]string{}}
}

// Set stores values under a key, creating it and merging with existing values.
func (m *Memory) Set(hive Hive, view View, path string, values map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey{hive, view, strings.ToLower(path)}
	if m.keys[k] == nil {
		m.keys[k] = map[string]string{}
		m.names[k] = path
	}
	for name, v := range values {
		m.keys[k][name] = v
	}
}

// AddProgram registers an installed program under the Uninstall key.
func (m *Memory) AddProgram(hive Hive, view View, subKey string, values map[string]string) {
	m.Set(hive, view, UninstallPath+`\`+subKey, values)
}

// Values implements Reader.
func (m *Memory) Values(hive Hive, view View, path string, names ...string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vals, ok := m.keys[memKey{hive, view, strings.ToLower(path)}]
	if !ok {
		return nil, ErrNotExist
	}
	out := map[string]string{}
	if len(names) == 0 {
		for n, v := range vals {
			out[n] = v
		}
		return out, nil
	}
	for _, n := range names {
		if v, ok := vals[n]; ok {
			out[n] = v
		}
	}
	return out, nil
}

// SubKeys implements Reader.
func (m *Memory) SubKeys(hive Hive, view View, path string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := strings.ToLower(path) + `\`
	seen := map[string]struct{}{}
	var out []string
	found := false
	// subkey names compare case-insensitively, like the real registry
	for k := range m.keys {
		if k.hive != hive || k.view != view {
			continue
		}
		if k.path == strings.ToLower(path) {
			found = true
		}
		if !strings.HasPrefix(k.path, prefix) {
			continue
		}
		found = true
		child := strings.SplitN(m.names[k][len(prefix):], `\`, 2)[0]
		if _, ok := seen[strings.ToLower(child)]; !ok {
			seen[strings.ToLower(child)] = struct{}{}
			out = append(out, child)
		}
	}
	if !found {
		return nil, ErrNotExist
	}
	sort.Strings(out)
	return out, nil
}
