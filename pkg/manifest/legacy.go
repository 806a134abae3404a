// pkg/manifest/legacy.go - key spellings accepted from older manifests.

package manifest

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/windowsadmins/provision/pkg/logging"
)

// legacyKeys maps misspelled keys found in older manifests to their current
// names. The current name wins when both are present.
var legacyKeys = map[string]string{
	"quiteinstall_flags":   "quiet_install_flags",
	"quiteuninstall_flags": "quiet_uninstall_flags",
	"delimeter":            "delimiter",
}

// renameLegacyJSON decodes data generically, renames legacy keys at every
// level and re-encodes it.
func renameLegacyJSON(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return json.Marshal(renameLegacyValue(raw))
}

func renameLegacyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = renameLegacyValue(val)
		}
		for old, current := range legacyKeys {
			val, ok := t[old]
			if !ok {
				continue
			}
			delete(t, old)
			if _, set := t[current]; set {
				logging.Warn("Ignoring legacy manifest key, current key is set", "key", old, "current", current)
				continue
			}
			logging.Warn("Legacy manifest key", "key", old, "use", current)
			t[current] = val
		}
	case []any:
		for i := range t {
			t[i] = renameLegacyValue(t[i])
		}
	}
	return v
}

// renameLegacyYAML renames legacy mapping keys in place.
func renameLegacyYAML(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		present := map[string]bool{}
		for i := 0; i+1 < len(n.Content); i += 2 {
			present[n.Content[i].Value] = true
		}
		kept := n.Content[:0]
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if current, ok := legacyKeys[key.Value]; ok {
				if present[current] {
					logging.Warn("Ignoring legacy manifest key, current key is set", "key", key.Value, "current", current)
					continue
				}
				logging.Warn("Legacy manifest key", "key", key.Value, "use", current)
				key.Value = current
			}
			kept = append(kept, key, val)
		}
		n.Content = kept
	}
	for _, c := range n.Content {
		renameLegacyYAML(c)
	}
}
