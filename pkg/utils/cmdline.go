// pkg/utils/cmdline.go - splitting registry command strings into argument vectors.

package utils

import (
	"strings"
	"unicode"
)

// SplitCommandLine turns a raw UninstallString-style value into an argument
// vector.
//
//   - strings that start with a quote or with msiexec are tokenized on
//     whitespace, honouring single and double quotes
//   - an unquoted path followed by arguments is split after ".exe"
//   - anything else is returned as a single token
//
// Backslashes are never treated as escapes.
func SplitCommandLine(command string) []string {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil
	}
	lower := strings.ToLower(command)
	if strings.HasPrefix(command, `"`) || strings.HasPrefix(command, `'`) || strings.HasPrefix(lower, "msiexec") {
		return tokenize(command)
	}
	if idx := strings.Index(lower, ".exe "); idx >= 0 {
		exe := command[:idx+len(".exe")]
		return append([]string{exe}, tokenize(command[idx+len(".exe "):])...)
	}
	return []string{command}
}

func tokenize(s string) []string {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inToken bool
	)
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case unicode.IsSpace(r):
			if inToken {
				args = append(args, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}
	if inToken {
		args = append(args, current.String())
	}
	return args
}

// DedupCommands drops argument vectors that repeat an earlier one,
// keeping first-seen order.
func DedupCommands(commands [][]string) [][]string {
	seen := make(map[string]struct{}, len(commands))
	out := make([][]string, 0, len(commands))
	for _, cmd := range commands {
		key := strings.Join(cmd, "\x00")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, cmd)
	}
	return out
}
