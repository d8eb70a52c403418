package store

import "strings"

// Pattern は "VillagesPlaying/{village}" のようなパスのパターン。{name} の部分がパラメータになる
type Pattern struct {
	raw   string
	parts []string
}

func ParsePattern(raw string) Pattern {
	return Pattern{raw: raw, parts: split(raw)}
}

func (p Pattern) String() string { return p.raw }

// Match はパスがパターンに一致すればパラメータを返します。
func (p Pattern) Match(path string) (map[string]string, bool) {
	parts := split(path)
	if len(parts) != len(p.parts) {
		return nil, false
	}
	params := make(map[string]string)
	for i, part := range p.parts {
		if name, ok := paramName(part); ok {
			if parts[i] == "" {
				return nil, false
			}
			params[name] = parts[i]
			continue
		}
		if part != parts[i] {
			return nil, false
		}
	}
	return params, true
}

func paramName(part string) (string, bool) {
	if len(part) > 2 && strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
		return part[1 : len(part)-1], true
	}
	return "", false
}

func split(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

// Join はパスの要素を "/" で連結します。
func Join(parts ...string) string {
	trimmed := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			trimmed = append(trimmed, p)
		}
	}
	return strings.Join(trimmed, "/")
}

// normalize removes leading and trailing separators so "/A/b/" and "A/b" address the same key.
func normalize(path string) string {
	return strings.Trim(path, "/")
}
