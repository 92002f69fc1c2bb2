package crawler

import "strings"

// Resolve joins a base URL and a discovered path into an absolute URL.
//
// rawPath may be absolute (returned unchanged), root-relative ("/a/b.js")
// or relative ("../b.js"). The base is treated as the directory of the page:
// a trailing segment containing a dot is dropped unless it is the host.
// Empty segments are ignored, "." is a no-op and ".." never climbs above the
// host. Query strings and fragments are treated as ordinary path text.
func Resolve(baseURL, rawPath string) string {
	if hasHTTPScheme(rawPath) {
		return rawPath
	}

	stack := baseSegments(baseURL)
	if len(stack) == 0 {
		return rawPath
	}
	if strings.HasPrefix(rawPath, "/") {
		stack = stack[:1]
	}

	for _, seg := range splitSegments(rawPath) {
		switch seg {
		case ".":
		case "..":
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, seg)
		}
	}

	return strings.Join(stack, "/")
}

// baseSegments splits a base URL into path segments with scheme and host
// folded into the first one, e.g. "https://h/a/b.js" -> ["https://h", "a"].
func baseSegments(baseURL string) []string {
	parts := splitSegments(baseURL)
	if len(parts) < 2 {
		return parts
	}

	stack := make([]string, 0, len(parts)-1)
	stack = append(stack, parts[0]+"//"+parts[1])
	stack = append(stack, parts[2:]...)

	if len(stack) > 1 && strings.Contains(stack[len(stack)-1], ".") {
		stack = stack[:len(stack)-1]
	}
	return stack
}

// splitSegments splits s on "/" and drops empty segments.
func splitSegments(s string) []string {
	fields := strings.Split(s, "/")
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// hasHTTPScheme reports whether s starts with http:// or https://.
func hasHTTPScheme(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
