package native

import "strings"

// splitPath splits an absolute or relative path into components,
// dropping empty segments.
func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// cleanPath normalizes a path to start with "/" and carry no trailing
// slash.
func cleanPath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(path, "/")
}

// joinPath appends name to an absolute base path.
func joinPath(base, name string) string {
	base = cleanPath(base)
	name = strings.Trim(name, "/")
	if base == "/" {
		return "/" + name
	}
	return base + "/" + name
}

// parentPath returns the parent of an absolute path and the final
// component. The parent of "/" is "/" with an empty base.
func parentPath(path string) (parent, base string) {
	path = cleanPath(path)
	if path == "/" {
		return "/", ""
	}
	idx := strings.LastIndex(path, "/")
	if idx == 0 {
		return "/", path[1:]
	}
	return path[:idx], path[idx+1:]
}
