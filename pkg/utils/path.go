package utils

import "strings"

// PathToKey converts a filesystem path to an object key by stripping the
// leading slash and collapsing any repeated separators. The root path maps
// to the empty key.
//
// Example usage:
//
//	key := utils.PathToKey("/photos/2024/img.jpg") // "photos/2024/img.jpg"
func PathToKey(path string) string {
	parts := SplitPath(path)
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "/")
}

// KeyToPath converts an object key to an absolute filesystem path.
// The empty key maps to the root path.
func KeyToPath(key string) string {
	return "/" + key
}

// SplitPath splits a path or key into its non-empty components. Leading,
// trailing, and repeated separators are ignored.
func SplitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// DirPrefix returns the listing prefix for the directory identified by key:
// an empty string for the root, otherwise the key with a trailing separator.
func DirPrefix(key string) string {
	if key == "" {
		return ""
	}
	return key + "/"
}

// BaseName returns the final component of a path or key, or the empty
// string for the root.
func BaseName(path string) string {
	parts := SplitPath(path)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
