package domain

import (
	"strings"
	"time"
)

// Operation is a named, slash-hierarchical action identifier such as
// "/Account/Edit". A permission set on an ancestor name applies to every
// operation beneath it.
type Operation struct {
	ID        string
	Name      string
	ParentID  *string
	CreatedAt time.Time
}

// ValidateOperationName checks the naming invariant: non-empty, leading
// slash, no empty path segments, no trailing slash.
func ValidateOperationName(name string) error {
	if name == "" {
		return ErrValidation("operation name is required")
	}
	if !strings.HasPrefix(name, "/") {
		return ErrValidation("operation name %q must start with '/'", name)
	}
	if strings.HasSuffix(name, "/") {
		return ErrValidation("operation name %q must not end with '/'", name)
	}
	for _, seg := range strings.Split(name[1:], "/") {
		if seg == "" {
			return ErrValidation("operation name %q contains an empty path segment", name)
		}
	}
	return nil
}

// OperationAncestry returns the name and all ancestor names, nearest first:
// OperationAncestry("/a/b/c") = ["/a/b/c", "/a/b", "/a"].
func OperationAncestry(name string) []string {
	names := []string{name}
	for {
		idx := strings.LastIndex(name, "/")
		if idx <= 0 {
			break
		}
		name = name[:idx]
		names = append(names, name)
	}
	return names
}

// ParentOperationName returns the immediate ancestor name, or "" for a
// top-level operation.
func ParentOperationName(name string) string {
	idx := strings.LastIndex(name, "/")
	if idx <= 0 {
		return ""
	}
	return name[:idx]
}
