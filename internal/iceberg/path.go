package iceberg

import (
	"regexp"
	"strings"

	"icescan/internal/domain"
)

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// PathResolver turns file references recorded in table metadata into
// locations the blob store can read.
type PathResolver struct {
	// AllowMovedPaths rebases every reference, absolute ones included, onto
	// the table root. It supports tables that were copied or migrated without
	// rewriting their metadata, and hides genuine mismatches, so it is off
	// unless explicitly requested.
	AllowMovedPaths bool
}

// Resolve returns the concrete location of ref for the table at root.
func (r PathResolver) Resolve(root, ref string) (string, error) {
	if ref == "" {
		return "", domain.ErrPath("empty file reference for table %q", root)
	}
	if !r.AllowMovedPaths {
		if IsAbsolute(ref) {
			return ref, nil
		}
		if root == "" {
			return "", domain.ErrPath("relative reference %q without a table root", ref)
		}
		return JoinLocation(root, ref), nil
	}

	if root == "" {
		return "", domain.ErrPath("cannot relocate %q without a table root", ref)
	}
	tail := relocatedTail(ref)
	if tail == "" {
		return "", domain.ErrPath("cannot derive a file name from %q", ref)
	}
	return JoinLocation(root, tail), nil
}

// IsAbsolute reports whether ref is a fully-qualified URI or a rooted path.
func IsAbsolute(ref string) bool {
	return schemePattern.MatchString(ref) || strings.HasPrefix(ref, "/")
}

// JoinLocation appends rel to root with exactly one separator. Unlike
// path.Join it leaves URI schemes ("s3://") intact.
func JoinLocation(root, rel string) string {
	return strings.TrimRight(root, "/") + "/" + strings.TrimLeft(rel, "/")
}

// relocatedTail keeps the part of ref that is stable under a table move: the
// suffix starting at the last "metadata" or "data" directory, or the final
// path component when neither appears.
func relocatedTail(ref string) string {
	p := schemePattern.ReplaceAllString(ref, "")
	segments := strings.Split(p, "/")
	for i := len(segments) - 2; i >= 0; i-- {
		if segments[i] == "metadata" || segments[i] == "data" {
			return strings.Join(segments[i:], "/")
		}
	}
	return segments[len(segments)-1]
}
