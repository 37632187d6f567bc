package model

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var windowsDrivePattern = regexp.MustCompile(`^([a-zA-Z]):[\\/](.*)$`)

// NormalizePath converts user supplied paths to the POSIX form the workers see.
// Windows drive paths map to their WSL mount ("C:\data\x" becomes "/mnt/c/data/x").
func NormalizePath(p string) string {
	raw := strings.TrimSpace(p)
	if raw == "" {
		return raw
	}
	if m := windowsDrivePattern.FindStringSubmatch(raw); m != nil {
		drive := strings.ToLower(m[1])
		rest := strings.TrimLeft(strings.ReplaceAll(m[2], `\`, "/"), "/")
		return "/mnt/" + drive + "/" + rest
	}
	return strings.ReplaceAll(raw, `\`, "/")
}

// ResolvePath normalises p and anchors relative paths at root.
func ResolvePath(root, p string) string {
	n := NormalizePath(p)
	if n == "" || filepath.IsAbs(n) {
		return n
	}
	return filepath.Join(root, filepath.FromSlash(n))
}

// BaseName returns the last element of a user supplied path for display.
func BaseName(p string) string {
	n := strings.TrimRight(NormalizePath(p), "/")
	if n == "" {
		return ""
	}
	return path.Base(n)
}
