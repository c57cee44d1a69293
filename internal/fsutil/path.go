package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// unsafeNameChars are characters that some file systems reject in names.
var unsafeNameChars = regexp.MustCompile(`[/:*?"<>|]`)

// copySuffix matches the "_(N)" suffix ValidPath appends to avoid collisions.
var copySuffix = regexp.MustCompile(`_\(([1-9]\d*)\)$`)

// SanitizeName replaces characters that are unsafe in file names with '_'.
func SanitizeName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// ValidPath makes path usable for writing. It creates the parent directory
// and sanitizes the base name. Unless force is set, it also picks a name that
// does not exist yet by appending or incrementing a "_(N)" suffix before the
// extension: "a.txt" becomes "a_(1).txt", then "a_(2).txt".
func ValidPath(path string, force bool) (string, error) {
	slog.Debug("valid path", "path", path, "force", force)
	dir, base := filepath.Split(path)
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("fsutil: create %q: %w", dir, err)
		}
	}

	base = SanitizeName(base)
	path = filepath.Join(dir, base)
	if force {
		return path, nil
	}

	for {
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("fsutil: stat %q: %w", path, err)
		}
		base = nextName(base)
		path = filepath.Join(dir, base)
	}
	slog.Debug("valid path resolved", "path", path)
	return path, nil
}

// nextName returns base with its "_(N)" counter incremented, or "_(1)"
// added when there is none.
// Names without an extension take the counter at the end ("README_(1)"),
// unlike the "_(1)README" form older dict2anki releases produced.
func nextName(base string) string {
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	m := copySuffix.FindStringSubmatchIndex(name)
	if m == nil {
		return name + "_(1)" + ext
	}
	n, _ := strconv.Atoi(name[m[2]:m[3]])
	return name[:m[0]] + "_(" + strconv.Itoa(n+1) + ")" + ext
}
