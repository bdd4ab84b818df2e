// Package security guards the filesystem paths accepted from remote callers
// and the names used for generated output files.
package security

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ValidatePathWithinDirectory checks that filePath resolves inside safeDir.
// Symlinks are resolved on both sides, including on the nearest existing
// parent when filePath itself does not exist yet.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	absSafeDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory path: %w", err)
	}

	canonicalPath := absPath
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		canonicalPath = resolved
	} else {
		// Walk up to the first existing parent so a missing leaf under a
		// symlinked directory is still checked against its real location.
		checkPath := absPath
		for {
			parentDir := filepath.Dir(checkPath)
			if parentDir == checkPath {
				break
			}
			if resolved, err := filepath.EvalSymlinks(parentDir); err == nil {
				relToParent, _ := filepath.Rel(parentDir, absPath)
				canonicalPath = filepath.Join(resolved, relToParent)
				break
			}
			checkPath = parentDir
		}
	}

	canonicalSafeDir, err := filepath.EvalSymlinks(absSafeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory symlinks: %w", err)
	}

	relPath, err := filepath.Rel(canonicalSafeDir, canonicalPath)
	if err != nil {
		return fmt.Errorf("path is outside safe directory: %w", err)
	}

	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) || filepath.IsAbs(relPath) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", filePath, safeDir)
	}

	return nil
}

// ValidatePathWithinAllowedDirs checks if a file path is within any of the allowed directories.
func ValidatePathWithinAllowedDirs(filePath string, allowedDirs []string) error {
	if len(allowedDirs) == 0 {
		return fmt.Errorf("no allowed directories specified")
	}

	for _, dir := range allowedDirs {
		if err := ValidatePathWithinDirectory(filePath, dir); err == nil {
			return nil
		}
	}

	return fmt.Errorf("path must be within one of the allowed directories: %v", allowedDirs)
}

// ValidateInputFiles checks every path of a state file list against the
// allowed directories and reports the first rejected entry.
func ValidateInputFiles(paths []string, allowedDirs []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no input files given")
	}
	for i, p := range paths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("input file %d: empty path", i)
		}
		if err := ValidatePathWithinAllowedDirs(p, allowedDirs); err != nil {
			return fmt.Errorf("input file %d (%s): %w", i, p, err)
		}
	}
	return nil
}

// SanitizeFilename makes a safe filename from an arbitrary string. Runs of
// characters outside [A-Za-z0-9._-] collapse to one underscore and the
// result is capped at 128 bytes.
func SanitizeFilename(s string) string {
	if s == "" {
		return "unknown"
	}
	var b strings.Builder
	const maxLen = 128
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// SnapshotFilename names an output artefact for one object pair at one
// epoch, e.g. "snapshot_101_202_t2460000.5.png".
func SnapshotFilename(idA, idB uint16, epoch float64, ext string) string {
	base := fmt.Sprintf("snapshot_%d_%d_t%s", idA, idB, strconv.FormatFloat(epoch, 'f', -1, 64))
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return SanitizeFilename(base)
	}
	return SanitizeFilename(base) + "." + SanitizeFilename(ext)
}
