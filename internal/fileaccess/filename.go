package fileaccess

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultSaveName is the name offered by the save picker when the caller has
// none.
const DefaultSaveName = "untitled.txt"

// MaxFilenameLength is the longest file name accepted, in characters.
const MaxFilenameLength = 255

var (
	invalidNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	edgeDots         = regexp.MustCompile(`^\.+|\.+$`)
	runsOfSpace      = regexp.MustCompile(`\s+`)

	upper = cases.Upper(language.Und)
)

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// Filename validation errors.
var (
	ErrNameEmpty    = errors.New("file name is empty")
	ErrNameTooLong  = fmt.Errorf("file name is longer than %d characters", MaxFilenameLength)
	ErrNameChars    = errors.New("file name contains characters that are not allowed")
	ErrNameReserved = errors.New("file name is reserved on Windows")
	ErrNameDots     = errors.New("file name must not start or end with a dot")
)

// ValidateFilename reports the first problem with name, or nil.
func ValidateFilename(name string) error {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ErrNameEmpty
	case utf8.RuneCountInString(name) > MaxFilenameLength:
		return ErrNameTooLong
	case invalidNameChars.MatchString(name):
		return ErrNameChars
	case isReserved(name):
		return ErrNameReserved
	case strings.HasPrefix(name, ".") || strings.HasSuffix(name, "."):
		return ErrNameDots
	}
	return nil
}

// SanitizeFilename rewrites name into one ValidateFilename accepts. Invalid
// characters become underscores, reserved device names get a "_copy" suffix
// and an empty result falls back to DefaultSaveName.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = invalidNameChars.ReplaceAllString(name, "_")
	name = edgeDots.ReplaceAllString(name, "")
	name = runsOfSpace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultSaveName
	}

	if isReserved(name) {
		base, rest, hasExt := strings.Cut(name, ".")
		name = base + "_copy"
		if hasExt {
			name += "." + rest
		}
	}

	if utf8.RuneCountInString(name) > MaxFilenameLength {
		stem, ext := splitStem(name)
		keep := MaxFilenameLength - utf8.RuneCountInString(ext)
		if keep < 1 {
			stem, ext, keep = name, "", MaxFilenameLength
		}
		name = string([]rune(stem)[:keep]) + ext
	}
	return name
}

// isReserved checks the part before the first dot, so "con.txt" and
// "CON.tar.gz" are both reserved.
func isReserved(name string) bool {
	base, _, _ := strings.Cut(name, ".")
	return reservedNames[upper.String(strings.TrimSpace(base))]
}

func splitStem(name string) (string, string) {
	ext := filepath.Ext(name)
	if ext == name {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}
