package database

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// SanitizeGroup turns a group name into a key that is safe to use in file
// names and object keys. Spaces become underscores and slashes become dashes.
// Names with nothing usable left get a key derived from a hash of the name,
// so they never share a ledger with another group.
func SanitizeGroup(group string) string {
	group = strings.TrimSpace(group)
	if group == "" {
		return DefaultGroup
	}
	group = RemoveDiacritics(group)

	var b strings.Builder
	for _, r := range group {
		switch {
		case r == ' ':
			b.WriteRune('_')
		case r == '/' || r == '\\':
			b.WriteRune('-')
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	key := strings.Trim(b.String(), ".")
	if key == "" {
		return hashedGroupKey(group)
	}
	return key
}

// hashedGroupKey starts with '~', which sanitized names never contain.
func hashedGroupKey(group string) string {
	h := fnv.New32a()
	h.Write([]byte(group))
	return fmt.Sprintf("~%08x", h.Sum32())
}

// LedgerKey returns the storage key of the (group, date) ledger.
func LedgerKey(group string, day time.Time) (string, string) {
	return SanitizeGroup(group), FormatDate(day)
}

// LedgerFileName returns the workbook file name for a (group, date) ledger.
func LedgerFileName(group string, day time.Time) string {
	key, date := LedgerKey(group, day)
	return LedgerFilePrefix + "_" + key + "_" + date + LedgerFileExt
}
