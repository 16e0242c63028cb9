package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeLabel trims and NFC-normalizes a display label so equal labels
// persist byte-identically regardless of how the source composed them.
func NormalizeLabel(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
