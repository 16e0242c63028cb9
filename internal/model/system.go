package model

import (
	"strconv"
	"strings"
)

// SystemState captures the environment that persisted rows were rendered in.
// A change of locale list or platform version invalidates every row.
type SystemState struct {
	Locales         []string
	PlatformVersion int
}

// Fingerprint returns the string stored in the systemState column:
// comma-separated locale tags followed by the platform version.
func (s SystemState) Fingerprint() string {
	var b strings.Builder
	for _, l := range s.Locales {
		b.WriteString(l)
		b.WriteByte(',')
	}
	b.WriteString(strconv.Itoa(s.PlatformVersion))
	return b.String()
}
