package store

// Column names of the icons table.
const (
	ColRowID       = "rowid"
	ColComponent   = "component"
	ColUser        = "user"
	ColLastUpdated = "lastUpdated"
	ColVersion     = "version"
	ColIcon        = "icon"
	ColMonoIcon    = "monoIcon"
	ColIconDigest  = "icon_digest"
	ColColor       = "color"
	ColFlags       = "flags"
	ColLabel       = "label"
	ColSystemState = "systemState"
	ColKeywords    = "keywords"
)

// Projections.
var (
	// LowResColumns avoids reading icon blobs when only text is needed.
	LowResColumns = []string{
		ColRowID, ColComponent, ColUser, ColLastUpdated, ColVersion,
		ColColor, ColFlags, ColLabel, ColSystemState, ColKeywords,
	}

	// HighResColumns adds the icon and monochrome blobs.
	HighResColumns = append(append([]string(nil), LowResColumns...),
		ColIcon, ColMonoIcon, ColIconDigest)

	// ReconcileColumns is what the reconciliation pass classifies rows by.
	ReconcileColumns = []string{
		ColRowID, ColComponent, ColLastUpdated, ColVersion, ColSystemState,
	}
)

// knownColumns is the allowlist for query compilation.
var knownColumns = map[string]bool{
	ColRowID: true, ColComponent: true, ColUser: true, ColLastUpdated: true,
	ColVersion: true, ColIcon: true, ColMonoIcon: true, ColIconDigest: true,
	ColColor: true, ColFlags: true, ColLabel: true, ColSystemState: true,
	ColKeywords: true,
}

// Row is one persisted icon record. Icon and Mono hold uncompressed bytes;
// nil means the column is NULL (or was not selected).
type Row struct {
	RowID       int64
	Component   string
	User        int64
	LastUpdated int64
	Version     int64
	Icon        []byte
	Mono        []byte
	Color       int32
	Flags       int32
	Label       string
	SystemState string
	Keywords    string
}

// Key addresses a row by its primary key.
type Key struct {
	Component string
	User      int64
}
