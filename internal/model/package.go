package model

// PackageInfo is the installed-package metadata published by the registry.
type PackageInfo struct {
	Name           string
	VersionCode    int64
	LastUpdateTime int64
	Label          string
	TargetSDK      int

	// DataOnly marks a package whose data is present but whose code is not
	// installed for any user.
	DataOnly bool
	// Instant marks an instant (not installed) app.
	Instant bool
}
