package model

// Flag bits carried by BitmapInfo.Flags.
const (
	// FlagWorkBadge marks an icon badged for a managed profile.
	FlagWorkBadge int32 = 1 << iota
	// FlagInstant marks an icon of an instant app.
	FlagInstant
	// FlagNoBadge marks an icon that must not be badged.
	FlagNoBadge
)

// BitmapInfo is a decoded icon: PNG-encoded full and monochrome images plus
// the tint color and flag bits.
//
// The zero-pixel sentinel LowRes stands for "label and color only".
type BitmapInfo struct {
	Icon  []byte
	Mono  []byte
	Color int32
	Flags int32

	lowRes bool
}

// LowRes is the placeholder icon used until a full decode has occurred.
// Never mutate it; use NewLowRes for a colored placeholder.
var LowRes = &BitmapInfo{lowRes: true}

// NewLowRes returns a placeholder that carries a color.
func NewLowRes(color int32) *BitmapInfo {
	return &BitmapInfo{Color: color, lowRes: true}
}

// IsLowRes reports whether b is a placeholder.
func (b *BitmapInfo) IsLowRes() bool {
	return b != nil && b.lowRes
}

// IsNullOrLowRes reports whether b is absent, a placeholder or empty.
func (b *BitmapInfo) IsNullOrLowRes() bool {
	return b == nil || b.lowRes || len(b.Icon) == 0
}

// CanPersist reports whether the icon blob can be written to the store.
func (b *BitmapInfo) CanPersist() bool {
	return !b.IsNullOrLowRes()
}
