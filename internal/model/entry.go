package model

// CacheEntry is the record handed out by the icon cache.
//
// Bitmap is never nil for an entry returned by the cache. An entry whose
// bitmap IsLowRes has not been fully decoded yet; asking the cache for full
// resolution upgrades it synchronously.
type CacheEntry struct {
	Bitmap             *BitmapInfo
	Title              string
	ContentDescription string
}

// NewCacheEntry returns an entry holding the LowRes placeholder.
func NewCacheEntry() *CacheEntry {
	return &CacheEntry{Bitmap: LowRes}
}

// HasTitle reports whether a label has been resolved.
func (e *CacheEntry) HasTitle() bool {
	return e.Title != ""
}
