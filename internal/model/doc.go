// Package model provides the value types shared by the icon cache packages.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal.
//
// Key design constraints:
//   - ComponentKey is comparable and used directly as a map key
//   - CacheEntry.Bitmap is never nil once handed out by the cache; the LowRes
//     sentinel stands in for "not decoded yet"
//   - Labels are NFC normalized before they are persisted
package model
