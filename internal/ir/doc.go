// Package ir provides the mid-level IR types consumed by mirdump.
//
// This package contains the data model only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Places are values; deriving a place never aliases its parent's projection
//   - Place.Key is the identity used for set membership
//   - No float types anywhere; canonical JSON rejects them
//   - All JSON tags use snake_case
package ir
