package geodash

import "github.com/cryptekbits/GeoDash/internal/geoerr"

// Error is the public alias of the core's typed error, per spec.md §7.
// Callers use errors.As(err, &geodash.Error{}) the same way they would
// against internal/geoerr directly; this alias just keeps internal/ off
// the public API surface.
type Error = geoerr.Error

// Kind is the public alias of the core's error-kind enum, per spec.md §7.
type Kind = geoerr.Kind

// Error kind constants, re-exported for callers that want to branch on
// kind rather than HTTP status.
const (
	KindConfiguration = geoerr.KindConfiguration
	KindConnection    = geoerr.KindConnection
	KindQuery         = geoerr.KindQuery
	KindTransaction   = geoerr.KindTransaction
	KindDataImport    = geoerr.KindDataImport
	KindDataNotFound  = geoerr.KindDataNotFound
	KindInvalidParam  = geoerr.KindInvalidParam
	KindUncategorized = geoerr.KindUncategorized
)
