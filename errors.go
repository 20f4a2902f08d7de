package odm

import "errors"

var (
	// ErrSchemaViolation reports an attribute name outside the kind's schema,
	// a missing required attribute, or an attempt to assign "_id".
	ErrSchemaViolation = errors.New("odm: schema violation")
	// ErrRedundantWrite reports an assignment of the value an attribute already holds.
	ErrRedundantWrite = errors.New("odm: redundant write")
	// ErrUnknownKind reports a kind that was never registered.
	ErrUnknownKind = errors.New("odm: unknown kind")
	// ErrNoResolver reports an address assignment on a registry without a geocoder.
	ErrNoResolver = errors.New("odm: no geocoder configured")
)
