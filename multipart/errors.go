package multipart

import "errors"

var (
	// ErrInvalidInput is returned when the field list is empty, a field has
	// no name, or (in strict mode) a header value contains a quote, CR or LF.
	ErrInvalidInput = errors.New("multipart: invalid input")

	// ErrInvalidBoundary is returned when a boundary generator yields a token
	// that is not a legal RFC 2046 boundary.
	ErrInvalidBoundary = errors.New("multipart: invalid boundary")

	// ErrBoundaryCollision is returned by the collision-checking encoder when
	// every generated boundary occurred inside some field's content.
	ErrBoundaryCollision = errors.New("multipart: boundary collides with field content")
)
