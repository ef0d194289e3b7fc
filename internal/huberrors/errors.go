// Package huberrors provides sentinel and custom error types for the recommender.
package huberrors

// ErrNotFound represents a "not found" error.
// Use when a requested resource doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
// Use when request input fails validation.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrGeocoding is the sentinel for place names that cannot be resolved to coordinates.
// A geocoding failure stops the whole request.
var ErrGeocoding = &GeocodingError{}

// GeocodingError reports that Place could not be resolved.
type GeocodingError struct {
	Place   string
	Message string
	// Err is the underlying cause, if any (e.g. geocoding.ErrUnavailable).
	Err error
}

// NewGeocodingError creates a GeocodingError for place.
func NewGeocodingError(place, message string) *GeocodingError {
	return &GeocodingError{Place: place, Message: message}
}

// Error implements the error interface.
func (e *GeocodingError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "location could not be resolved"
	}

	if e.Place != "" {
		return msg + ": " + e.Place
	}

	return msg
}

// Is implements the error interface for error comparison.
func (e *GeocodingError) Is(target error) bool {
	_, ok := target.(*GeocodingError)

	return ok
}

// Unwrap returns the underlying cause.
func (e *GeocodingError) Unwrap() error {
	return e.Err
}

// ErrDegenerateVector is the sentinel for vectors whose norm is zero (or whose
// dimensions do not line up), which makes cosine similarity undefined.
var ErrDegenerateVector = &DegenerateVectorError{}

// DegenerateVectorError reports an undefined similarity. Subject names what was
// being scored (a restaurant ID or "query").
type DegenerateVectorError struct {
	Subject string
	Message string
}

// NewDegenerateVectorError creates a DegenerateVectorError.
func NewDegenerateVectorError(subject, message string) *DegenerateVectorError {
	return &DegenerateVectorError{Subject: subject, Message: message}
}

// Error implements the error interface.
func (e *DegenerateVectorError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "degenerate vector"
	}

	if e.Subject != "" {
		return e.Subject + ": " + msg
	}

	return msg
}

// Is implements the error interface for error comparison.
func (e *DegenerateVectorError) Is(target error) bool {
	_, ok := target.(*DegenerateVectorError)

	return ok
}
