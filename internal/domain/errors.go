package domain

// ErrInvalidInput wraps every validation failure of a submitted URL or file.
// Callers report it synchronously; it is never retried.
var ErrInvalidInput = errString("invalid input")

var ErrNotFound = errString("not found")

type errString string

func (e errString) Error() string { return string(e) }
