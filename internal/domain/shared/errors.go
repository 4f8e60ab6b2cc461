package shared

// Domain error codes. The HTTP layer maps them to API codes.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeInvalidInput = "INVALID_INPUT"
)

// DomainError is an error whose message is safe to return to API callers
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code, so a
// specific NotFound error matches ErrNotFound
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NotFound reports a missing store resource
func NotFound(message string) *DomainError {
	return NewDomainError(CodeNotFound, message)
}

// InvalidInput reports a request the caller must correct
func InvalidInput(message string) *DomainError {
	return NewDomainError(CodeInvalidInput, message)
}

var (
	ErrNotFound     = NotFound("Resource not found")
	ErrInvalidInput = InvalidInput("Invalid input provided")
)
