package response

// Error is an API failure that carries the HTTP status it maps to.
type Error struct {
	Code    int
	Message string
}

func (e Error) Error() string {
	return e.Message
}

// NewError creates an Error answered with status code.
func NewError(code int, message string) Error {
	return Error{Code: code, Message: message}
}
