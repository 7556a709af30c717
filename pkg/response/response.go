package response

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success wraps data in a successful response
func Success(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// Message returns a successful response with a human readable message
func Message(msg string, data interface{}) Response {
	return Response{Success: true, Message: msg, Data: data}
}

// Paged wraps a page of results together with its pagination metadata
func Paged(data, meta interface{}) Response {
	return Response{Success: true, Data: data, Meta: meta}
}

// Error returns a failed response carrying a public error message
func Error(err string) Response {
	return Response{Success: false, Error: err}
}
