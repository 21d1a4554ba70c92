// Package dto provides data transfer objects for HTTP requests/responses
package dto

// Response is a generic API response wrapper
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo holds error information
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OK wraps a successful payload.
func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Err wraps an error payload.
func Err(code, message string) Response {
	return Response{Success: false, Error: &ErrorInfo{Code: code, Message: message}}
}
