package models

// APIResponse is the envelope for control-API responses.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// Error builds an error response.
func Error(message string) APIResponse {
	return APIResponse{Status: "error", Message: message}
}

// Success builds a success response carrying result.
func Success(result any) APIResponse {
	return APIResponse{Status: "ok", Result: result}
}

// SuccessWithMessage builds a success response with a message and result.
func SuccessWithMessage(message string, result any) APIResponse {
	return APIResponse{Status: "ok", Message: message, Result: result}
}
