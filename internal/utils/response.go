package utils

import "time"

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// FailureResponse carries a machine-readable reason code alongside the
// operator-facing message.
func FailureResponse(reason, message string) APIResponse {
	return APIResponse{
		Success:   false,
		Reason:    reason,
		Message:   message,
		Timestamp: time.Now(),
	}
}
