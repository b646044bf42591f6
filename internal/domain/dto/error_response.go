package dto

import "time"

// ErrorResponse is the JSON body of every failed HTTP request.
//
// Fields:
//   - Message: human readable summary of the failure.
//   - ErrorDetails: the underlying error, if any.
//   - Timestamp: when the response was built (UTC).
type ErrorResponse struct {
	Message      string    `json:"message" example:"catalog construction failed"`
	ErrorDetails string    `json:"error_details,omitempty" example:"missing yesterday level for 1 factor(s): USD-OIS/10Y"`
	Timestamp    time.Time `json:"timestamp"`
}

// Error implements the error interface.
func (e ErrorResponse) Error() string {
	if e.ErrorDetails == "" {
		return e.Message
	}
	return e.Message + ": " + e.ErrorDetails
}

// NewErrorResponse builds an ErrorResponse for msg, carrying err's text when err is not nil.
func NewErrorResponse(msg string, err error) ErrorResponse {
	resp := ErrorResponse{Message: msg, Timestamp: time.Now().UTC()}
	if err != nil {
		resp.ErrorDetails = err.Error()
	}
	return resp
}
