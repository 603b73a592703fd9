package errors

const (
	HttpNoResultError      = "no_result"
	HttpCustomerNotFound   = "customer_not_found"
	HttpRefreshFailedError = "refresh_failed"
	HttpComputeFailedError = "compute_failed"
)

// ErrorResponse is the error response body of the dashboard API.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
