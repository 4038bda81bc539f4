package model

// Machine-readable error codes returned in the error envelope. Clients key
// their messaging and the automatic refresh-on-expiry flow off these.
const (
	CodeMissingAuthHeader       = "MISSING_AUTH_HEADER"
	CodeMissingToken            = "MISSING_TOKEN"
	CodeTokenExpired            = "TOKEN_EXPIRED"
	CodeInvalidToken            = "INVALID_TOKEN"
	CodeAuthFailed              = "AUTH_FAILED"
	CodeAuthRequired            = "AUTH_REQUIRED"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeActionNotPermitted      = "ACTION_NOT_PERMITTED"
	CodeOwnershipRequired       = "OWNERSHIP_REQUIRED"
)

// Generic error codes for non-auth failures.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeVoucherUsed    = "VOUCHER_USED"
	CodeInternalError  = "INTERNAL_ERROR"
)

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the stable error code plus optional context fields.
// Required/Current accompany INSUFFICIENT_PERMISSIONS; Action/UserRole
// accompany ACTION_NOT_PERMITTED.
type ErrorDetail struct {
	Message  string `json:"message"`
	Code     string `json:"code"`
	Required Role   `json:"required,omitempty"`
	Current  Role   `json:"current,omitempty"`
	Action   Action `json:"action,omitempty"`
	UserRole Role   `json:"userRole,omitempty"`
}

// ListResponse is the standard envelope for list endpoints.
type ListResponse struct {
	Resource interface{}   `json:"resource"`
	Meta     *ResponseMeta `json:"meta,omitempty"`
}

// ResponseMeta contains pagination information for list responses.
type ResponseMeta struct {
	Count  int    `json:"count"`
	Total  *int64 `json:"total,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}
