package dto

// StartEmailLoginRequest starts a login-or-signup-by-email attempt
type StartEmailLoginRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// StartEmailLoginResponse returns the opaque attempt handle
type StartEmailLoginResponse struct {
	EmailLoginID    string `json:"emailLoginId"`
	ValidForSeconds int    `json:"validForSeconds"`
}

// CompleteEmailLoginRequest completes an email login attempt with a code
type CompleteEmailLoginRequest struct {
	OneTimePassword   string `json:"oneTimePassword" binding:"required"`
	PreferredTenantID string `json:"preferredTenantId"`
}

// ResendEmailLoginResponse reports the restarted validity window
type ResendEmailLoginResponse struct {
	ValidForSeconds int `json:"validForSeconds"`
}

// StartExternalLoginRequest carries the optional query parameters for the
// external login start endpoints
type StartExternalLoginRequest struct {
	ReturnPath        string `form:"ReturnPath"`
	PreferredTenantID string `form:"PreferredTenantId"`
	Locale            string `form:"Locale"`
}

// ExternalLoginCallbackRequest carries the provider callback parameters
type ExternalLoginCallbackRequest struct {
	Code             string `form:"code"`
	State            string `form:"state"`
	Error            string `form:"error"`
	ErrorDescription string `form:"error_description"`
}

// ProblemDetails is the structured error body clients render inline
type ProblemDetails struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}
