package models

// Token is returned by the login endpoint.
// swagger:model Token
type Token struct {
	// example: JWT_TOKEN
	AccessToken string `json:"access_token"`
	// example: bearer
	TokenType string `json:"token_type"`
}

// Message is a plain confirmation body.
// swagger:model Message
type Message struct {
	// example: User deleted successfully.
	Message string `json:"message"`
}

// ErrorResponse is the body of every error answer.
// swagger:model ErrorResponse
type ErrorResponse struct {
	// example: The user doesn't have enough privileges.
	Detail string `json:"detail"`
}
