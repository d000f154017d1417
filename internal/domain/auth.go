package domain

// Auth request/response types. Credential flows are fully delegated to the
// hosted identity provider (GoTrue); this service only relays them.

// CredentialsRequest carries email+password for sign-up and sign-in.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// EmailRequest carries the email for recovery and confirmation-resend flows.
type EmailRequest struct {
	Email string `json:"email"`
}

// SessionUser is the identity-provider view of the signed-in user.
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the token bundle issued by the identity provider.
type Session struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	RefreshToken string      `json:"refresh_token"`
	User         SessionUser `json:"user"`
}
