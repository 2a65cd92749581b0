package request

// CreateGuestRequest is the request body for creating a guest player
type CreateGuestRequest struct {
	DisplayName string `json:"display_name"`
}

// RegisterRequest is the request body for registering a player
type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// StartCountdownRequest is the request body for starting the lobby
// countdown. An omitted delay uses the server default.
type StartCountdownRequest struct {
	DelaySeconds *int `json:"delay_seconds,omitempty"`
}
