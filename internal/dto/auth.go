package dto

// RegisterRequest captures POST /user-register.
type RegisterRequest struct {
	Name     string `json:"name" form:"name" validate:"required,max=120"`
	Email    string `json:"email" form:"email" validate:"required,email"`
	Phone    string `json:"phone" form:"phone" validate:"required,numeric,len=10"`
	Password string `json:"password" form:"password" validate:"required,min=8,max=72"`
}

// LoginRequest captures POST /user-login.
type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

// StaffLoginRequest captures POST /staff-login.
type StaffLoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

// ChangePasswordRequest captures POST /user-change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" form:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" form:"new_password" validate:"required,min=8,max=72,nefield=CurrentPassword"`
}

// AuthStatusResponse reports the applicant session state.
type AuthStatusResponse struct {
	LoggedIn bool   `json:"logged_in"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
}
