package user

import "time"

type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	PhoneVerified bool      `json:"phoneVerified"`
	Timezone      string    `json:"timezone,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

type UpdateProfileRequest struct {
	Name string `json:"name"`
}

type UpdateTimezoneRequest struct {
	Timezone string `json:"timezone"`
}

type SetPhoneRequest struct {
	Phone string `json:"phone"`
}

type VerifyPhoneRequest struct {
	Code string `json:"code"`
}
