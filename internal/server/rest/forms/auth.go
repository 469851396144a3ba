package forms

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// RegisterForm contains the fields required for user registration.
type RegisterForm struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// LoginForm contains the fields required for login. Password length is not
// checked here so that every failure looks the same to the client.
type LoginForm struct {
	Email    string `json:"email" binding:"required,max=254"`
	Password string `json:"password" binding:"required,max=128"`
}

// RefreshForm carries the refresh token when it is not sent as a cookie.
type RefreshForm struct {
	RefreshToken string `json:"refreshToken" binding:"max=256"`
}

// EstablishmentForm describes a venue to register.
type EstablishmentForm struct {
	Name    string `json:"name" binding:"required,min=2,max=120"`
	Address string `json:"address" binding:"required,max=255"`
	Cuisine string `json:"cuisine" binding:"max=64"`
}

// Message turns a binding error into a short client-facing message.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}
