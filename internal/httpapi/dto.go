package httpapi

import (
	"time"

	webster "github.com/babymilooo/webster-backend"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	UserName string `json:"userName" validate:"omitempty,max=64"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

// editProfileRequest leaves absent fields unchanged.
type editProfileRequest struct {
	UserName *string `json:"userName" validate:"omitempty,min=1,max=64"`
	Email    *string `json:"email" validate:"omitempty,email,max=254"`
}

// userResponse is the sanitized account returned to its owner.
type userResponse struct {
	ID                    string    `json:"_id"`
	UserName              string    `json:"userName"`
	Email                 string    `json:"email"`
	EmailVerified         bool      `json:"emailVerified"`
	Role                  string    `json:"role"`
	ProfilePicture        string    `json:"profilePicture,omitempty"`
	IsRegisteredViaGoogle bool      `json:"isRegisteredViaGoogle"`
	CreatedAt             time.Time `json:"createdAt"`
}

func userFromIdentity(i webster.Identity) userResponse {
	return userResponse{
		ID:                    i.ID,
		UserName:              i.UserName,
		Email:                 i.Email,
		EmailVerified:         i.EmailVerified,
		Role:                  i.Role,
		ProfilePicture:        i.ProfilePicture,
		IsRegisteredViaGoogle: i.RegisteredViaGoogle,
		CreatedAt:             i.CreatedAt,
	}
}

type messageResponse struct {
	Message string `json:"message"`
}
