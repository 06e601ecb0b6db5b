package domain

import "time"

type User struct {
	UserID          string     `json:"id" dynamodbav:"user_id"`
	Username        string     `json:"username" dynamodbav:"username"`
	Email           string     `json:"email" dynamodbav:"email"`
	PasswordHash    string     `json:"-" dynamodbav:"password_hash"`
	Role            string     `json:"role" dynamodbav:"role"`
	FirstName       string     `json:"first_name" dynamodbav:"first_name"`
	LastName        string     `json:"last_name" dynamodbav:"last_name"`
	EmailVerified   bool       `json:"email_verified" dynamodbav:"email_verified"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty" dynamodbav:"email_verified_at"`
	Enable          int        `json:"enable" dynamodbav:"enable"` // 1 = enabled, 0 = disabled; numeric for the enable-index GSI
	DeletedAt       *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at"`
	CreatedAt       time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt       time.Time  `json:"updated" dynamodbav:"updated_at"`
}

func (u *User) IsEnabled() bool { return u.Enable == 1 }

type CreateUserRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=40"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
}

type UpdateUserRequest struct {
	Username  *string `json:"username" validate:"omitempty,min=3,max=40"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Role      *string `json:"role"`
	Enable    *int    `json:"enable" validate:"omitempty,oneof=0 1"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}
