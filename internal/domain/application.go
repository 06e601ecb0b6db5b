package domain

import "time"

// Application is the top of a user's portfolio: applications → categories → domains.
type Application struct {
	ApplicationID string    `json:"id" dynamodbav:"application_id"`
	UserID        string    `json:"user_id" dynamodbav:"user_id"`
	Name          string    `json:"name" dynamodbav:"name"`
	Description   string    `json:"description" dynamodbav:"description"`
	CreatedAt     time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt     time.Time `json:"updated" dynamodbav:"updated_at"`
}

type ApplicationInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}
