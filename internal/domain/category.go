package domain

import "time"

type Category struct {
	CategoryID    string    `json:"id" dynamodbav:"category_id"`
	ApplicationID string    `json:"application_id" dynamodbav:"application_id"`
	UserID        string    `json:"user_id" dynamodbav:"user_id"`
	Name          string    `json:"name" dynamodbav:"name"`
	CreatedAt     time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt     time.Time `json:"updated" dynamodbav:"updated_at"`
}

type CategoryInput struct {
	Name string `json:"name" validate:"required,max=100"`
}
