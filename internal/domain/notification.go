package domain

import "time"

// Notification tells a user that a tracked name became available.
type Notification struct {
	NotificationID string    `json:"id" dynamodbav:"notification_id"`
	UserID         string    `json:"user_id" dynamodbav:"user_id"`
	DomainID       string    `json:"domain_id" dynamodbav:"domain_id"`
	FQDN           string    `json:"fqdn" dynamodbav:"fqdn"`
	Message        string    `json:"message" dynamodbav:"message"`
	Read           bool      `json:"read" dynamodbav:"read"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated" dynamodbav:"updated_at"`
}
