package domain

import "time"

// Domain is a candidate name tracked without its TLD ("validnames", not "validnames.com").
type Domain struct {
	DomainID      string    `json:"id" dynamodbav:"domain_id"`
	CategoryID    string    `json:"category_id" dynamodbav:"category_id"`
	ApplicationID string    `json:"application_id" dynamodbav:"application_id"`
	UserID        string    `json:"user_id" dynamodbav:"user_id"`
	Name          string    `json:"name" dynamodbav:"name"`
	CreatedAt     time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt     time.Time `json:"updated" dynamodbav:"updated_at"`
}

type DomainInput struct {
	Name string `json:"name" validate:"required,domainlabel"`
}

// FQDN joins a label and a TLD.
func FQDN(label, tld string) string {
	return label + "." + tld
}
