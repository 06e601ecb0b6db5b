package domain

import "time"

const (
	CheckStatusOK    = "ok"
	CheckStatusError = "error"
)

// Check is the latest availability result for one domain in one TLD.
// PK: domain_id, SK: tld.
type Check struct {
	DomainID      string     `json:"domain_id" dynamodbav:"domain_id"`
	TLD           string     `json:"tld" dynamodbav:"tld"`
	FQDN          string     `json:"fqdn" dynamodbav:"fqdn"`
	UserID        string     `json:"-" dynamodbav:"user_id"`
	ApplicationID string     `json:"application_id" dynamodbav:"application_id"`
	Available     bool       `json:"available" dynamodbav:"available"`
	Registrar     string     `json:"registrar,omitempty" dynamodbav:"registrar"`
	TrustScore    *int       `json:"trust_score" dynamodbav:"trust_score"`
	RegisteredAt  *time.Time `json:"registered_at,omitempty" dynamodbav:"registered_at"`
	DomainAgeDays *int       `json:"domain_age_days,omitempty" dynamodbav:"domain_age_days"`
	Status        string     `json:"status" dynamodbav:"status"`
	Error         string     `json:"error,omitempty" dynamodbav:"error"`
	CheckedAt     time.Time  `json:"checked_at" dynamodbav:"checked_at"`
}

// LookupResult is what a registry lookup reports for one FQDN.
type LookupResult struct {
	Available    bool
	Registrar    string
	RegisteredAt *time.Time
	DNSSEC       bool
}
