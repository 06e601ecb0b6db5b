package domain

type TLD struct {
	TLDID  string `json:"id" dynamodbav:"tld_id"`
	Name   string `json:"name" dynamodbav:"name"` // without the leading dot
	Enable bool   `json:"enable" dynamodbav:"enable"`
}

type TLDInput struct {
	Name   string `json:"name" validate:"required,domainlabel"`
	Enable *bool  `json:"enable"`
}
