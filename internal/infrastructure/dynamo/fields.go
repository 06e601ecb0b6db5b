package dynamo

// DynamoDB attribute names used in update expressions across all repos.
const (
	fieldEnable           = "enable"
	fieldDeletedAt        = "deleted_at"
	fieldUpdatedAt        = "updated_at"
	fieldRead             = "read"
	fieldRefreshToken     = "refresh_token"
	fieldRefreshExpiresAt = "refresh_expires_at"
)

// maxRetries bounds optimistic-concurrency and unprocessed-item loops.
const maxRetries = 8
