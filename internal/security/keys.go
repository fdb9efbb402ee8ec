package security

// Key prefixes for the shared expiring keyspace. Kept in one place so the
// concerns cannot collide.
const (
	loginFailurePrefix = "login:failure:"
	rateLimitPrefix    = "ratelimit:"
	blacklistPrefix    = "blacklist:token:"
	rotatedPrefix      = "rotated:token:"
)
