package model

import "time"

// TokenManager creates and verifies signed bearer tokens. Access and refresh
// tokens are signed with the same key and carry no kind claim; callers keep
// the two apart by context.
type TokenManager interface {
	IssueAccessToken(subject string) (string, error)
	IssueRefreshToken(subject string) (string, error)
	Verify(token string) (subject string, err error)
	RemainingLifetime(token string) (time.Duration, error)
}

// TokenPair is the result of a successful login or reissue.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	UserName     string
}
