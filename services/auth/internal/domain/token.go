package domain

// Token kinds carried in the "type" claim.
const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
)

// TokenRecord is the ledger entry of one issued token. The only mutation is
// Revoked going from false to true; rows are removed only by pruning.
type TokenRecord struct {
	ID           string
	JTI          string
	TokenType    string
	UserIdentity string
	Expires      int64
	Revoked      bool
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
