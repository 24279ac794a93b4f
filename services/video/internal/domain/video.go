package domain

import "strings"

// Field limits for video input.
const (
	MaxTitleLength = 500
	MaxURLLength   = 1000
)

// Video is a catalog entry pointing at externally hosted media.
type Video struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
	OwnerID      string `json:"owner_id"`
	CreatedAt    int64  `json:"created_date"`
	ModifiedAt   int64  `json:"modified_date"`
	IsDeleted    bool   `json:"is_deleted"`
	IsActive     bool   `json:"is_active"`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// TitlePattern returns the ILIKE pattern matching titles that contain
// keyword. Wildcards in keyword match literally; an empty keyword matches
// every title.
func TitlePattern(keyword string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(keyword)) + "%"
}

// TitleContains is the in-memory equivalent of TitlePattern.
func (v *Video) TitleContains(keyword string) bool {
	return strings.Contains(strings.ToLower(v.Title), strings.ToLower(strings.TrimSpace(keyword)))
}
