package model

import "time"

// TrackedURL is a shortened URL as seen by the analytics pipeline.
// The shorten and redirect handlers own these rows; analytics reads the
// identifier, the click counter (sort priority) and the original URL.
type TrackedURL struct {
	ShortID     string    `json:"shortId"`
	OriginalURL string    `json:"originalUrl"`
	Title       string    `json:"title"`
	ClickCount  int64     `json:"clickCount"`
	CreatedAt   time.Time `json:"createdAt"`
}
