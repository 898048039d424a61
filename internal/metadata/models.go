package metadata

import "time"

// Event is one timeline entry. Placeholder rows are created before any
// media exists so the event id can namespace storage keys; VideoURL stays
// empty until ingestion commits.
type Event struct {
	ID              int64
	Slug            string
	Title           string
	Body            string
	VideoURL        string
	OriginalClipURL string
	ThumbnailURL    string
	CreatedAt       time.Time
}

// VideoVariant is one stored rendition of an event's video.
type VideoVariant struct {
	ID           int64
	EventID      int64
	QualityLabel string
	MIME         string
	FileSize     int64
	DurationS    float64
	StorageKey   string
	PublicURL    string
	CreatedAt    time.Time
}

// Draft carries the admin-entered fields a placeholder event is created
// with. EventDate is normalized to midnight and becomes the event's
// timeline position.
type Draft struct {
	Slug      string
	Title     string
	Body      string
	EventDate time.Time
}

// MediaUpdate is the single post-ingestion write that flips an event from
// placeholder to published.
type MediaUpdate struct {
	VideoURL        string
	ThumbnailURL    string
	OriginalClipURL string
}
