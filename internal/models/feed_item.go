package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// StatusOK is the envelope status the conversion endpoint reports on success.
const StatusOK = "ok"

// FeedItem is one renderable entry of a retrieved feed.
type FeedItem struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Author      string     `json:"author,omitempty"`
	PublishDate *time.Time `json:"publish_date,omitempty"`
	Description string     `json:"description"` // sanitized HTML
	ImageURL    string     `json:"image_url,omitempty"`
}

// Envelope is the JSON document returned by the feed conversion endpoint
type Envelope struct {
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	Feed    FeedMeta  `json:"feed"`
	Items   []RawItem `json:"items"`
}

// FeedMeta describes the converted feed itself.
type FeedMeta struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// RawItem is an item record as the conversion endpoint emits it.
type RawItem struct {
	Title       string    `json:"title"`
	PubDate     string    `json:"pubDate"`
	Link        string    `json:"link"`
	GUID        string    `json:"guid"`
	Author      string    `json:"author"`
	Thumbnail   string    `json:"thumbnail"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Enclosure   Enclosure `json:"enclosure"`
	Categories  []string  `json:"categories"`
}

// Enclosure is the media attached to an item.
type Enclosure struct {
	Link string `json:"link"`
	Type string `json:"type"`
}

// UnmarshalJSON accepts the empty array and null forms the endpoint uses
// for items without an enclosure.
func (e *Enclosure) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		*e = Enclosure{}
		return nil
	}

	type plain Enclosure
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*e = Enclosure(p)
	return nil
}
