package feed

import (
	"html"
	"strings"
	"time"

	"github.com/bilgisen/feedviewer/internal/models"
	"github.com/microcosm-cc/bluemonday"
)

// pubDateLayouts are tried in order. The first is what rss2json emits (UTC).
var pubDateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

// Parser maps raw conversion records into FeedItems
type Parser struct {
	policy *bluemonday.Policy
}

func NewParser() *Parser {
	policy := bluemonday.UGCPolicy()
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &Parser{policy: policy}
}

// CleanText unescapes HTML entities and normalizes whitespace of a plain
// text field. Angle brackets are kept; the template escapes them.
func (p *Parser) CleanText(input string) string {
	return strings.Join(strings.Fields(html.UnescapeString(input)), " ")
}

// SanitizeHTML keeps only allow-listed markup of a description.
func (p *Parser) SanitizeHTML(input string) string {
	return strings.TrimSpace(p.policy.Sanitize(input))
}

// NormalizeItem converts one raw record. It never fails: fields that
// cannot be interpreted are left unset.
func (p *Parser) NormalizeItem(raw models.RawItem) models.FeedItem {
	description := raw.Description
	if strings.TrimSpace(description) == "" {
		description = raw.Content
	}

	return models.FeedItem{
		Title:       p.CleanText(raw.Title),
		Link:        strings.TrimSpace(raw.Link),
		Author:      p.CleanText(raw.Author),
		PublishDate: ParsePubDate(raw.PubDate),
		Description: p.SanitizeHTML(description),
		ImageURL:    ResolveImage(raw),
	}
}

// NormalizeItems converts raw records preserving their order.
func (p *Parser) NormalizeItems(raw []models.RawItem) []models.FeedItem {
	items := make([]models.FeedItem, 0, len(raw))
	for _, r := range raw {
		items = append(items, p.NormalizeItem(r))
	}
	return items
}

// ParsePubDate returns nil for empty or unrecognised dates.
func ParsePubDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

// ResolveImage picks the enclosure link, then the thumbnail. A set
// enclosure always wins, whatever its MIME type.
func ResolveImage(raw models.RawItem) string {
	if link := strings.TrimSpace(raw.Enclosure.Link); link != "" {
		return link
	}
	return strings.TrimSpace(raw.Thumbnail)
}
