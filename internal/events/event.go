// Package events defines the link lifecycle events exchanged between nodes.
package events

import "time"

const (
	TopicLinkCreated  = "link.created"
	TopicLinkResolved = "link.resolved"
	TopicLinkDeleted  = "link.deleted"
)

// LinkCreated is emitted after a new short link is stored.
type LinkCreated struct {
	Code        string     `json:"code"`
	Kind        string     `json:"kind"`
	OriginalURL string     `json:"originalUrl"`
	ExpireAt    *time.Time `json:"expireAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	NodeID      uint8      `json:"nodeId"`
	ClientIP    string     `json:"clientIp,omitempty"`
	UserAgent   string     `json:"userAgent,omitempty"`
}

// LinkResolved is emitted when a short link redirects a visitor.
type LinkResolved struct {
	Code       string    `json:"code"`
	ResolvedAt time.Time `json:"resolvedAt"`
	ClientIP   string    `json:"clientIp,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	Referrer   string    `json:"referrer,omitempty"`
}

// LinkDeleted is emitted after a short link is removed.
type LinkDeleted struct {
	Code      string    `json:"code"`
	DeletedAt time.Time `json:"deletedAt"`
	NodeID    uint8     `json:"nodeId"`
}
