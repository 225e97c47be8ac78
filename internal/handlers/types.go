package handlers

import (
	"time"

	"github.com/serroba/wormhole/internal/shortener"
)

// ShortenRequest is the request body for creating a short link.
type ShortenRequest struct {
	Body struct {
		URL       string     `doc:"The URL to shorten"                          example:"https://example.com/very/long/path" json:"url"                 minLength:"1"`
		Alias     string     `doc:"Custom short code, 3 to 32 of [A-Za-z0-9_-]" example:"launch-2026"                       json:"alias,omitempty"`
		ExpireAt  *time.Time `doc:"Absolute expiry (RFC 3339)"                                                               json:"expireAt,omitempty"`
		ExpiresIn int64      `doc:"Expiry in seconds from now"                  example:"86400"                             json:"expiresIn,omitempty"`
	}
}

// LinkBody describes a stored link.
type LinkBody struct {
	Code        string     `doc:"The short code"                    example:"1112Wq9XBU"                         json:"code"`
	Kind        string     `doc:"generated or custom"               example:"generated"                          json:"kind"`
	ShortURL    string     `doc:"The full short URL"                example:"http://localhost:8888/1112Wq9XBU"   json:"shortUrl"`
	OriginalURL string     `doc:"The original URL"                  example:"https://example.com/very/long/path" json:"originalUrl"`
	ExpireAt    *time.Time `doc:"When the link stops resolving"                                                  json:"expireAt,omitempty"`
	CreatedAt   time.Time  `doc:"When the link was created"                                                      json:"createdAt"`
}

// ShortenResponse is the response for a newly created short link.
type ShortenResponse struct {
	Location string `doc:"The short URL" header:"Location"`
	Body     LinkBody
}

// CodeRequest addresses a link by its short code.
type CodeRequest struct {
	Code string `doc:"The short code" example:"1112Wq9XBU" path:"code"`
}

// RedirectResponse sends the visitor to the original URL.
type RedirectResponse struct {
	Status   int
	Location string `header:"Location"`
}

// LinkResponse is the response for a link lookup.
type LinkResponse struct {
	Body LinkBody
}

func newLinkBody(rec *shortener.Record, baseURL string) LinkBody {
	body := LinkBody{
		Code:        rec.Code.String(),
		Kind:        rec.Code.Kind().String(),
		ShortURL:    rec.Code.URL(baseURL),
		OriginalURL: rec.OriginalURL,
		CreatedAt:   rec.CreatedAt,
	}

	if !rec.ExpireAt.IsZero() {
		expireAt := rec.ExpireAt.UTC()
		body.ExpireAt = &expireAt
	}

	return body
}
