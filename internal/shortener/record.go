package shortener

import "time"

// Record is a stored short URL.
type Record struct {
	Code        Code
	OriginalURL string
	ExpireAt    time.Time // zero means the record never expires
	CreatedAt   time.Time
}

// Expired reports whether the record is past its expiry at now.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpireAt.IsZero() && !now.Before(r.ExpireAt)
}

// Clone returns a copy that shares nothing mutable with r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	c := *r

	return &c
}
