// Package waitlist implements waitlist registration, ranking and statistics.
package waitlist

import "time"

// Status is the lifecycle state of a waitlist entry.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInvited  Status = "invited"
	StatusActive   Status = "active"
	StatusDeclined Status = "declined"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusInvited, StatusActive, StatusDeclined}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInvited, StatusActive, StatusDeclined:
		return true
	}
	return false
}

// Source is the acquisition channel an entry came through.
type Source string

const (
	SourceWaitlist    Source = "waitlist"
	SourceBetaSignup  Source = "beta_signup"
	SourceDemoRequest Source = "demo_request"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceWaitlist, SourceBetaSignup, SourceDemoRequest:
		return true
	}
	return false
}

// UTM holds campaign attribution parameters.
type UTM struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
	Term     string `json:"term,omitempty"`
	Content  string `json:"content,omitempty"`
}

// Metadata is client context captured at sign-up. It is stored as-is.
type Metadata struct {
	IPAddress string         `json:"ipAddress,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	Referrer  string         `json:"referrer,omitempty"`
	UTM       *UTM           `json:"utm,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Entry is one registered sign-up.
type Entry struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Source    Source     `json:"source"`
	Status    Status     `json:"status"`
	Position  int64      `json:"position"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	InvitedAt *time.Time `json:"invitedAt"`
	JoinedAt  *time.Time `json:"joinedAt"`
	Metadata  Metadata   `json:"metadata"`
	Notes     string     `json:"notes"`
}

// Redacted returns a copy safe for listing views: client IP, user agent and
// free-form extras are cleared.
func (e *Entry) Redacted() *Entry {
	out := *e
	out.Metadata = Metadata{
		Referrer: e.Metadata.Referrer,
		UTM:      e.Metadata.UTM,
	}
	return &out
}

// RegisterRequest is the input to Service.Register.
type RegisterRequest struct {
	Email    string
	Source   Source
	Metadata Metadata
}

// UpdateRequest is the input to Service.UpdateStatus. Nil fields are left unchanged.
type UpdateRequest struct {
	Status *Status
	Notes  *string
}

// ListQuery is the input to Service.ListEntries.
type ListQuery struct {
	Page   int
	Limit  int
	Status Status
	Search string
}

// Pagination describes the page returned by ListEntries.
type Pagination struct {
	Current int   `json:"current"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`

	// Limit is the effective page size, after the default and the
	// max_page_limit cap are applied to the requested one.
	Limit int `json:"limit"`
}

// ListResult is a page of redacted entries.
type ListResult struct {
	Entries    []*Entry   `json:"entries"`
	Pagination Pagination `json:"pagination"`
}

// TrendPoint is the number of sign-ups on one calendar day.
type TrendPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// Stats is the dashboard aggregate.
type Stats struct {
	Total    int64        `json:"total"`
	Pending  int64        `json:"pending"`
	Invited  int64        `json:"invited"`
	Active   int64        `json:"active"`
	Declined int64        `json:"declined"`
	Today    int64        `json:"today"`
	ThisWeek int64        `json:"thisWeek"`
	Trend    []TrendPoint `json:"trend"`
}
