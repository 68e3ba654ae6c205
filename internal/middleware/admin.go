package middleware

import "strings"

// AdminPolicy decides which authenticated users may use admin endpoints.
type AdminPolicy struct {
	emails map[string]struct{}
}

// NewAdminPolicy allows the given emails, compared case-insensitively.
// An empty list allows every authenticated user.
func NewAdminPolicy(emails []string) *AdminPolicy {
	p := &AdminPolicy{emails: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			p.emails[e] = struct{}{}
		}
	}
	return p
}

// Open reports whether the policy admits every authenticated user.
func (p *AdminPolicy) Open() bool {
	return len(p.emails) == 0
}

// Allows reports whether email belongs to an admin.
func (p *AdminPolicy) Allows(email string) bool {
	if p.Open() {
		return true
	}
	_, ok := p.emails[strings.ToLower(email)]
	return ok
}
