// Package maintenance implements the out-of-band audit and cleanup tools
// that inspect and repair the credential store.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmynk/qchemaxis/internal/auth"
	"github.com/mmynk/qchemaxis/internal/models"
	"github.com/mmynk/qchemaxis/internal/service"
	"github.com/mmynk/qchemaxis/internal/storage"
)

// Severity ranks audit findings.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityWarning  Severity = "WARNING"
)

// Severities lists every severity, most severe first.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityWarning}

// Finding categories.
const (
	CategoryConnection        = "CONNECTION"
	CategorySchema            = "SCHEMA"
	CategoryQuery             = "QUERY"
	CategoryUserValidation    = "USER_VALIDATION"
	CategoryDuplicateEmail    = "DUPLICATE_EMAIL"
	CategoryDuplicateUsername = "DUPLICATE_USERNAME"
	CategoryOrphanedData      = "ORPHANED_DATA"
)

// Finding is one problem the audit detected.
type Finding struct {
	Severity Severity `json:"severity"`
	Category string   `json:"category"`
	Message  string   `json:"message"`
	UserIDs  []int64  `json:"userIds,omitempty"`
	Problems []string `json:"problems,omitempty"`
}

// AuditStats counts what the audit saw.
type AuditStats struct {
	TotalUsers          int `json:"totalUsers"`
	DuplicateEmails     int `json:"duplicateEmails"`
	DuplicateUsernames  int `json:"duplicateUsernames"`
	InvalidPasswords    int `json:"invalidPasswords"`
	MissingFields       int `json:"missingFields"`
	InvalidEmails       int `json:"invalidEmails"`
	CorruptedEntries    int `json:"corruptedEntries"`
	IncompleteProfiles  int `json:"incompleteProfiles"`
	OrphanedQuizResults int `json:"orphanedQuizResults"`
}

// UserListing is one row of the optional user listing.
type UserListing struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Level      string `json:"level"`
	Onboarded  bool   `json:"onboarded"`
	HashStatus string `json:"hashStatus"`
}

// AuditReport is the read-only result of an audit run.
type AuditReport struct {
	StartedAt  time.Time           `json:"startedAt"`
	FinishedAt time.Time           `json:"finishedAt"`
	Stats      AuditStats          `json:"stats"`
	Findings   []Finding           `json:"findings"`
	Quiz       *models.QuizSummary `json:"quiz,omitempty"`
	Users      []UserListing       `json:"users,omitempty"`
}

// Count returns how many findings have the given severity.
func (r *AuditReport) Count(sev Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == sev {
			n++
		}
	}
	return n
}

// Clean reports whether the audit found nothing.
func (r *AuditReport) Clean() bool {
	return len(r.Findings) == 0
}

// AuditOptions selects optional report sections.
type AuditOptions struct {
	ListUsers bool
}

// Auditor inspects the store without modifying it.
type Auditor struct {
	store  storage.MaintenanceStore
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditor creates an auditor over store.
func NewAuditor(store storage.MaintenanceStore, logger *slog.Logger) *Auditor {
	return &Auditor{store: store, logger: logger.With("tool", "audit"), now: time.Now}
}

// Run performs every check. Failures are recorded as CRITICAL findings
// rather than returned, so a report is always produced.
func (a *Auditor) Run(ctx context.Context, opts AuditOptions) *AuditReport {
	report := &AuditReport{StartedAt: a.now(), Findings: []Finding{}}
	defer func() { report.FinishedAt = a.now() }()

	ok, err := a.store.TableExists(ctx, "users")
	if err != nil {
		report.critical(CategoryConnection, "Cannot query database", err)
		return report
	}
	if !ok {
		report.Findings = append(report.Findings, Finding{
			Severity: SeverityCritical,
			Category: CategorySchema,
			Message:  "users table does not exist",
		})
		return report
	}

	records, err := a.store.ListUserRecords(ctx)
	if err != nil {
		report.critical(CategoryQuery, "Failed to read users", err)
	} else {
		report.Stats.TotalUsers = len(records)
		for _, rec := range records {
			a.validateUser(report, rec)
		}
		if opts.ListUsers {
			report.Users = listUsers(records)
		}
	}

	a.checkDuplicates(ctx, report)
	a.checkOrphans(ctx, report)

	if ok, err := a.store.TableExists(ctx, "quiz_results"); err == nil && ok {
		summary, err := a.store.QuizSummary(ctx)
		if err != nil {
			report.critical(CategoryQuery, "Failed to summarize quiz results", err)
		} else {
			report.Quiz = summary
		}
	}

	a.logger.Info("Audit complete",
		"users", report.Stats.TotalUsers,
		"findings", len(report.Findings),
		"critical", report.Count(SeverityCritical),
	)
	return report
}

// validateUser records one WARNING finding listing every problem with rec.
func (a *Auditor) validateUser(report *AuditReport, rec models.UserRecord) {
	var problems []string
	stats := &report.Stats

	if strings.TrimSpace(rec.Username.String) == "" {
		problems = append(problems, "Missing or empty username")
		stats.MissingFields++
	}
	if strings.TrimSpace(rec.Email.String) == "" {
		problems = append(problems, "Missing or empty email")
		stats.MissingFields++
	} else if !service.ValidEmail(rec.Email.String) {
		problems = append(problems, "Invalid email format")
		stats.InvalidEmails++
	}

	hash := rec.PasswordHash.String
	switch {
	case strings.TrimSpace(hash) == "":
		problems = append(problems, "Missing or empty password hash")
		stats.InvalidPasswords++
	case !auth.IsWellFormedHash(hash):
		problems = append(problems, "Invalid password hash format (not bcrypt)")
		stats.InvalidPasswords++
	}

	if rec.Level.Valid && rec.Level.String != "" && !models.Level(rec.Level.String).Valid() {
		problems = append(problems, fmt.Sprintf("Invalid level: %s", rec.Level.String))
		stats.CorruptedEntries++
	}

	if rec.Interests.Valid && rec.Interests.String != "" {
		if _, err := models.DecodeInterests(rec.Interests.String); err != nil {
			problems = append(problems, "Invalid JSON in interests field")
			stats.CorruptedEntries++
		}
	}

	if rec.LearningStyle.String == "" || rec.PreferredMethod.String == "" || rec.OnboardingCompleted.Int64 != 1 {
		stats.IncompleteProfiles++
	}

	if len(problems) > 0 {
		report.Findings = append(report.Findings, Finding{
			Severity: SeverityWarning,
			Category: CategoryUserValidation,
			Message:  fmt.Sprintf("User %d (%s) failed validation", rec.ID, rec.Username.String),
			UserIDs:  []int64{rec.ID},
			Problems: problems,
		})
	}
}

func (a *Auditor) checkDuplicates(ctx context.Context, report *AuditReport) {
	emails, err := a.store.FindDuplicateEmails(ctx)
	if err != nil {
		report.critical(CategoryQuery, "Failed to check duplicate emails", err)
	}
	report.Stats.DuplicateEmails = len(emails)
	for _, g := range emails {
		report.Findings = append(report.Findings, Finding{
			Severity: SeverityHigh,
			Category: CategoryDuplicateEmail,
			Message:  fmt.Sprintf("Email %q is used by %d accounts", g.Value, len(g.IDs)),
			UserIDs:  g.IDs,
		})
	}

	usernames, err := a.store.FindDuplicateUsernames(ctx)
	if err != nil {
		report.critical(CategoryQuery, "Failed to check duplicate usernames", err)
	}
	report.Stats.DuplicateUsernames = len(usernames)
	for _, g := range usernames {
		report.Findings = append(report.Findings, Finding{
			Severity: SeverityHigh,
			Category: CategoryDuplicateUsername,
			Message:  fmt.Sprintf("Username %q is used by %d accounts", g.Value, len(g.IDs)),
			UserIDs:  g.IDs,
		})
	}
}

func (a *Auditor) checkOrphans(ctx context.Context, report *AuditReport) {
	orphans, err := a.store.ListOrphanedQuizResults(ctx)
	if err != nil {
		report.critical(CategoryQuery, "Failed to check orphaned quiz results", err)
		return
	}
	report.Stats.OrphanedQuizResults = len(orphans)
	if len(orphans) == 0 {
		return
	}

	seen := map[int64]bool{}
	var userIDs []int64
	for _, o := range orphans {
		if !seen[o.UserID] {
			seen[o.UserID] = true
			userIDs = append(userIDs, o.UserID)
		}
	}
	report.Findings = append(report.Findings, Finding{
		Severity: SeverityMedium,
		Category: CategoryOrphanedData,
		Message:  fmt.Sprintf("%d quiz result(s) reference missing users", len(orphans)),
		UserIDs:  userIDs,
	})
}

func (r *AuditReport) critical(category, message string, err error) {
	r.Findings = append(r.Findings, Finding{
		Severity: SeverityCritical,
		Category: category,
		Message:  fmt.Sprintf("%s: %v", message, err),
	})
}

func listUsers(records []models.UserRecord) []UserListing {
	out := make([]UserListing, 0, len(records))
	for _, rec := range records {
		status := "OK"
		switch {
		case rec.PasswordHash.String == "":
			status = "MISSING"
		case !auth.IsWellFormedHash(rec.PasswordHash.String):
			status = "INVALID"
		}
		out = append(out, UserListing{
			ID:         rec.ID,
			Username:   rec.Username.String,
			Email:      rec.Email.String,
			Level:      rec.Level.String,
			Onboarded:  rec.OnboardingCompleted.Int64 == 1,
			HashStatus: status,
		})
	}
	return out
}
