package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmynk/qchemaxis/internal/auth"
	"github.com/mmynk/qchemaxis/internal/metrics"
	"github.com/mmynk/qchemaxis/internal/models"
	"github.com/mmynk/qchemaxis/internal/service"
	"github.com/mmynk/qchemaxis/internal/storage"
)

// ChangeType identifies a kind of repair.
type ChangeType string

const (
	ChangeDuplicateEmail    ChangeType = "DUPLICATE_EMAIL"
	ChangeDuplicateUsername ChangeType = "DUPLICATE_USERNAME"
	ChangeCorruptedPassword ChangeType = "CORRUPTED_PASSWORD"
	ChangeNormalizeFields   ChangeType = "NORMALIZE_FIELDS"
	ChangeOrphanedData      ChangeType = "ORPHANED_DATA"
	ChangeInvalidEmail      ChangeType = "INVALID_EMAIL"
)

// ChangeTypes lists change types in the order they are planned.
var ChangeTypes = []ChangeType{
	ChangeDuplicateEmail,
	ChangeDuplicateUsername,
	ChangeCorruptedPassword,
	ChangeNormalizeFields,
	ChangeOrphanedData,
	ChangeInvalidEmail,
}

// TempPasswordLength is the length of passwords issued to accounts whose
// hash had to be replaced.
const TempPasswordLength = 12

// Change is one planned repair. Applied and Error are set only in live mode.
type Change struct {
	Type        ChangeType `json:"type"`
	UserID      int64      `json:"userId,omitempty"`
	KeptUserID  int64      `json:"keptUserId,omitempty"`
	QuizResult  int64      `json:"quizResultId,omitempty"`
	Description string     `json:"description"`

	// TempPassword is shown to the operator once; only its hash is stored.
	TempPassword string `json:"tempPassword,omitempty"`
	FlagOnly     bool   `json:"flagOnly,omitempty"`

	Applied bool   `json:"applied"`
	Error   string `json:"error,omitempty"`

	newHash       string
	fixLevel      bool
	fixOnboarding bool
}

// CleanupReport is the change-set a cleanup run produced.
type CleanupReport struct {
	DryRun     bool      `json:"dryRun"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Changes    []*Change `json:"changes"`
	Errors     []string  `json:"errors,omitempty"`
}

// ByType groups the changes by type.
func (r *CleanupReport) ByType() map[ChangeType][]*Change {
	out := map[ChangeType][]*Change{}
	for _, c := range r.Changes {
		out[c.Type] = append(out[c.Type], c)
	}
	return out
}

// Failed returns the number of changes that could not be applied.
func (r *CleanupReport) Failed() int {
	n := 0
	for _, c := range r.Changes {
		if c.Error != "" {
			n++
		}
	}
	return n
}

// CleanupOptions controls a cleanup run. The zero value is a dry run.
type CleanupOptions struct {
	Live bool
}

// Cleaner plans and applies repairs to the store.
type Cleaner struct {
	store   storage.MaintenanceStore
	hasher  *auth.PasswordHasher
	metrics *metrics.Domain
	logger  *slog.Logger
	now     func() time.Time
}

// NewCleaner creates a cleaner over store.
func NewCleaner(store storage.MaintenanceStore, hasher *auth.PasswordHasher, m *metrics.Domain, logger *slog.Logger) *Cleaner {
	return &Cleaner{
		store:   store,
		hasher:  hasher,
		metrics: m,
		logger:  logger.With("tool", "cleanup"),
		now:     time.Now,
	}
}

// Run builds the full change-set, then applies it when opts.Live is set.
// Errors are collected in the report rather than returned.
func (c *Cleaner) Run(ctx context.Context, opts CleanupOptions) *CleanupReport {
	report := c.Plan(ctx)
	if opts.Live {
		return c.Apply(ctx, report)
	}

	for _, ch := range report.Changes {
		c.metrics.MaintenanceChange(string(ch.Type), "dry_run")
	}
	c.logger.Info("Cleanup complete",
		"mode", "dry_run",
		"changes", len(report.Changes),
	)
	return report
}

// Plan builds the change-set without touching the store. The returned report
// is a dry run; pass it to Apply to execute exactly these changes.
func (c *Cleaner) Plan(ctx context.Context) *CleanupReport {
	report := &CleanupReport{DryRun: true, StartedAt: c.now(), Changes: []*Change{}}
	c.plan(ctx, report)
	report.FinishedAt = c.now()
	return report
}

// Apply executes the changes of a planned report in order and marks the
// report live. Changes already applied are skipped, so applying a report
// twice is harmless. Temporary passwords shown with the plan stay valid.
func (c *Cleaner) Apply(ctx context.Context, report *CleanupReport) *CleanupReport {
	report.DryRun = false
	for _, ch := range report.Changes {
		if ch.Applied {
			continue
		}
		c.metrics.MaintenanceChange(string(ch.Type), "live")
		c.apply(ctx, ch)
	}
	report.FinishedAt = c.now()

	c.logger.Info("Cleanup complete",
		"mode", "live",
		"changes", len(report.Changes),
		"failed", report.Failed(),
	)
	return report
}

// plan fills report.Changes. Users scheduled for deletion get no further
// repairs, and their quiz results are not counted as orphans.
func (c *Cleaner) plan(ctx context.Context, report *CleanupReport) {
	removed := map[int64]bool{}

	planDuplicates := func(typ ChangeType, field string, find func(context.Context) ([]models.DuplicateGroup, error)) {
		groups, err := find(ctx)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("find duplicate %ss: %v", field, err))
			return
		}
		for _, g := range groups {
			// Members already removed by an earlier pass no longer compete
			// for the value.
			remaining := models.DuplicateGroup{Value: g.Value}
			for _, id := range g.IDs {
				if !removed[id] {
					remaining.IDs = append(remaining.IDs, id)
				}
			}
			if len(remaining.IDs) < 2 {
				continue
			}
			for _, id := range remaining.Extra() {
				removed[id] = true
				report.Changes = append(report.Changes, &Change{
					Type:        typ,
					UserID:      id,
					KeptUserID:  remaining.Keep(),
					Description: fmt.Sprintf("Delete user %d (duplicate %s %q, keeping user %d)", id, field, g.Value, remaining.Keep()),
				})
			}
		}
	}
	planDuplicates(ChangeDuplicateEmail, "email", c.store.FindDuplicateEmails)
	planDuplicates(ChangeDuplicateUsername, "username", c.store.FindDuplicateUsernames)

	records, err := c.store.ListUserRecords(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list users: %v", err))
	}

	for _, rec := range records {
		if removed[rec.ID] {
			continue
		}
		if !auth.IsWellFormedHash(rec.PasswordHash.String) {
			if ch, err := c.planPasswordReset(rec); err != nil {
				report.Errors = append(report.Errors, err.Error())
			} else {
				report.Changes = append(report.Changes, ch)
			}
		}
	}

	for _, rec := range records {
		if removed[rec.ID] {
			continue
		}
		fixLevel := !rec.Level.Valid || !models.Level(rec.Level.String).Valid()
		fixOnboarding := !rec.OnboardingCompleted.Valid
		if !fixLevel && !fixOnboarding {
			continue
		}
		var parts []string
		if fixLevel {
			parts = append(parts, "level → Beginner")
		}
		if fixOnboarding {
			parts = append(parts, "onboarding_completed → 0")
		}
		report.Changes = append(report.Changes, &Change{
			Type:          ChangeNormalizeFields,
			UserID:        rec.ID,
			Description:   fmt.Sprintf("Normalize user %d: %s", rec.ID, strings.Join(parts, ", ")),
			fixLevel:      fixLevel,
			fixOnboarding: fixOnboarding,
		})
	}

	orphans, err := c.store.ListOrphanedQuizResults(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("find orphaned quiz results: %v", err))
	}
	for _, o := range orphans {
		report.Changes = append(report.Changes, &Change{
			Type:        ChangeOrphanedData,
			UserID:      o.UserID,
			QuizResult:  o.ID,
			Description: fmt.Sprintf("Delete quiz result %d of missing user %d", o.ID, o.UserID),
		})
	}

	for _, rec := range records {
		if removed[rec.ID] || !rec.Email.Valid || rec.Email.String == "" {
			continue
		}
		if !service.ValidEmail(rec.Email.String) {
			report.Changes = append(report.Changes, &Change{
				Type:        ChangeInvalidEmail,
				UserID:      rec.ID,
				Description: fmt.Sprintf("User %d has malformed email %q; needs manual review", rec.ID, rec.Email.String),
				FlagOnly:    true,
			})
		}
	}
}

func (c *Cleaner) planPasswordReset(rec models.UserRecord) (*Change, error) {
	temp, err := auth.RandomSecret(TempPasswordLength)
	if err != nil {
		return nil, fmt.Errorf("generate temporary password for user %d: %w", rec.ID, err)
	}
	hash, err := c.hasher.Hash(temp)
	if err != nil {
		return nil, fmt.Errorf("hash temporary password for user %d: %w", rec.ID, err)
	}
	return &Change{
		Type:         ChangeCorruptedPassword,
		UserID:       rec.ID,
		Description:  fmt.Sprintf("Reset corrupted password of user %d (%s)", rec.ID, rec.Email.String),
		TempPassword: temp,
		newHash:      hash,
	}, nil
}

// apply executes one change and records the outcome on it.
func (c *Cleaner) apply(ctx context.Context, ch *Change) {
	if ch.FlagOnly {
		return
	}

	var (
		changed bool
		err     error
	)
	switch ch.Type {
	case ChangeDuplicateEmail, ChangeDuplicateUsername:
		changed, err = c.store.DeleteUser(ctx, ch.UserID)
	case ChangeCorruptedPassword:
		if ch.newHash == "" {
			// A report decoded from JSON carries the password but not its hash.
			err = fmt.Errorf("no replacement hash for user %d; re-plan the cleanup", ch.UserID)
			break
		}
		changed, err = c.store.UpdatePasswordHash(ctx, ch.UserID, ch.newHash)
	case ChangeNormalizeFields:
		changed, err = c.store.NormalizeUser(ctx, ch.UserID, ch.fixLevel, ch.fixOnboarding)
	case ChangeOrphanedData:
		changed, err = c.store.DeleteQuizResult(ctx, ch.QuizResult)
	default:
		err = fmt.Errorf("unknown change type %s", ch.Type)
	}

	ch.Error = ""
	if err != nil {
		ch.Error = err.Error()
		c.logger.Error("Cleanup change failed", "type", ch.Type, "user_id", ch.UserID, "error", err)
		return
	}
	ch.Applied = changed
}
