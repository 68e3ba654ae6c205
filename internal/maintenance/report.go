package maintenance

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"
)

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAuditText renders an audit report for a terminal.
func WriteAuditText(w io.Writer, r *AuditReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "QChemAxis database audit (%s)\n\n", r.StartedAt.Format(time.RFC3339))

	fmt.Fprintln(tw, "STATISTICS")
	fmt.Fprintf(tw, "  Total users\t%d\n", r.Stats.TotalUsers)
	fmt.Fprintf(tw, "  Duplicate emails\t%d\n", r.Stats.DuplicateEmails)
	fmt.Fprintf(tw, "  Duplicate usernames\t%d\n", r.Stats.DuplicateUsernames)
	fmt.Fprintf(tw, "  Invalid passwords\t%d\n", r.Stats.InvalidPasswords)
	fmt.Fprintf(tw, "  Missing fields\t%d\n", r.Stats.MissingFields)
	fmt.Fprintf(tw, "  Invalid emails\t%d\n", r.Stats.InvalidEmails)
	fmt.Fprintf(tw, "  Corrupted entries\t%d\n", r.Stats.CorruptedEntries)
	fmt.Fprintf(tw, "  Incomplete profiles\t%d\n", r.Stats.IncompleteProfiles)
	fmt.Fprintf(tw, "  Orphaned quiz results\t%d\n", r.Stats.OrphanedQuizResults)

	if q := r.Quiz; q != nil {
		fmt.Fprintln(tw, "\nQUIZ RESULTS")
		fmt.Fprintf(tw, "  Total results\t%d\n", q.TotalResults)
		fmt.Fprintf(tw, "  Unique users\t%d\n", q.UniqueUsers)
		fmt.Fprintf(tw, "  Score avg/min/max\t%.2f / %d / %d\n", q.AverageScore, q.MinScore, q.MaxScore)
		levels := make([]string, 0, len(q.ByLevel))
		for level := range q.ByLevel {
			levels = append(levels, level)
		}
		sort.Strings(levels)
		for _, level := range levels {
			fmt.Fprintf(tw, "  %s\t%d\n", level, q.ByLevel[level])
		}
	}

	if r.Clean() {
		fmt.Fprintln(tw, "\nNo issues found.")
	} else {
		fmt.Fprintf(tw, "\nISSUES (%d)\n", len(r.Findings))
		for _, sev := range Severities {
			for _, f := range r.Findings {
				if f.Severity != sev {
					continue
				}
				fmt.Fprintf(tw, "  [%s]\t%s\t%s\n", f.Severity, f.Category, f.Message)
				for _, p := range f.Problems {
					fmt.Fprintf(tw, "\t\t- %s\n", p)
				}
			}
		}
	}

	if len(r.Users) > 0 {
		fmt.Fprintln(tw, "\nUSERS")
		fmt.Fprintln(tw, "  ID\tUSERNAME\tEMAIL\tLEVEL\tONBOARDED\tHASH")
		for _, u := range r.Users {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%t\t%s\n", u.ID, u.Username, u.Email, u.Level, u.Onboarded, u.HashStatus)
		}
	}

	return tw.Flush()
}

// WriteCleanupText renders a cleanup change-set for a terminal.
func WriteCleanupText(w io.Writer, r *CleanupReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	mode := "LIVE"
	if r.DryRun {
		mode = "DRY RUN"
	}
	fmt.Fprintf(tw, "QChemAxis database cleanup [%s] (%s)\n\n", mode, r.StartedAt.Format(time.RFC3339))

	if len(r.Changes) == 0 {
		fmt.Fprintln(tw, "Nothing to clean up.")
	}

	byType := r.ByType()
	for _, typ := range ChangeTypes {
		changes := byType[typ]
		if len(changes) == 0 {
			continue
		}
		fmt.Fprintf(tw, "%s (%d)\n", typ, len(changes))
		for _, c := range changes {
			fmt.Fprintf(tw, "  %s\t%s\n", changeStatus(r, c), c.Description)
			if c.TempPassword != "" {
				fmt.Fprintf(tw, "  \ttemporary password: %s\n", c.TempPassword)
			}
			if c.Error != "" {
				fmt.Fprintf(tw, "  \terror: %s\n", c.Error)
			}
		}
		fmt.Fprintln(tw)
	}

	for _, e := range r.Errors {
		fmt.Fprintf(tw, "ERROR\t%s\n", e)
	}

	if r.DryRun && len(r.Changes) > 0 {
		fmt.Fprintln(tw, "No changes were made. Re-run with --live to apply them.")
	}
	return tw.Flush()
}

func changeStatus(r *CleanupReport, c *Change) string {
	switch {
	case c.FlagOnly:
		return "[flag]"
	case r.DryRun:
		return "[plan]"
	case c.Error != "":
		return "[fail]"
	case c.Applied:
		return "[done]"
	default:
		return "[skip]"
	}
}
