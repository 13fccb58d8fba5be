package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/BearBump/AppWatch/internal/models"
	"github.com/BearBump/AppWatch/internal/services/lifecycle"
	"github.com/pkg/errors"
)

type Repository interface {
	ListAnnouncements(ctx context.Context, monthKey string) ([]*models.Announcement, error)
	ListTracked(ctx context.Context, status string) ([]*models.TrackedApp, error)
}

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type Settings struct {
	Owner           string
	SubmitterPayout float64
	OwnerPayout     float64
	Currency        string
	Location        *time.Location
}

type Builder struct {
	repo     Repository
	notifier Notifier

	owner           string
	submitterPayout float64
	ownerPayout     float64
	currency        string
	loc             *time.Location
}

func New(repo Repository, n Notifier) *Builder {
	return &Builder{
		repo:            repo,
		notifier:        n,
		submitterPayout: 10,
		ownerPayout:     5,
		currency:        "USD",
		loc:             time.UTC,
	}
}

func (b *Builder) WithSettings(s Settings) *Builder {
	if s.Owner != "" {
		b.owner = s.Owner
	}
	if s.SubmitterPayout > 0 {
		b.submitterPayout = s.SubmitterPayout
	}
	if s.OwnerPayout > 0 {
		b.ownerPayout = s.OwnerPayout
	}
	if s.Currency != "" {
		b.currency = s.Currency
	}
	if s.Location != nil {
		b.loc = s.Location
	}
	return b
}

// MonthKey is the report month containing t in the configured location.
func (b *Builder) MonthKey(t time.Time) string {
	return models.MonthKey(t.In(b.loc))
}

// BuildMonthlyReport renders the digest for monthKey ("2006-01").
func (b *Builder) BuildMonthlyReport(ctx context.Context, monthKey string) (string, error) {
	month, err := time.ParseInLocation(models.MonthKeyLayout, monthKey, b.loc)
	if err != nil {
		return "", errors.Wrap(err, "parse month")
	}
	label := month.Format("January 2006")

	anns, err := b.repo.ListAnnouncements(ctx, monthKey)
	if err != nil {
		return "", errors.Wrap(err, "list announcements")
	}
	if len(anns) == 0 {
		return fmt.Sprintf("📭 No launches in %s.", label), nil
	}
	sort.SliceStable(anns, func(i, j int) bool { return anns[i].AnnouncedAt.Before(anns[j].AnnouncedAt) })

	tracked, err := b.repo.ListTracked(ctx, "")
	if err != nil {
		return "", errors.Wrap(err, "list tracked apps")
	}
	var terminated, confirmed []*models.TrackedApp
	stillLive := 0
	for _, t := range tracked {
		if b.MonthKey(t.FirstLiveAt) != monthKey {
			continue
		}
		switch t.Status {
		case models.AppStatusTerminated:
			terminated = append(terminated, t)
		case models.AppStatusConfirmed:
			confirmed = append(confirmed, t)
		default:
			stillLive++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 *Monthly report: %s*\n\n", label)

	sb.WriteString("*Overview*\n")
	fmt.Fprintf(&sb, "• Launches: %d\n", len(anns))
	fmt.Fprintf(&sb, "• Still live: %d\n", stillLive)
	fmt.Fprintf(&sb, "• Confirmed: %d\n", len(confirmed))
	fmt.Fprintf(&sb, "• Terminated: %d\n\n", len(terminated))

	sb.WriteString("*Payouts*\n")
	total := 0.0
	for _, p := range payouts(anns) {
		amount := float64(p.count) * b.submitterPayout
		total += amount
		fmt.Fprintf(&sb, "• %s: %d × %s = %s\n", displaySubmitter(p.submitter), p.count, b.money(b.submitterPayout), b.money(amount))
	}
	if b.owner != "" {
		amount := float64(len(anns)) * b.ownerPayout
		total += amount
		fmt.Fprintf(&sb, "• %s (owner): %d × %s = %s\n", models.SubmitterMention(b.owner), len(anns), b.money(b.ownerPayout), b.money(amount))
	}
	fmt.Fprintf(&sb, "• Total: %s\n\n", b.money(total))

	sb.WriteString("*Games*\n")
	for i, a := range anns {
		fmt.Fprintf(&sb, "%d. %s by %s, %s\n", i+1, gameLink(a.DisplayName, a.StoreLink),
			displaySubmitter(a.Submitter), a.AnnouncedAt.In(b.loc).Format("Jan 2"))
	}

	if len(terminated) > 0 {
		sb.WriteString("\n*Terminated*\n")
		for _, t := range terminated {
			line := "• " + gameLink(t.DisplayName, t.StoreLink)
			if t.TerminationAt != nil {
				line += " after " + lifecycle.DaysText(lifecycle.DaysSince(t.FirstLiveAt, *t.TerminationAt))
			}
			sb.WriteString(line + "\n")
		}
	}
	if len(confirmed) > 0 {
		sb.WriteString("\n*Confirmed*\n")
		for _, t := range confirmed {
			sb.WriteString("• " + gameLink(t.DisplayName, t.StoreLink) + "\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n"), nil
}

// PostIfMonthEnd posts the current month's report on the last calendar day only.
func (b *Builder) PostIfMonthEnd(ctx context.Context, now time.Time) (bool, error) {
	local := now.In(b.loc)
	if !IsLastDayOfMonth(local) {
		slog.Debug("not the last day of the month, skipping report", "date", local.Format(time.DateOnly))
		return false, nil
	}
	return true, b.Post(ctx, models.MonthKey(local))
}

func (b *Builder) Post(ctx context.Context, monthKey string) error {
	text, err := b.BuildMonthlyReport(ctx, monthKey)
	if err != nil {
		return err
	}
	if b.notifier == nil {
		return errors.New("no notifier configured")
	}
	if err := b.notifier.Notify(ctx, models.Notification{Channel: models.ChannelReport, Text: text}); err != nil {
		return errors.Wrap(err, "post report")
	}
	slog.Info("monthly report posted", "month", monthKey)
	return nil
}

func IsLastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Day() == 1
}

type submitterCount struct {
	submitter string
	count     int
}

func payouts(anns []*models.Announcement) []submitterCount {
	counts := map[string]int{}
	for _, a := range anns {
		counts[a.Submitter]++
	}
	out := make([]submitterCount, 0, len(counts))
	for s, n := range counts {
		out = append(out, submitterCount{submitter: s, count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].submitter < out[j].submitter
	})
	return out
}

func (b *Builder) money(v float64) string {
	return fmt.Sprintf("%.2f %s", v, b.currency)
}

func displaySubmitter(s string) string {
	if s == "" {
		return "unattributed"
	}
	return models.SubmitterMention(s)
}

func gameLink(name, link string) string {
	if link == "" {
		return "*" + name + "*"
	}
	return "<" + link + "|" + name + ">"
}
