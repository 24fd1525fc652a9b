package application

import (
	"encoding/json"
	"fmt"
	"math"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/example/speednet/internal/domain"
	"github.com/example/speednet/internal/scheduler"
)

const (
	maxSlugLength        = 80
	maxTitleLength       = 200
	defaultWaitlistLimit = 30
	minJoinLimit         = 2
	slugFallbackPrefix   = "session"
)

// Slugify folds s to a URL-safe slug: accents are stripped, letters are
// lower-cased, runs of other characters become one hyphen and the result is
// capped at 80 characters.
func Slugify(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	slug := b.String()
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// sessionDraft applies input on top of base. base is a zero Session with
// defaults on create and the stored session on update.
type sessionDraft struct {
	input    SessionInput
	creating bool
	// slugSuffix produces the random part of fallback slugs.
	slugSuffix func() string
}

func (d sessionDraft) apply(base domain.Session) (domain.Session, *ValidationError) {
	in := d.input
	out := base.Clone()
	vErr := &ValidationError{}

	if in.Title != nil || d.creating {
		title := strings.TrimSpace(deref(in.Title))
		switch {
		case title == "":
			vErr.add("title", "title is required")
		case utf8.RuneCountInString(title) > maxTitleLength:
			vErr.add("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
		default:
			out.Title = title
		}
	}

	if in.Status != nil {
		status := domain.SessionStatus(strings.TrimSpace(*in.Status))
		if !status.Valid() {
			vErr.add("status", "status must be one of draft, scheduled, in_progress, completed, cancelled")
		} else {
			out.Status = status
		}
	}
	if in.Visibility != nil {
		visibility := domain.Visibility(strings.TrimSpace(*in.Visibility))
		if !visibility.Valid() {
			vErr.add("visibility", "visibility must be public or workspace")
		} else {
			out.Visibility = visibility
		}
	}
	if in.AccessType != nil {
		access := domain.AccessType(strings.TrimSpace(*in.AccessType))
		if !access.Valid() {
			vErr.add("accessType", "accessType must be free or paid")
		} else {
			out.AccessType = access
		}
	}

	if in.StartTime != nil {
		out.StartTime = utcPtr(in.StartTime)
	}
	if in.EndTime != nil {
		out.EndTime = utcPtr(in.EndTime)
	}
	if out.StartTime != nil && out.EndTime != nil && out.EndTime.Before(*out.StartTime) {
		vErr.add("endTime", "endTime must not be before startTime")
	}

	if in.RegistrationOpensAt != nil {
		out.RegistrationOpensAt = utcPtr(in.RegistrationOpensAt)
	}
	if in.RegistrationClosesAt != nil {
		out.RegistrationClosesAt = utcPtr(in.RegistrationClosesAt)
	}
	if out.RegistrationOpensAt != nil && out.RegistrationClosesAt != nil &&
		out.RegistrationClosesAt.Before(*out.RegistrationOpensAt) {
		vErr.add("registrationClosesAt", "registrationClosesAt must not be before registrationOpensAt")
	}

	switch {
	case in.RotationDurationSeconds != nil:
		if math.IsInf(*in.RotationDurationSeconds, 0) || math.IsNaN(*in.RotationDurationSeconds) {
			vErr.add("rotationDurationSeconds", "rotationDurationSeconds must be a number")
		} else {
			out.RotationDurationSeconds = scheduler.ClampDuration(*in.RotationDurationSeconds)
		}
	case d.creating || out.RotationDurationSeconds == 0:
		out.RotationDurationSeconds = scheduler.DefaultRotationSeconds
	}

	switch {
	case in.SessionLengthMinutes != nil && *in.SessionLengthMinutes > scheduler.MaxSessionMinutes:
		vErr.add("sessionLengthMinutes", fmt.Sprintf("sessionLengthMinutes must be at most %d", scheduler.MaxSessionMinutes))
	case in.SessionLengthMinutes != nil && *in.SessionLengthMinutes > 0:
		out.SessionLengthMinutes = *in.SessionLengthMinutes
	case d.creating || in.SessionLengthMinutes != nil:
		out.SessionLengthMinutes = minutesBetween(out.StartTime, out.EndTime)
	case in.StartTime != nil || in.EndTime != nil:
		if minutes := minutesBetween(out.StartTime, out.EndTime); minutes > 0 {
			out.SessionLengthMinutes = minutes
		}
	}
	if out.SessionLengthMinutes > scheduler.MaxSessionMinutes {
		vErr.add("endTime", fmt.Sprintf("endTime must be at most %d minutes after startTime", scheduler.MaxSessionMinutes))
		out.SessionLengthMinutes = base.SessionLengthMinutes
	}
	if out.SessionLengthMinutes <= 0 {
		out.SessionLengthMinutes = scheduler.DefaultSessionMinutes
	}

	if in.Slug != nil || d.creating {
		source := out.Title
		if in.Slug != nil {
			source = *in.Slug
		}
		slug := Slugify(source)
		if slug == "" {
			slug = slugFallbackPrefix + "-" + d.suffix()
		}
		out.Slug = slug
	}

	if in.JoinLimit != nil {
		out.JoinLimit = normalizeJoinLimit(*in.JoinLimit)
	}
	if in.WaitlistLimit != nil {
		if *in.WaitlistLimit < 0 {
			vErr.add("waitlistLimit", "waitlistLimit must not be negative")
		} else {
			out.WaitlistLimit = *in.WaitlistLimit
		}
	} else if d.creating {
		out.WaitlistLimit = defaultWaitlistLimit
	}

	if in.RequiresApproval != nil {
		out.RequiresApproval = *in.RequiresApproval
	}

	if d.creating {
		out.PenaltyRules = domain.DefaultPenaltyRules()
	}
	if in.PenaltyRules != nil {
		applyPenaltyRules(&out.PenaltyRules, *in.PenaltyRules, vErr)
	}

	if in.VideoConfig != nil {
		if !json.Valid(in.VideoConfig) {
			vErr.add("videoConfig", "videoConfig must be valid JSON")
		} else {
			out.VideoConfig = domain.CloneRaw(in.VideoConfig)
		}
	}
	if in.ShowcaseConfig != nil {
		if !json.Valid(in.ShowcaseConfig) {
			vErr.add("showcaseConfig", "showcaseConfig must be valid JSON")
		} else {
			out.ShowcaseConfig = domain.CloneRaw(in.ShowcaseConfig)
		}
	}

	resolvePrice(&out, in, vErr)

	vErr.merge("", validateRotationInputs(in.Rotations))

	return out, vErr
}

func (d sessionDraft) suffix() string {
	if d.slugSuffix == nil {
		return "00000000"
	}
	return d.slugSuffix()
}

// minutesBetween returns the whole minutes from start to end, or zero when
// either bound is unknown.
func minutesBetween(start, end *time.Time) int {
	if start == nil || end == nil {
		return 0
	}
	minutes := int(end.Sub(*start) / time.Minute)
	if minutes < 0 {
		return 0
	}
	return minutes
}

// normalizeJoinLimit treats non-positive limits as unlimited and raises
// positive ones to the minimum of two seats.
func normalizeJoinLimit(limit int) *int {
	if limit <= 0 {
		return nil
	}
	if limit < minJoinLimit {
		limit = minJoinLimit
	}
	return &limit
}

func applyPenaltyRules(rules *domain.PenaltyRules, in PenaltyRulesInput, vErr *ValidationError) {
	set := func(field string, value *int, target *int) {
		if value == nil {
			return
		}
		if *value < 1 {
			vErr.add("penaltyRules."+field, field+" must be at least 1")
			return
		}
		*target = *value
	}
	set("noShowThreshold", in.NoShowThreshold, &rules.NoShowThreshold)
	set("cooldownDays", in.CooldownDays, &rules.CooldownDays)
	set("penaltyWeight", in.PenaltyWeight, &rules.PenaltyWeight)
}

// resolvePrice keeps paid sessions priced in minor units and strips the
// price from free sessions.
func resolvePrice(out *domain.Session, in SessionInput, vErr *ValidationError) {
	if out.AccessType != domain.AccessTypePaid {
		out.PriceCents = nil
		return
	}

	var (
		cents    float64
		supplied bool
	)
	switch {
	case in.PriceCents != nil:
		cents, supplied = math.Round(*in.PriceCents), true
	case in.Price != nil:
		cents, supplied = math.Round(*in.Price*100), true
	}
	if supplied {
		if math.IsNaN(cents) || math.IsInf(cents, 0) || cents <= 0 || cents > math.MaxInt64/2 {
			vErr.add("priceCents", "paid sessions require a positive price")
			return
		}
		v := int64(cents)
		out.PriceCents = &v
		return
	}
	if out.PriceCents == nil || *out.PriceCents <= 0 {
		vErr.add("priceCents", "paid sessions require a positive price")
	}
}

func validateRotationInputs(inputs []RotationInput) *ValidationError {
	vErr := &ValidationError{}
	if len(inputs) > scheduler.MaxRotations {
		vErr.add("rotations", fmt.Sprintf("rotations must have at most %d entries", scheduler.MaxRotations))
		return vErr
	}
	for i, rotation := range inputs {
		vErr.merge(fmt.Sprintf("rotations[%d].", i), validateRotationInput(rotation))
	}
	return vErr
}

func validateRotationInput(in RotationInput) *ValidationError {
	vErr := &ValidationError{}
	if in.RotationNumber != nil && *in.RotationNumber > scheduler.MaxRotations {
		vErr.add("rotationNumber", fmt.Sprintf("rotationNumber must be at most %d", scheduler.MaxRotations))
	}
	if in.Status != nil && !domain.RotationStatus(*in.Status).Valid() {
		vErr.add("status", "status must be one of scheduled, in_progress, completed, cancelled")
	}
	if in.DurationSeconds != nil && (math.IsNaN(*in.DurationSeconds) || math.IsInf(*in.DurationSeconds, 0)) {
		vErr.add("durationSeconds", "durationSeconds must be a number")
	}
	if in.StartsAt != nil && in.EndsAt != nil && in.EndsAt.Before(*in.StartsAt) {
		vErr.add("endsAt", "endsAt must not be before startsAt")
	}
	if in.SeatingPlan != nil && !json.Valid(in.SeatingPlan) {
		vErr.add("seatingPlan", "seatingPlan must be valid JSON")
	}
	return vErr
}

func toOverrides(inputs []RotationInput) []scheduler.Override {
	if len(inputs) == 0 {
		return nil
	}
	overrides := make([]scheduler.Override, len(inputs))
	for i, in := range inputs {
		overrides[i] = scheduler.Override{
			Number:          in.RotationNumber,
			DurationSeconds: in.DurationSeconds,
			StartsAt:        utcPtr(in.StartsAt),
			EndsAt:          utcPtr(in.EndsAt),
			Status:          domain.RotationStatus(deref(in.Status)),
			SeatingPlan:     domain.CloneRaw(in.SeatingPlan),
			PairingSeed:     strings.TrimSpace(deref(in.PairingSeed)),
			HostNotes:       strings.TrimSpace(deref(in.HostNotes)),
		}
	}
	return overrides
}

// normalizeEmail lower-cases and validates an address.
func normalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", false
	}
	return email, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func optionalString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
