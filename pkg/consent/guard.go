// Package consent enforces opt-in/opt-out state per (phone number, business)
// pair. The opt-out table is the single authority; per-message snapshot fields
// are a read-only cache written at receipt time.
package consent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/persistence"
)

// ReasonOptedOut is the decision reason returned for blocked contacts.
const ReasonOptedOut = "opted_out"

// Decision is the result of a consent check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Keyword classifies opt-out/opt-in control words in a message body.
type Keyword int

const (
	KeywordNone Keyword = iota
	KeywordOptOut
	KeywordOptIn
)

var optOutKeywords = map[string]struct{}{
	"stop": {}, "stopall": {}, "unsubscribe": {}, "cancel": {}, "end": {}, "quit": {},
}

var optInKeywords = map[string]struct{}{
	"start": {}, "unstop": {}, "yes": {},
}

// DetectKeyword classifies a message body as an opt-out or opt-in request,
// mirroring carrier keyword handling. Only single-word bodies count; "please
// stop calling" is a normal message.
func DetectKeyword(body string) Keyword {
	word := strings.ToLower(strings.TrimSpace(body))

	if _, ok := optOutKeywords[word]; ok {
		return KeywordOptOut
	}

	if _, ok := optInKeywords[word]; ok {
		return KeywordOptIn
	}

	return KeywordNone
}

// Guard is the authoritative consent checker.
type Guard struct {
	optOuts  persistence.OptOutRepository
	consents persistence.ConsentRepository
	logger   *slog.Logger
	now      func() time.Time
}

func NewGuard(optOuts persistence.OptOutRepository, consents persistence.ConsentRepository, logger *slog.Logger) *Guard {
	return &Guard{
		optOuts:  optOuts,
		consents: consents,
		logger:   logger,
		now:      time.Now,
	}
}

// Check returns whether the business may contact the phone number.
func (g *Guard) Check(ctx context.Context, businessID, phoneNumber string) (Decision, error) {
	_, err := g.optOuts.OptOutByContact(ctx, businessID, phoneNumber)
	if err != nil {
		if persistence.IsOptOutNotFound(err) {
			return Decision{Allowed: true}, nil
		}

		return Decision{}, fmt.Errorf("failed to check opt-out state: %w", err)
	}

	return Decision{Allowed: false, Reason: ReasonOptedOut}, nil
}

// RecordOptOut stores a do-not-contact record. Idempotent: a duplicate
// opt-out for the same pair is a no-op.
func (g *Guard) RecordOptOut(ctx context.Context, businessID, phoneNumber, reason string) error {
	err := g.optOuts.RecordOptOut(ctx, &models.OptOut{
		PhoneNumber: phoneNumber,
		BusinessID:  businessID,
		OptedOutAt:  g.now().UTC(),
		Reason:      reason,
	})
	if err != nil {
		return fmt.Errorf("failed to record opt-out: %w", err)
	}

	g.logger.InfoContext(ctx, "Recorded opt-out",
		"business_id", businessID,
		"reason", reason,
	)

	return nil
}

// RecordOptIn removes the opt-out row if present and stores consent history.
func (g *Guard) RecordOptIn(ctx context.Context, businessID, phoneNumber, source string) error {
	err := g.optOuts.RemoveOptOut(ctx, businessID, phoneNumber)
	if err != nil {
		return fmt.Errorf("failed to remove opt-out: %w", err)
	}

	err = g.consents.SaveConsent(ctx, &models.Consent{
		PhoneNumber: phoneNumber,
		BusinessID:  businessID,
		OptedInAt:   g.now().UTC(),
		Source:      source,
	})
	if err != nil {
		return fmt.Errorf("failed to save consent: %w", err)
	}

	g.logger.InfoContext(ctx, "Recorded opt-in", "business_id", businessID)

	return nil
}

// Snapshot stamps the consent decision onto a message so execution always
// operates on consent state that is immutable for that message's lifetime.
func (g *Guard) Snapshot(ctx context.Context, message *models.Message, decision Decision) {
	if decision.Allowed {
		return
	}

	now := g.now().UTC()
	message.IsOptedOut = true
	message.OptedOutAt = &now
}
