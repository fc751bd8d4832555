package extract

import (
	"strings"

	"github.com/sourcehr/engine/internal/pipeline"
)

// ApplyEvidenceGuardrail enforces the evidence pairing on model output:
// an event whose description lacks evidence is discarded outright, and an
// effective date without date evidence is nulled while the event survives.
func ApplyEvidenceGuardrail(events []pipeline.CalendarEvent) []pipeline.CalendarEvent {
	var kept []pipeline.CalendarEvent
	for _, ev := range events {
		if strings.TrimSpace(ev.Description) == "" || strings.TrimSpace(ev.DescriptionEvidence) == "" {
			continue
		}
		if ev.EffectiveDate != nil && strings.TrimSpace(ev.DateEvidence) == "" {
			ev.EffectiveDate = nil
		}
		kept = append(kept, ev)
	}
	return kept
}
