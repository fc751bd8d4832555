package extract

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/pipeline"
)

// CalendarExtractor is the evidence-guardrailed variant for calendar and
// legal-change events. It works from one already-fetched source document and
// is forbidden from inferring facts the text does not state verbatim; a
// programmatic guardrail pass then enforces the evidence pairing, so the
// output never depends on the model's own restraint.
type CalendarExtractor struct {
	gen    StructuredGenerator
	size   int
	logger *zap.Logger
}

func NewCalendar(gen StructuredGenerator, chunkSize int, logger *zap.Logger) *CalendarExtractor {
	return &CalendarExtractor{gen: gen, size: chunkSize, logger: logger.Named("calendar")}
}

const calendarSystemPrompt = `You extract legal and compliance calendar events from ONE source document.
Use only facts stated verbatim in the document. Never infer, estimate or combine.
Return a JSON object: {"events": [...]}. Each event has fields:
title,
description with description_evidence (an exact quote from the document supporting it),
effective_date (ISO-8601 date or null) with date_evidence (an exact quote containing the date),
region and topic slugs, and source_url.
Omit any evidence field you cannot quote exactly. Emit zero events when none are present.`

type calendarEnvelope struct {
	Events []pipeline.CalendarEvent `json:"events"`
}

// ExtractCalendar runs per-chunk extraction over the document and applies
// the evidence guardrail to everything the model emitted.
func (c *CalendarExtractor) ExtractCalendar(ctx context.Context, sourceURL, text string) ([]pipeline.CalendarEvent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	var raw []pipeline.CalendarEvent
	for i, chunk := range SplitText(text, c.size, 0) {
		user := fmt.Sprintf("Source URL: %s\n\nDocument:\n%s", sourceURL, chunk)
		var env calendarEnvelope
		if err := c.gen.StructuredJSON(ctx, calendarSystemPrompt, user, &env); err != nil {
			extErr := &pipeline.ExtractionError{Chunk: i, Err: err}
			c.logger.Warn("calendar chunk extraction failed, skipping",
				zap.Int("chunk", i),
				zap.String("source", sourceURL),
				zap.Error(extErr))
			continue
		}
		raw = append(raw, env.Events...)
	}

	kept := ApplyEvidenceGuardrail(raw)
	for i := range kept {
		if kept[i].SourceURL == "" {
			kept[i].SourceURL = sourceURL
		}
	}
	c.logger.Debug("calendar extraction done",
		zap.String("source", sourceURL),
		zap.Int("emitted", len(raw)),
		zap.Int("kept", len(kept)))
	return kept, nil
}
