// Package extract maps normalized document text onto the controlled
// region/industry/topic taxonomy through chunked LLM structured extraction.
package extract

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/metrics"
	"github.com/sourcehr/engine/internal/pipeline"
)

// StructuredGenerator is the slice of the LLM client the extractor needs.
type StructuredGenerator interface {
	StructuredJSON(ctx context.Context, system, user string, out any) error
}

type Extractor struct {
	gen     StructuredGenerator
	size    int
	overlap int
	logger  *zap.Logger
}

func New(gen StructuredGenerator, chunkSize, chunkOverlap int, logger *zap.Logger) *Extractor {
	return &Extractor{
		gen:     gen,
		size:    chunkSize,
		overlap: chunkOverlap,
		logger:  logger.Named("extractor"),
	}
}

const eventSystemPrompt = `You extract labor-and-employment events from document text.
Return a JSON object: {"events": [...]}. Each event has fields:
chunk_text (a verbatim excerpt from the input, never a paraphrase),
region, location, primary_industry, secondary_industry, topic
(canonical slugs drawn ONLY from the vocabularies below; use "" when none applies),
discussed_at and published_at (ISO-8601 timestamps, "" when unknown).
Emit zero events when the text contains none.

Valid region slugs: %s
Valid industry slugs: %s
Valid topic slugs: %s`

type eventEnvelope struct {
	Events []pipeline.ExtractedEvent `json:"events"`
}

// Extract chunks text and runs structured extraction per chunk against the
// live taxonomy. A failed chunk is logged and skipped; remaining chunks
// still run. Slugs outside the vocabulary are cleared, not rejected.
func (e *Extractor) Extract(ctx context.Context, text string, tax pipeline.Taxonomy) ([]pipeline.ExtractedEvent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	system := fmt.Sprintf(eventSystemPrompt,
		strings.Join(tax.Regions, ", "),
		strings.Join(tax.Industries, ", "),
		strings.Join(tax.Topics, ", "))

	var events []pipeline.ExtractedEvent
	for i, chunk := range SplitText(text, e.size, e.overlap) {
		var env eventEnvelope
		if err := e.gen.StructuredJSON(ctx, system, chunk, &env); err != nil {
			if metrics.ExtractChunksTotal != nil {
				metrics.ExtractChunksTotal.WithLabelValues("error").Inc()
			}
			extErr := &pipeline.ExtractionError{Chunk: i, Err: err}
			e.logger.Warn("chunk extraction failed, skipping", zap.Int("chunk", i), zap.Error(extErr))
			continue
		}
		if metrics.ExtractChunksTotal != nil {
			metrics.ExtractChunksTotal.WithLabelValues("ok").Inc()
		}
		for _, ev := range env.Events {
			events = append(events, sanitize(ev, tax))
		}
	}
	return events, nil
}

// sanitize clears any slug the vocabulary does not contain so downstream
// filters never see free-text labels.
func sanitize(ev pipeline.ExtractedEvent, tax pipeline.Taxonomy) pipeline.ExtractedEvent {
	if !tax.HasRegion(ev.Region) {
		ev.Region = ""
	}
	if !tax.HasIndustry(ev.PrimaryIndustry) {
		ev.PrimaryIndustry = ""
	}
	if !tax.HasTopic(ev.Topic) {
		ev.Topic = ""
	}
	return ev
}
