package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/pipeline"
)

// TaxonomyStoreImpl serves the controlled vocabularies and grows the
// industry/topic sets from slugs observed in extracted events. Regions are
// fixed reference data and never grow automatically.
type TaxonomyStoreImpl struct {
	db     DB
	logger *zap.Logger
}

func NewTaxonomyStore(db DB, logger *zap.Logger) *TaxonomyStoreImpl {
	return &TaxonomyStoreImpl{db: db, logger: logger.Named("taxonomy")}
}

func (s *TaxonomyStoreImpl) Load(ctx context.Context) (pipeline.Taxonomy, error) {
	var tax pipeline.Taxonomy
	var err error
	if tax.Regions, err = s.slugs(ctx, "taxonomy_regions"); err != nil {
		return tax, err
	}
	if tax.Industries, err = s.slugs(ctx, "taxonomy_industries"); err != nil {
		return tax, err
	}
	if tax.Topics, err = s.slugs(ctx, "taxonomy_topics"); err != nil {
		return tax, err
	}
	return tax, nil
}

func (s *TaxonomyStoreImpl) slugs(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT slug FROM `+table+` ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		out = append(out, slug)
	}
	return out, rows.Err()
}

// Observe inserts newly seen industry and topic slugs. Known slugs are
// no-ops via ON CONFLICT.
func (s *TaxonomyStoreImpl) Observe(ctx context.Context, industries, topics []string) error {
	for _, slug := range industries {
		if slug == "" {
			continue
		}
		if _, err := s.db.Exec(ctx,
			`INSERT INTO taxonomy_industries (slug) VALUES ($1) ON CONFLICT DO NOTHING`, slug); err != nil {
			return fmt.Errorf("observe industry %s: %w", slug, err)
		}
	}
	for _, slug := range topics {
		if slug == "" {
			continue
		}
		if _, err := s.db.Exec(ctx,
			`INSERT INTO taxonomy_topics (slug) VALUES ($1) ON CONFLICT DO NOTHING`, slug); err != nil {
			return fmt.Errorf("observe topic %s: %w", slug, err)
		}
	}
	return nil
}
