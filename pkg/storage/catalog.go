package storage

import (
	"context"

	"kiro-hq/gateway/pkg/models"
)

// FindAllModels implements models.Store.
func (s *SQLite) FindAllModels(ctx context.Context) ([]models.ModelInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, display_name, max_tokens, owned_by, enabled, display_order
		FROM models ORDER BY display_order, id`)
	if err != nil {
		return nil, NewStorageError("sqlite", "find_models", err)
	}
	defer rows.Close()

	var out []models.ModelInfo
	for rows.Next() {
		var m models.ModelInfo
		if err := rows.Scan(&m.ID, &m.DisplayName, &m.MaxTokens, &m.OwnedBy, &m.Enabled, &m.DisplayOrder); err != nil {
			return nil, NewStorageError("sqlite", "scan_model", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "find_models", err)
	}
	return out, nil
}

// FindEnabledMappings implements models.Store.
func (s *SQLite) FindEnabledMappings(ctx context.Context) ([]models.MappingRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, pattern, match_type, target_id, priority, enabled
		FROM model_mappings WHERE enabled = 1 ORDER BY priority DESC, id`)
	if err != nil {
		return nil, NewStorageError("sqlite", "find_mappings", err)
	}
	defer rows.Close()

	var out []models.MappingRule
	for rows.Next() {
		var r models.MappingRule
		var kind string
		if err := rows.Scan(&r.ID, &r.Pattern, &kind, &r.TargetID, &r.Priority, &r.Enabled); err != nil {
			return nil, NewStorageError("sqlite", "scan_mapping", err)
		}
		r.Kind = models.MatchKind(kind)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "find_mappings", err)
	}
	return out, nil
}

// SeedCatalog inserts the catalogue in one transaction when the models
// table is empty.
func (s *SQLite) SeedCatalog(ctx context.Context, all []models.ModelInfo, rules []models.MappingRule) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, NewStorageError("sqlite", "seed_catalog", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM models`).Scan(&n); err != nil {
		return false, NewStorageError("sqlite", "seed_catalog", err)
	}
	if n > 0 {
		return false, nil
	}

	for _, m := range all {
		if _, err := tx.ExecContext(ctx, `INSERT INTO models (id, display_name, max_tokens, owned_by, enabled, display_order)
			VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, m.DisplayName, m.MaxTokens, m.OwnedBy, boolInt(m.Enabled), m.DisplayOrder); err != nil {
			return false, NewStorageError("sqlite", "seed_model", err)
		}
	}
	for _, r := range rules {
		if _, err := tx.ExecContext(ctx, `INSERT INTO model_mappings (pattern, match_type, target_id, priority, enabled)
			VALUES (?, ?, ?, ?, ?)`,
			r.Pattern, string(r.Kind), r.TargetID, r.Priority, boolInt(r.Enabled)); err != nil {
			return false, NewStorageError("sqlite", "seed_mapping", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, NewStorageError("sqlite", "seed_catalog", err)
	}

	s.logger.Info("seeded model catalogue", "models", len(all), "mappings", len(rules))
	return true, nil
}
