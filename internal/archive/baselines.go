package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/eagraph/internal/baseline"
	"github.com/roach88/eagraph/internal/snapshot"
)

// Summary is the listing row for one archived baseline.
type Summary struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	CreatedBy         string          `json:"createdBy,omitempty"`
	Source            baseline.Source `json:"source"`
	ElementCount      int             `json:"elementCount"`
	RelationshipCount int             `json:"relationshipCount"`
	Digest            string          `json:"digest"`
}

// Export writes b to the archive after verifying its digest.
// Exporting the same baseline twice is a no-op; reusing an id for
// different content returns ErrConflict.
func (a *Archive) Export(ctx context.Context, b *baseline.Baseline) error {
	if err := b.Verify(); err != nil {
		return fmt.Errorf("export baseline %s: %w", b.ID, err)
	}
	payload, err := encodePayload(b)
	if err != nil {
		return fmt.Errorf("export baseline %s: %w", b.ID, err)
	}

	res, err := a.db.ExecContext(ctx, `
		INSERT INTO baselines
		(id, name, description, created_at, created_by,
		 elements_revision, relationships_revision,
		 element_count, relationship_count, digest, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		b.ID,
		b.Name,
		b.Description,
		b.CreatedAt.UTC().Format(time.RFC3339Nano),
		b.CreatedBy,
		b.Source.ElementsRevision,
		b.Source.RelationshipsRevision,
		len(b.Elements),
		len(b.Relationships),
		b.Digest,
		payload,
	)
	if err != nil {
		return fmt.Errorf("export baseline %s: %w", b.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("export baseline %s: %w", b.ID, err)
	}
	if n == 1 {
		return nil
	}

	var existing string
	if err := a.db.QueryRowContext(ctx, `SELECT digest FROM baselines WHERE id = ?`, b.ID).Scan(&existing); err != nil {
		return fmt.Errorf("export baseline %s: %w", b.ID, err)
	}
	if existing != b.Digest {
		return fmt.Errorf("export baseline %s: %w", b.ID, ErrConflict)
	}
	return nil
}

// Load reads one baseline and verifies its digest.
func (a *Archive) Load(ctx context.Context, id string) (*baseline.Baseline, error) {
	var (
		digest  string
		payload []byte
	)
	err := a.db.QueryRowContext(ctx, `SELECT digest, payload FROM baselines WHERE id = ?`, id).Scan(&digest, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load baseline %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load baseline %s: %w", id, err)
	}

	b, err := decodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("load baseline %s: %w", id, err)
	}
	if b.Digest != digest {
		return nil, fmt.Errorf("load baseline %s: payload digest %s does not match row digest %s: %w",
			id, b.Digest, digest, baseline.ErrDigestMismatch)
	}
	if err := b.Verify(); err != nil {
		return nil, fmt.Errorf("load baseline %s: %w", id, err)
	}
	return b, nil
}

// List returns summaries in archive order.
func (a *Archive) List(ctx context.Context) ([]Summary, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, name, description, created_at, created_by,
		       elements_revision, relationships_revision,
		       element_count, relationship_count, digest
		FROM baselines
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list baselines: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			s         Summary
			createdAt string
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &createdAt, &s.CreatedBy,
			&s.Source.ElementsRevision, &s.Source.RelationshipsRevision,
			&s.ElementCount, &s.RelationshipCount, &s.Digest); err != nil {
			return nil, fmt.Errorf("list baselines: %w", err)
		}
		s.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("list baselines: baseline %s: %w", s.ID, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list baselines: %w", err)
	}
	return out, nil
}

func encodePayload(b *baseline.Baseline) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return snapshot.CompressBytes(data)
}

func decodePayload(payload []byte) (*baseline.Baseline, error) {
	data, err := snapshot.DecompressBytes(payload)
	if err != nil {
		return nil, err
	}
	var b baseline.Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &b, nil
}
