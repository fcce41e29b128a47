package templates

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, t Template) (Template, error)
	List(ctx context.Context) ([]Template, error)
	Get(ctx context.Context, id string) (Template, error)
	Update(ctx context.Context, t Template) (Template, error)
	Delete(ctx context.Context, id string) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Create(ctx context.Context, t Template) (Template, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO mapping_templates (id, name, kind, stage_id, logo, mapping)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Kind, t.StageID, t.Logo, t.Mapping).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Template{}, err
	}
	return t, nil
}

func (r *repository) List(ctx context.Context) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, kind, stage_id, logo, mapping, created_at, updated_at
		FROM mapping_templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []Template{}
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Kind, &t.StageID, &t.Logo, &t.Mapping, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (r *repository) Get(ctx context.Context, id string) (Template, error) {
	var t Template
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, kind, stage_id, logo, mapping, created_at, updated_at
		FROM mapping_templates WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Kind, &t.StageID, &t.Logo, &t.Mapping, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Template{}, err
	}
	return t, nil
}

func (r *repository) Update(ctx context.Context, t Template) (Template, error) {
	err := r.pool.QueryRow(ctx, `
		UPDATE mapping_templates
		SET name = $2, kind = $3, stage_id = $4, logo = $5, mapping = $6, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Kind, t.StageID, t.Logo, t.Mapping).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Template{}, err
	}
	return t, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM mapping_templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
