// Package templates stores reusable column mappings. A user who maps a
// non-standard spreadsheet once can save the layout under a name and start
// later imports from it instead of re-mapping by hand.
package templates

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/vendaops/console/internal/database"
	"github.com/vendaops/console/internal/mapping"
	"github.com/vendaops/console/pkg/rest"
)

type Service interface {
	CreateTemplate(ctx context.Context, input CreateTemplateInput) (*Template, *rest.ApiErr)
	ListTemplates(ctx context.Context) ([]Template, *rest.ApiErr)
	GetTemplate(ctx context.Context, id string) (*Template, *rest.ApiErr)
	UpdateTemplate(ctx context.Context, id string, input UpdateTemplateInput) (*Template, *rest.ApiErr)
	DeleteTemplate(ctx context.Context, id string) *rest.ApiErr
}

type svc struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) Service {
	return &svc{repo: repo, logger: logger}
}

func (s *svc) CreateTemplate(ctx context.Context, input CreateTemplateInput) (*Template, *rest.ApiErr) {
	kind := normalizeKind(input.Kind)
	if apiErr := validateTemplate(input.Name, kind, input.Mapping); apiErr != nil {
		return nil, apiErr
	}

	created, err := s.repo.Create(ctx, Template{
		ID:      uuid.NewString(),
		Name:    input.Name,
		Kind:    kind,
		StageID: input.StageID,
		Logo:    input.Logo,
		Mapping: input.Mapping,
	})
	if err != nil {
		s.logger.Error("erro ao criar modelo de mapeamento", zap.Error(err))
		return nil, handleDBError(err, "")
	}
	return &created, nil
}

func (s *svc) ListTemplates(ctx context.Context) ([]Template, *rest.ApiErr) {
	templates, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("erro ao listar modelos de mapeamento", zap.Error(err))
		return nil, handleDBError(err, "")
	}
	return templates, nil
}

func (s *svc) GetTemplate(ctx context.Context, id string) (*Template, *rest.ApiErr) {
	template, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, handleDBError(err, "modelo de mapeamento nao encontrado")
	}
	return &template, nil
}

func (s *svc) UpdateTemplate(ctx context.Context, id string, input UpdateTemplateInput) (*Template, *rest.ApiErr) {
	kind := normalizeKind(input.Kind)
	if apiErr := validateTemplate(input.Name, kind, input.Mapping); apiErr != nil {
		return nil, apiErr
	}

	updated, err := s.repo.Update(ctx, Template{
		ID:      id,
		Name:    input.Name,
		Kind:    kind,
		StageID: input.StageID,
		Logo:    input.Logo,
		Mapping: input.Mapping,
	})
	if err != nil {
		return nil, handleDBError(err, "modelo de mapeamento nao encontrado")
	}
	return &updated, nil
}

func (s *svc) DeleteTemplate(ctx context.Context, id string) *rest.ApiErr {
	if err := s.repo.Delete(ctx, id); err != nil {
		return handleDBError(err, "modelo de mapeamento nao encontrado")
	}
	return nil
}

// normalizeKind treats an omitted kind as a plain import template.
func normalizeKind(kind string) string {
	if kind == "" {
		return KindImport
	}
	return kind
}

func validateTemplate(name, kind string, m mapping.ColumnMapping) *rest.ApiErr {
	if name == "" {
		return rest.NewBadRequestError("nome do modelo e obrigatorio")
	}
	if kind != KindImport && kind != KindLabel {
		return rest.NewBadRequestError("tipo de modelo invalido")
	}
	if m == (mapping.ColumnMapping{}) {
		return rest.NewBadRequestError("modelo sem colunas mapeadas")
	}
	return nil
}

func handleDBError(err error, notFoundMessage string) *rest.ApiErr {
	if errors.Is(err, pgx.ErrNoRows) {
		if notFoundMessage == "" {
			notFoundMessage = "registro nao encontrado"
		}
		return rest.NewNotFoundError(notFoundMessage)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return database.GetError(pgErr, pgErr.ConstraintName)
	}
	return rest.NewInternalServerError("erro interno do servidor")
}
