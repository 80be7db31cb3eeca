package catalog

import (
	"context"
	"fmt"
	"io"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=catalog
type Repository interface {
	// ListItems returns the catalog in id order, which is the order used
	// to number the pieces of a drop-off.
	ListItems(ctx context.Context) ([]*Item, error)
	UpsertItems(ctx context.Context, items []*Item) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]*Item, error) {
	return s.repo.ListItems(ctx)
}

// Import parses a price list and creates or reprices items by name.
func (s *Service) Import(ctx context.Context, r io.Reader) ([]*Item, error) {
	items, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpsertItems(ctx, items); err != nil {
		return nil, fmt.Errorf("upserting catalog: %w", err)
	}

	return items, nil
}
