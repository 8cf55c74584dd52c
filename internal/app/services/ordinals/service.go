package ordinals

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/R3E-Network/ordzaar/internal/app/domain"
	"github.com/R3E-Network/ordzaar/internal/app/domain/ordinal"
	"github.com/R3E-Network/ordzaar/internal/app/events"
	"github.com/R3E-Network/ordzaar/internal/app/storage"
	apperrors "github.com/R3E-Network/ordzaar/internal/errors"
	"github.com/R3E-Network/ordzaar/pkg/logger"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is one page of ordinals.
type Page struct {
	Items []ordinal.Ordinal `json:"items"`
	Total int               `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

// SearchParams narrows a search. Zero values do not filter.
type SearchParams struct {
	Query        string
	Status       ordinal.Status
	CollectionID string
	Listed       *bool
	MinPrice     *float64
	MaxPrice     *float64
	Page         int
	Limit        int
}

// Service exposes read access to ordinals and secondary-market listing.
type Service struct {
	store  storage.OrdinalStore
	events events.Publisher
	log    *logger.Logger
}

// New constructs an ordinal service.
func New(store storage.OrdinalStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("ordinals")
	}
	return &Service{store: store, events: events.Nop{}, log: log}
}

// AttachPublisher wires the event sink.
func (s *Service) AttachPublisher(p events.Publisher) {
	if p == nil {
		p = events.Nop{}
	}
	s.events = p
}

func normalisePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// List returns a page of all ordinals.
func (s *Service) List(ctx context.Context, page, limit int) (Page, error) {
	return s.Search(ctx, SearchParams{Page: page, Limit: limit})
}

// Search returns ordinals matching params.
func (s *Service) Search(ctx context.Context, params SearchParams) (Page, error) {
	page, limit := normalisePage(params.Page, params.Limit)
	if params.Status != "" && !params.Status.Valid() {
		return Page{}, apperrors.BadRequest("Invalid status value")
	}
	if params.CollectionID != "" && !domain.ValidID(params.CollectionID) {
		return Page{}, apperrors.BadRequest("Invalid collection ID")
	}
	if params.MinPrice != nil && params.MaxPrice != nil && *params.MinPrice > *params.MaxPrice {
		return Page{}, apperrors.BadRequest("minPrice cannot exceed maxPrice")
	}

	filter := ordinal.Filter{
		Query:        strings.TrimSpace(params.Query),
		CollectionID: params.CollectionID,
		Status:       params.Status,
		Listed:       params.Listed,
		MinPrice:     params.MinPrice,
		MaxPrice:     params.MaxPrice,
		Offset:       (page - 1) * limit,
		Limit:        limit,
	}
	items, total, err := s.store.ListOrdinals(ctx, filter)
	if err != nil {
		return Page{}, fmt.Errorf("list ordinals: %w", err)
	}
	if items == nil {
		items = []ordinal.Ordinal{}
	}
	return Page{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// Get fetches one ordinal.
func (s *Service) Get(ctx context.Context, id string) (ordinal.Ordinal, error) {
	if !domain.ValidID(id) {
		return ordinal.Ordinal{}, apperrors.BadRequest("Invalid ordinal ID")
	}
	ord, err := s.store.GetOrdinal(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ordinal.Ordinal{}, apperrors.NotFound("Ordinal not found")
		}
		return ordinal.Ordinal{}, fmt.Errorf("get ordinal %s: %w", id, err)
	}
	return ord, nil
}

// ListForSale lists an ordinal owned by ownerAddress at price.
func (s *Service) ListForSale(ctx context.Context, id, ownerAddress, price string) (ordinal.Ordinal, error) {
	ord, err := s.Get(ctx, id)
	if err != nil {
		return ordinal.Ordinal{}, err
	}
	if strings.TrimSpace(ownerAddress) == "" || ord.Owner != strings.TrimSpace(ownerAddress) {
		return ordinal.Ordinal{}, apperrors.Forbidden("Only the owner can list this ordinal")
	}
	value, err := domain.ParsePrice(price)
	if err != nil || value <= 0 {
		return ordinal.Ordinal{}, apperrors.BadRequest("Price must be greater than zero")
	}

	ord.Listed = true
	ord.ListPrice = domain.FormatPrice(value)
	updated, err := s.store.UpdateOrdinal(ctx, ord)
	if err != nil {
		return ordinal.Ordinal{}, fmt.Errorf("list ordinal %s: %w", id, err)
	}
	s.log.WithField("ordinal_id", id).
		WithField("list_price", updated.ListPrice).
		Info("ordinal listed for sale")
	s.events.Publish(events.OrdinalListed, updated)
	return updated, nil
}

// Unlist removes an ordinal from sale.
func (s *Service) Unlist(ctx context.Context, id, ownerAddress string) (ordinal.Ordinal, error) {
	ord, err := s.Get(ctx, id)
	if err != nil {
		return ordinal.Ordinal{}, err
	}
	if ord.Owner != strings.TrimSpace(ownerAddress) {
		return ordinal.Ordinal{}, apperrors.Forbidden("Only the owner can unlist this ordinal")
	}
	if !ord.Listed {
		return ord, nil
	}
	ord.Listed = false
	ord.ListPrice = ""
	updated, err := s.store.UpdateOrdinal(ctx, ord)
	if err != nil {
		return ordinal.Ordinal{}, fmt.Errorf("unlist ordinal %s: %w", id, err)
	}
	s.log.WithField("ordinal_id", id).Info("ordinal unlisted")
	return updated, nil
}
