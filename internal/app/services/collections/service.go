package collections

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/R3E-Network/ordzaar/internal/app/domain"
	"github.com/R3E-Network/ordzaar/internal/app/domain/application"
	"github.com/R3E-Network/ordzaar/internal/app/domain/collection"
	"github.com/R3E-Network/ordzaar/internal/app/domain/ordinal"
	"github.com/R3E-Network/ordzaar/internal/app/events"
	"github.com/R3E-Network/ordzaar/internal/app/metrics"
	"github.com/R3E-Network/ordzaar/internal/app/storage"
	apperrors "github.com/R3E-Network/ordzaar/internal/errors"
	"github.com/R3E-Network/ordzaar/pkg/logger"
)

// DefaultSupply is used when an application does not declare a supply.
const DefaultSupply = 10

// Created is the result of materializing an application.
type Created struct {
	Collection collection.Collection `json:"collection"`
	Ordinals   []ordinal.Ordinal     `json:"ordinals"`
}

// ImageReport summarises collections missing artwork.
type ImageReport struct {
	TotalCollections         int           `json:"totalCollections"`
	CollectionsWithImages    int           `json:"collectionsWithImages"`
	CollectionsWithoutImages int           `json:"collectionsWithoutImages"`
	ImagesStartingWithUpload int           `json:"imagesStartingWithUpload"`
	CollectionsFixed         int           `json:"collectionsFixed"`
	CollectionDetails        []ImageDetail `json:"collectionDetails"`
}

// ImageDetail describes one collection in an ImageReport.
type ImageDetail struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	HasImage      bool   `json:"hasImage"`
	ImageValue    string `json:"imageValue"`
	ApplicationID string `json:"applicationId,omitempty"`
	Fixed         bool   `json:"fixed"`
}

// Service manages collections and creates them from approved applications.
type Service struct {
	store        storage.CollectionStore
	ordinals     storage.OrdinalStore
	applications storage.ApplicationStore
	placeholder  string
	events       events.Publisher
	maxSupply    int
	log          *logger.Logger
}

// New constructs a collection service. placeholderURL is used wherever a
// collection or ordinal has no artwork.
func New(store storage.CollectionStore, ordinals storage.OrdinalStore, applications storage.ApplicationStore, placeholderURL string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("collections")
	}
	return &Service{
		store:        store,
		ordinals:     ordinals,
		applications: applications,
		placeholder:  placeholderURL,
		events:       events.Nop{},
		maxSupply:    application.DefaultMaxSupply,
		log:          log,
	}
}

// SetMaxSupply bounds the number of ordinals minted for one collection.
// Values below 1 keep the current limit.
func (s *Service) SetMaxSupply(n int) {
	if n > 0 {
		s.maxSupply = n
	}
}

// AttachPublisher wires the event sink.
func (s *Service) AttachPublisher(p events.Publisher) {
	if p == nil {
		p = events.Nop{}
	}
	s.events = p
}

// List returns visible collections, newest first.
func (s *Service) List(ctx context.Context) ([]collection.Collection, error) {
	cols, err := s.store.ListCollections(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return cols, nil
}

// GetBySlug fetches a collection by slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (collection.Collection, error) {
	col, err := s.store.GetCollectionBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return collection.Collection{}, apperrors.NotFound("Collection not found")
		}
		return collection.Collection{}, fmt.Errorf("get collection %s: %w", slug, err)
	}
	return col, nil
}

// OrdinalsBySlug returns every ordinal of a collection ordered by number.
func (s *Service) OrdinalsBySlug(ctx context.Context, slug string) ([]ordinal.Ordinal, error) {
	col, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	ords, _, err := s.ordinals.ListOrdinals(ctx, ordinal.Filter{CollectionID: col.ID})
	if err != nil {
		return nil, fmt.Errorf("list ordinals of collection %s: %w", col.ID, err)
	}
	sort.SliceStable(ords, func(i, j int) bool { return ords[i].OrdinalNumber < ords[j].OrdinalNumber })
	return ords, nil
}

// CreateFromApplication materializes the collection of a complete, approved
// application that has none yet.
func (s *Service) CreateFromApplication(ctx context.Context, applicationID string) (Created, error) {
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return Created{}, apperrors.BadRequest("Application ID is required")
	}
	if !domain.ValidID(applicationID) {
		return Created{}, apperrors.BadRequest("Invalid application ID format: " + applicationID)
	}

	app, err := s.applications.GetApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Created{}, apperrors.NotFound("Application not found")
		}
		return Created{}, fmt.Errorf("get application %s: %w", applicationID, err)
	}
	if !app.IsComplete {
		return Created{}, apperrors.BadRequest("Application is not complete")
	}
	if app.Status != application.StatusApproved {
		return Created{}, apperrors.BadRequest("Application has not been approved")
	}
	if _, err := s.store.GetCollectionByApplication(ctx, app.ID); err == nil {
		return Created{}, apperrors.BadRequest("Collection already exists for this application")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Created{}, fmt.Errorf("lookup collection for application %s: %w", app.ID, err)
	}

	col, ords, err := s.Materialize(ctx, app)
	if err != nil {
		return Created{}, err
	}

	app.CollectionCreated = true
	if _, err := s.applications.UpdateApplication(ctx, app); err != nil {
		s.log.WithError(err).WithField("application_id", app.ID).Warn("mark collection created")
	}
	return Created{Collection: col, Ordinals: ords}, nil
}

// Materialize writes the collection and ordinals derived from app in one
// atomic store call.
func (s *Service) Materialize(ctx context.Context, app application.Application) (collection.Collection, []ordinal.Ordinal, error) {
	supply := app.Stats.TotalSupply
	if supply <= 0 {
		supply = DefaultSupply
	}
	if supply > s.maxSupply {
		return collection.Collection{}, nil, apperrors.BadRequest(fmt.Sprintf("totalSupply cannot exceed %d", s.maxSupply)).
			WithDetails("totalSupply", supply)
	}
	images := app.Assets.Images

	col := collection.Collection{
		Name:        app.Name,
		Slug:        app.Slug,
		Description: app.Description,
		Image:       s.imageAt(images, 0),
		Creator:     app.Creator,
		Price:       app.Price,
		TotalSupply: supply,
		Stats:       collection.Stats{FloorPrice: app.Price},
		Settings: collection.Settings{
			IsVisible:         true,
			RoyaltyPercentage: collection.DefaultRoyaltyPercentage,
		},
		ApplicationID: app.ID,
	}

	ords := make([]ordinal.Ordinal, supply)
	for i := range ords {
		ords[i] = ordinal.Ordinal{
			Name:          fmt.Sprintf("%s #%d", app.Name, i+1),
			Description:   app.Description,
			Image:         s.imageAt(images, i),
			OrdinalNumber: i + 1,
			Price:         app.Price,
			Owner:         app.Creator,
			Status:        ordinal.StatusPending,
		}
	}

	col, ords, err := s.store.CreateCollectionWithOrdinals(ctx, col, ords)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return collection.Collection{}, nil, apperrors.Conflict("Duplicate key error", err)
		}
		return collection.Collection{}, nil, fmt.Errorf("create collection for application %s: %w", app.ID, err)
	}
	s.log.WithField("collection_id", col.ID).
		WithField("application_id", app.ID).
		WithField("ordinals", len(ords)).
		Info("collection created")
	metrics.RecordCollectionCreated()
	s.events.Publish(events.CollectionCreated, col)
	return col, ords, nil
}

func (s *Service) imageAt(images []string, i int) string {
	if len(images) == 0 {
		return s.placeholder
	}
	if img := images[i%len(images)]; img != "" {
		return img
	}
	return s.placeholder
}

// Update applies a partial JSON document to a collection. Only presentation
// fields and settings can change; supply and ownership data cannot.
func (s *Service) Update(ctx context.Context, id string, raw []byte) (collection.Collection, error) {
	if !domain.ValidID(id) {
		return collection.Collection{}, apperrors.BadRequest("Invalid collection ID")
	}
	if !gjson.ValidBytes(raw) {
		return collection.Collection{}, apperrors.BadRequest("Invalid JSON body")
	}
	col, err := s.store.GetCollection(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return collection.Collection{}, apperrors.NotFound("Collection not found")
		}
		return collection.Collection{}, fmt.Errorf("get collection %s: %w", id, err)
	}

	doc := gjson.ParseBytes(raw)
	for field, target := range map[string]*string{
		"name":             &col.Name,
		"description":      &col.Description,
		"image":            &col.Image,
		"price":            &col.Price,
		"stats.floorPrice": &col.Stats.FloorPrice,
	} {
		if v := doc.Get(field); v.Exists() {
			*target = strings.TrimSpace(v.String())
		}
	}
	if col.Name == "" {
		return collection.Collection{}, apperrors.BadRequest("name cannot be empty")
	}
	for field, price := range map[string]string{"price": col.Price, "stats.floorPrice": col.Stats.FloorPrice} {
		if _, err := domain.ParsePrice(price); price != "" && err != nil {
			return collection.Collection{}, apperrors.BadRequest("Invalid price").WithDetails(field, price)
		}
	}
	if v := doc.Get("settings.isVisible"); v.Exists() {
		if v.Type != gjson.True && v.Type != gjson.False {
			return collection.Collection{}, apperrors.BadRequest("settings.isVisible must be a boolean")
		}
		col.Settings.IsVisible = v.Bool()
	}
	if v := doc.Get("settings.royaltyPercentage"); v.Exists() {
		if v.Type != gjson.Number || v.Float() < 0 || v.Float() > 100 {
			return collection.Collection{}, apperrors.BadRequest("Royalty percentage must be between 0 and 100")
		}
		col.Settings.RoyaltyPercentage = v.Float()
	}

	updated, err := s.store.UpdateCollection(ctx, col)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return collection.Collection{}, apperrors.Conflict("Duplicate key error", err)
		}
		return collection.Collection{}, fmt.Errorf("update collection %s: %w", id, err)
	}
	s.log.WithField("collection_id", id).Info("collection updated")
	return updated, nil
}

// FixImages reports collections without artwork. When fix is set they get
// the placeholder image.
func (s *Service) FixImages(ctx context.Context, fix bool) (ImageReport, error) {
	cols, err := s.store.ListCollections(ctx, false)
	if err != nil {
		return ImageReport{}, fmt.Errorf("list collections: %w", err)
	}

	report := ImageReport{TotalCollections: len(cols), CollectionDetails: make([]ImageDetail, 0, len(cols))}
	for _, col := range cols {
		detail := ImageDetail{
			ID:            col.ID,
			Name:          col.Name,
			HasImage:      col.Image != "",
			ImageValue:    col.Image,
			ApplicationID: col.ApplicationID,
		}
		if col.Image != "" {
			report.CollectionsWithImages++
			if strings.HasPrefix(col.Image, "/uploads/") {
				report.ImagesStartingWithUpload++
			}
		} else {
			detail.ImageValue = "null"
			report.CollectionsWithoutImages++
			if fix {
				col.Image = s.placeholder
				if _, err := s.store.UpdateCollection(ctx, col); err != nil {
					return ImageReport{}, fmt.Errorf("fix image of collection %s: %w", col.ID, err)
				}
				detail.Fixed = true
				detail.ImageValue = col.Image
				report.CollectionsFixed++
			}
		}
		report.CollectionDetails = append(report.CollectionDetails, detail)
	}
	if report.CollectionsFixed > 0 {
		s.log.WithField("fixed", report.CollectionsFixed).Info("collection images fixed")
	}
	return report, nil
}
