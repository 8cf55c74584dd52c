package applications

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/R3E-Network/ordzaar/internal/app/domain"
	"github.com/R3E-Network/ordzaar/internal/app/domain/application"
	"github.com/R3E-Network/ordzaar/internal/app/domain/collection"
	"github.com/R3E-Network/ordzaar/internal/app/domain/ordinal"
	"github.com/R3E-Network/ordzaar/internal/app/domain/slug"
	"github.com/R3E-Network/ordzaar/internal/app/events"
	"github.com/R3E-Network/ordzaar/internal/app/storage"
	apperrors "github.com/R3E-Network/ordzaar/internal/errors"
	"github.com/R3E-Network/ordzaar/pkg/logger"
)

// Materializer turns an approved application into a collection and its
// ordinals.
type Materializer interface {
	Materialize(ctx context.Context, app application.Application) (collection.Collection, []ordinal.Ordinal, error)
}

// CreateInput carries the fields of a new application.
type CreateInput struct {
	Name        string
	Description string
	Creator     string
	Price       string
	TotalSupply int
	Images      []string
	Metadata    string
}

// Patch lists the fields an applicant may change while the application is
// pending. Nil fields are left untouched.
type Patch struct {
	Name        *string
	Description *string
	Price       *string
	TotalSupply *int
	Metadata    *string
}

// StatusResult is returned by UpdateStatus. Collection is set only when the
// status change created one.
type StatusResult struct {
	Application application.Application
	Collection  *collection.Collection
}

// Service manages creator applications.
type Service struct {
	store        storage.ApplicationStore
	collections  storage.CollectionStore
	materializer Materializer
	events       events.Publisher
	maxSupply    int
	log          *logger.Logger
	now          func() time.Time
}

// New constructs an application service.
func New(store storage.ApplicationStore, collections storage.CollectionStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("applications")
	}
	return &Service{
		store:       store,
		collections: collections,
		events:      events.Nop{},
		maxSupply:   application.DefaultMaxSupply,
		log:         log,
		now:         time.Now,
	}
}

// SetMaxSupply bounds the declared totalSupply. Values below 1 keep the
// current limit.
func (s *Service) SetMaxSupply(n int) {
	if n > 0 {
		s.maxSupply = n
	}
}

func (s *Service) checkSupply(n int) error {
	if n > s.maxSupply {
		return apperrors.BadRequest(fmt.Sprintf("totalSupply cannot exceed %d", s.maxSupply)).
			WithDetails("totalSupply", n)
	}
	return nil
}

// AttachMaterializer wires the component that creates collections on
// approval. Without one, approval only updates the application.
func (s *Service) AttachMaterializer(m Materializer) {
	s.materializer = m
}

// AttachPublisher wires the event sink.
func (s *Service) AttachPublisher(p events.Publisher) {
	if p == nil {
		p = events.Nop{}
	}
	s.events = p
}

// List returns all applications, newest first.
func (s *Service) List(ctx context.Context) ([]application.Application, error) {
	apps, err := s.store.ListApplications(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// Get fetches a single application.
func (s *Service) Get(ctx context.Context, id string) (application.Application, error) {
	if !domain.ValidID(id) {
		return application.Application{}, apperrors.BadRequest("Invalid application ID")
	}
	return s.load(ctx, id)
}

func (s *Service) load(ctx context.Context, id string) (application.Application, error) {
	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return application.Application{}, apperrors.NotFound("Application not found")
		}
		return application.Application{}, fmt.Errorf("get application %s: %w", id, err)
	}
	return app, nil
}

// Create submits a new application in the pending state.
func (s *Service) Create(ctx context.Context, in CreateInput) (application.Application, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Creator = strings.TrimSpace(in.Creator)
	in.Price = strings.TrimSpace(in.Price)

	if in.Name == "" || in.Description == "" || in.Creator == "" || in.Price == "" || in.TotalSupply <= 0 {
		return application.Application{}, apperrors.BadRequest("Missing required fields for application")
	}
	if err := s.checkSupply(in.TotalSupply); err != nil {
		return application.Application{}, err
	}
	if _, err := domain.ParsePrice(in.Price); err != nil {
		return application.Application{}, apperrors.BadRequest("Invalid price").WithDetails("price", in.Price)
	}

	now := s.now().UTC()
	app := application.Application{
		Name:        in.Name,
		Slug:        slug.Generate(in.Name, now),
		Description: in.Description,
		Creator:     in.Creator,
		Price:       in.Price,
		Status:      application.StatusPending,
		SubmittedAt: now,
		Stats:       application.Stats{TotalSupply: in.TotalSupply},
		Assets:      application.Assets{Images: append([]string{}, in.Images...), Metadata: in.Metadata},
	}

	created, err := s.store.CreateApplication(ctx, app)
	if err != nil {
		return application.Application{}, fmt.Errorf("create application: %w", err)
	}
	s.log.WithField("application_id", created.ID).
		WithField("slug", created.Slug).
		WithField("creator", created.Creator).
		Info("application submitted")
	return created, nil
}

// CreateTest stores a fixed sample application for smoke testing a
// deployment.
func (s *Service) CreateTest(ctx context.Context) (application.Application, error) {
	now := s.now().UTC()
	app := application.Application{
		Name:        "Test Application",
		Slug:        "test-app-" + strconv.FormatInt(now.UnixMilli(), 10),
		Description: "This is a test application",
		Creator:     "test-user",
		Price:       "0.001",
		Status:      application.StatusPending,
		SubmittedAt: now,
		Stats:       application.Stats{TotalSupply: 100},
		Assets:      application.Assets{Images: []string{}},
	}
	created, err := s.store.CreateApplication(ctx, app)
	if err != nil {
		return application.Application{}, fmt.Errorf("create test application: %w", err)
	}
	s.log.WithField("application_id", created.ID).Info("test application created")
	return created, nil
}

// Update applies patch to a pending application.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (application.Application, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return application.Application{}, err
	}
	if app.Status != application.StatusPending {
		return application.Application{}, apperrors.BadRequest("Cannot update application after it has been processed")
	}

	if patch.Name != nil {
		if trimmed := strings.TrimSpace(*patch.Name); trimmed != "" {
			app.Name = trimmed
		} else {
			return application.Application{}, apperrors.BadRequest("name cannot be empty")
		}
	}
	if patch.Description != nil {
		app.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Price != nil {
		price := strings.TrimSpace(*patch.Price)
		if _, err := domain.ParsePrice(price); err != nil {
			return application.Application{}, apperrors.BadRequest("Invalid price").WithDetails("price", price)
		}
		app.Price = price
	}
	if patch.TotalSupply != nil {
		if *patch.TotalSupply <= 0 {
			return application.Application{}, apperrors.BadRequest("totalSupply must be positive")
		}
		if err := s.checkSupply(*patch.TotalSupply); err != nil {
			return application.Application{}, err
		}
		app.Stats.TotalSupply = *patch.TotalSupply
	}
	if patch.Metadata != nil {
		app.Assets.Metadata = *patch.Metadata
	}

	updated, err := s.store.UpdateApplication(ctx, app)
	if err != nil {
		return application.Application{}, fmt.Errorf("update application %s: %w", id, err)
	}
	s.log.WithField("application_id", id).Info("application updated")
	return updated, nil
}

// UpdateStatus records a review decision. Approving an application without a
// collection materializes one; failures there are logged and do not fail the
// status change.
func (s *Service) UpdateStatus(ctx context.Context, id string, status application.Status) (StatusResult, error) {
	if !status.Valid() {
		return StatusResult{}, apperrors.BadRequest("Invalid status value")
	}
	if !domain.ValidID(id) {
		return StatusResult{}, apperrors.BadRequest("Invalid application ID: " + id)
	}
	app, err := s.load(ctx, id)
	if err != nil {
		return StatusResult{}, err
	}

	app.Status = status
	if status == application.StatusApproved {
		app.IsComplete = true
	}
	app, err = s.store.UpdateApplication(ctx, app)
	if err != nil {
		return StatusResult{}, fmt.Errorf("update application %s status: %w", id, err)
	}
	s.log.WithField("application_id", id).
		WithField("status", status).
		Info("application status updated")

	result := StatusResult{Application: app}
	if status != application.StatusApproved {
		return result, nil
	}
	s.events.Publish(events.ApplicationApproved, app)

	col, created := s.materialize(ctx, app)
	if !created {
		return result, nil
	}
	result.Collection = &col

	app.CollectionCreated = true
	updated, err := s.store.UpdateApplication(ctx, app)
	if err != nil {
		s.log.WithError(err).WithField("application_id", id).Warn("mark collection created")
		return result, nil
	}
	result.Application = updated
	return result, nil
}

func (s *Service) materialize(ctx context.Context, app application.Application) (collection.Collection, bool) {
	if s.materializer == nil {
		return collection.Collection{}, false
	}
	if s.collections != nil {
		_, err := s.collections.GetCollectionByApplication(ctx, app.ID)
		if err == nil {
			return collection.Collection{}, false
		}
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.WithError(err).WithField("application_id", app.ID).Warn("lookup collection for application")
			return collection.Collection{}, false
		}
	}

	col, ords, err := s.materializer.Materialize(ctx, app)
	if err != nil {
		s.log.WithError(err).WithField("application_id", app.ID).Error("create collection from approved application")
		return collection.Collection{}, false
	}
	s.log.WithField("application_id", app.ID).
		WithField("collection_id", col.ID).
		WithField("ordinals", len(ords)).
		Info("collection created from approved application")
	return col, true
}

// AddAssets replaces the artwork of an application.
func (s *Service) AddAssets(ctx context.Context, id string, images []string) (application.Application, error) {
	if len(images) == 0 {
		return application.Application{}, apperrors.BadRequest("No images were uploaded")
	}
	app, err := s.Get(ctx, id)
	if err != nil {
		return application.Application{}, err
	}

	app.Assets.Images = append([]string{}, images...)
	updated, err := s.store.UpdateApplication(ctx, app)
	if err != nil {
		return application.Application{}, fmt.Errorf("add assets to application %s: %w", id, err)
	}
	s.log.WithField("application_id", id).
		WithField("images", len(images)).
		Info("application assets updated")
	return updated, nil
}

// Finalize marks an application as complete once its required details are
// present.
func (s *Service) Finalize(ctx context.Context, id string) (application.Application, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return application.Application{}, err
	}
	if app.Name == "" || app.Description == "" || app.Price == "" {
		return application.Application{}, apperrors.BadRequest("Missing required information")
	}

	app.IsComplete = true
	updated, err := s.store.UpdateApplication(ctx, app)
	if err != nil {
		return application.Application{}, fmt.Errorf("finalize application %s: %w", id, err)
	}
	s.log.WithField("application_id", id).Info("application finalized")
	return updated, nil
}

// MarkCollectionCreated flags an application whose collection was created
// outside the approval flow.
func (s *Service) MarkCollectionCreated(ctx context.Context, id string) error {
	app, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if app.CollectionCreated {
		return nil
	}
	app.CollectionCreated = true
	if _, err := s.store.UpdateApplication(ctx, app); err != nil {
		return fmt.Errorf("mark application %s collection created: %w", id, err)
	}
	return nil
}
