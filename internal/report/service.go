// Package report implements report intake, public tracking and staff triage.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/civicsafe/api/internal/auth"
	"github.com/civicsafe/api/internal/cache"
	"github.com/civicsafe/api/internal/classifier"
	"github.com/civicsafe/api/internal/events"
	"github.com/civicsafe/api/internal/model"
	"github.com/civicsafe/api/internal/reportid"
	"github.com/civicsafe/api/internal/storage"
	"github.com/civicsafe/api/internal/store"
	"github.com/civicsafe/api/internal/vision"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var (
	ErrValidation     = errors.New("invalid report")
	ErrForbidden      = errors.New("insufficient permissions")
	ErrBlockedContent = errors.New("report contains blocked content")
)

// TrackingTTL is how long a tracking view stays cached.
const TrackingTTL = 5 * time.Minute

type Classifier interface {
	Classify(ctx context.Context, description string) (classifier.Result, error)
}

type Moderator interface {
	FindBlocked(texts ...string) (string, bool)
}

// Cache is the subset of *cache.RedisCache used for tracking views.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Deps are the collaborators of a Service. Store and Classifier are
// required; the rest may be nil.
type Deps struct {
	Store      store.ReportStore
	Classifier Classifier
	Images     storage.ImageStore
	Events     events.Publisher
	Cache      Cache
	Moderator  Moderator
	Logger     *zap.Logger
}

type Service struct {
	store      store.ReportStore
	classifier Classifier
	images     storage.ImageStore
	events     events.Publisher
	cache      Cache
	moderator  Moderator
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{
		store:      d.Store,
		classifier: d.Classifier,
		images:     d.Images,
		events:     d.Events,
		cache:      d.Cache,
		moderator:  d.Moderator,
		logger:     d.Logger,
		now:        time.Now,
	}
}

type SubmitInput struct {
	Type         model.ReportType
	SpecificType string
	Title        string
	Description  string
	Location     string
	Latitude     *float64
	Longitude    *float64
	Image        string
}

func (in *SubmitInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.Image = strings.TrimSpace(in.Image)

	var missing []string
	if !in.Type.Valid() {
		missing = append(missing, "type")
	}
	if in.Title == "" {
		missing = append(missing, "title")
	}
	if in.Description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing or invalid %s", ErrValidation, strings.Join(missing, ", "))
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return fmt.Errorf("%w: latitude and longitude must be given together", ErrValidation)
	}
	return nil
}

// Submit creates a PENDING report. actor is nil for anonymous submissions.
// Classification degrades to keyword rules and never fails the submission.
func (s *Service) Submit(ctx context.Context, actor *auth.Identity, in SubmitInput) (*model.Report, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if s.moderator != nil {
		if term, found := s.moderator.FindBlocked(in.Title, in.Description); found {
			return nil, fmt.Errorf("%w: %q", ErrBlockedContent, term)
		}
	}

	now := s.now()
	r := &model.Report{
		ReportID:     reportid.New(),
		Type:         in.Type,
		SpecificType: model.NormalizeIncidentKind(in.SpecificType),
		Title:        in.Title,
		Description:  in.Description,
		Location:     in.Location,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		CreatedAt:    now,
	}
	if actor != nil {
		id := actor.ID
		r.UserID = &id
	}

	s.applyClassification(r, s.classify(ctx, in.Description))

	if in.Image != "" {
		img := s.storeImage(ctx, r.ReportID, in.Image)
		r.Image = &img
	}

	r.AppendStatus(model.StatusPending, "Report submitted", nil, now)

	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}

	s.publish(ctx, events.ReportCreated, r.ReportID, events.ReportCreatedPayload{
		ReportID:     r.ReportID,
		Type:         string(r.Type),
		SpecificType: r.SpecificType,
		Department:   r.Department,
		Confidence:   r.Confidence,
		Anonymous:    r.UserID == nil,
		CreatedAt:    r.CreatedAt,
	})
	return r, nil
}

func (s *Service) classify(ctx context.Context, description string) classifier.Result {
	res, err := s.classifier.Classify(ctx, description)
	if err != nil {
		if !errors.Is(err, classifier.ErrNotConfigured) {
			s.logger.Warn("classification failed, using keyword rules", zap.Error(err))
		}
		return classifier.Result{
			Department: classifier.Heuristic(description),
			Confidence: model.ConfidenceLow,
			Via:        model.ClassifiedViaHeuristic,
			Outcome:    classifier.OutcomeDegraded,
		}
	}
	return res
}

func (s *Service) applyClassification(r *model.Report, res classifier.Result) {
	r.Department = string(res.Department)
	r.Confidence = res.Confidence
	r.ClassifiedVia = res.Via
	if raw, err := json.Marshal(res); err == nil {
		r.Analysis = datatypes.JSON(raw)
	}
}

// storeImage uploads a data URI image and returns its URL. Anything that is
// not an uploadable image, or a failed upload, is kept as submitted.
func (s *Service) storeImage(ctx context.Context, reportID, image string) string {
	if s.images == nil || !strings.HasPrefix(image, "data:") {
		return image
	}
	payload, err := vision.DecodePayload(image)
	if err != nil {
		s.logger.Debug("image is not decodable, storing as submitted", zap.String("reportId", reportID), zap.Error(err))
		return image
	}
	url, err := s.images.PutImage(ctx, storage.ObjectKey(reportID), payload.Data)
	if err != nil {
		s.logger.Warn("image upload failed, storing data URI", zap.String("reportId", reportID), zap.Error(err))
		return image
	}
	return url
}

type TrackingView struct {
	ReportID     string             `json:"reportId"`
	Type         model.ReportType   `json:"type"`
	SpecificType string             `json:"specificType"`
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	Location     string             `json:"location"`
	Latitude     *float64           `json:"latitude,omitempty"`
	Longitude    *float64           `json:"longitude,omitempty"`
	Status       model.ReportStatus `json:"status"`
	Terminal     bool               `json:"terminal"`
	Department   string             `json:"department"`
	Timeline     model.Timeline     `json:"timeline"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

func newTrackingView(r *model.Report) *TrackingView {
	return &TrackingView{
		ReportID:     r.ReportID,
		Type:         r.Type,
		SpecificType: r.SpecificType,
		Title:        r.Title,
		Description:  r.Description,
		Location:     r.Location,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		Status:       r.Status,
		Terminal:     r.Status.IsTerminal(),
		Department:   r.Department,
		Timeline:     r.Timeline,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.LastUpdate(),
	}
}

// Track looks a report up by its exact public id. Unknown ids return
// store.ErrNotFound; store failures wrap store.ErrUnavailable.
func (s *Service) Track(ctx context.Context, publicID string) (*TrackingView, error) {
	publicID = strings.TrimSpace(publicID)
	if !reportid.Valid(publicID) {
		return nil, store.ErrNotFound
	}

	if view, ok := s.cachedView(ctx, publicID); ok {
		return view, nil
	}

	r, err := s.store.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	view := newTrackingView(r)
	s.cacheView(ctx, view)
	return view, nil
}

func (s *Service) cachedView(ctx context.Context, publicID string) (*TrackingView, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, cache.TrackingKey(publicID))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("tracking cache read failed", zap.String("reportId", publicID), zap.Error(err))
		}
		return nil, false
	}
	var view TrackingView
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, false
	}
	return &view, true
}

func (s *Service) cacheView(ctx context.Context, view *TrackingView) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cache.TrackingKey(view.ReportID), raw, TrackingTTL); err != nil {
		s.logger.Warn("tracking cache write failed", zap.String("reportId", view.ReportID), zap.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context, publicID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.TrackingKey(publicID)); err != nil {
		s.logger.Warn("tracking cache invalidation failed", zap.String("reportId", publicID), zap.Error(err))
	}
}

// UpdateStatus sets any valid status; transition order is not enforced.
func (s *Service) UpdateStatus(ctx context.Context, actor *auth.Identity, publicID string, status model.ReportStatus, note string) (*model.Report, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if !reportid.Valid(publicID) {
		return nil, store.ErrNotFound
	}

	r, err := s.store.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}

	note = strings.TrimSpace(note)
	if note == "" {
		note = "Status changed to " + string(status)
	}
	old := r.Status
	actorID := actor.ID
	now := s.now()
	r.AppendStatus(status, note, &actorID, now)

	if err := s.store.UpdateStatus(ctx, r); err != nil {
		return nil, err
	}
	s.invalidate(ctx, r.ReportID)

	s.publish(ctx, events.ReportStatusUpdated, r.ReportID, events.ReportStatusUpdatedPayload{
		ReportID:  r.ReportID,
		OldStatus: string(old),
		NewStatus: string(status),
		ActorID:   actorID,
		Note:      note,
		ChangedAt: now,
	})
	return r, nil
}

type Page struct {
	Reports []model.Report `json:"reports"`
	Total   int64          `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
}

// List returns every report matching f. Staff only.
func (s *Service) List(ctx context.Context, actor *auth.Identity, f store.ReportFilter) (*Page, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	return s.page(ctx, f)
}

// ListByOwner returns the caller's own reports.
func (s *Service) ListByOwner(ctx context.Context, actor *auth.Identity, page, limit int) (*Page, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	id := actor.ID
	return s.page(ctx, store.ReportFilter{UserID: &id, Page: page, Limit: limit})
}

func (s *Service) page(ctx context.Context, f store.ReportFilter) (*Page, error) {
	f.Normalize()
	reports, total, err := s.store.FindMany(ctx, f)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []model.Report{}
	}
	return &Page{Reports: reports, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

func (s *Service) Stats(ctx context.Context, actor *auth.Identity) (*store.Stats, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	return s.store.Stats(ctx)
}

// Reclassification is the outcome of re-running classification on a stored report.
type Reclassification struct {
	ReportID string            `json:"reportId"`
	Previous string            `json:"previous"`
	Result   classifier.Result `json:"result"`
	// Changed is set when the department or confidence differs from the
	// stored one (or, without persist, would differ).
	Changed bool `json:"changed"`
}

// Reclassify re-runs the classifier on r. Only a model classification
// replaces the stored one; degraded results leave r untouched. A model
// answer of Other does not replace a keyword department: the label is kept
// and marked reviewed. Only the classification columns are written, so a
// status change made meanwhile survives. With persist false nothing is
// written.
func (s *Service) Reclassify(ctx context.Context, r *model.Report, persist bool) (*Reclassification, error) {
	res, err := s.classifier.Classify(ctx, r.Description)
	if err != nil {
		return nil, err
	}

	out := &Reclassification{ReportID: r.ReportID, Previous: r.Department, Result: res}
	if res.Outcome != classifier.OutcomeClassified {
		return out, nil
	}

	next := *r
	s.applyClassification(&next, res)
	if res.Department == classifier.Other && model.KeywordClassified(r.ClassifiedVia) &&
		r.Department != "" && r.Department != string(classifier.Other) {
		next.Department = r.Department
		next.Confidence = r.Confidence
		next.ClassifiedVia = model.ClassifiedViaHeuristicReviewed
	}

	out.Changed = next.Department != r.Department || next.Confidence != r.Confidence
	if !persist || (!out.Changed && next.ClassifiedVia == r.ClassifiedVia) {
		return out, nil
	}

	r.Department = next.Department
	r.Confidence = next.Confidence
	r.ClassifiedVia = next.ClassifiedVia
	r.Analysis = next.Analysis
	if err := s.store.UpdateClassification(ctx, r); err != nil {
		return nil, err
	}
	s.invalidate(ctx, r.ReportID)
	if out.Changed {
		s.publish(ctx, events.ReportReclassified, r.ReportID, events.ReportReclassifiedPayload{
			ReportID:      r.ReportID,
			OldDepartment: out.Previous,
			NewDepartment: r.Department,
			Confidence:    r.Confidence,
		})
	}
	return out, nil
}

// publish is best-effort; the report is already stored.
func (s *Service) publish(ctx context.Context, eventType, reportID string, payload interface{}) {
	if s.events == nil {
		return
	}
	event, err := events.NewEvent(eventType, reportID, payload)
	if err != nil {
		s.logger.Error("failed to build event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("type", eventType),
			zap.String("reportId", reportID),
			zap.Error(err),
		)
	}
}
