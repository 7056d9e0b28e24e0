package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-intervention-api/internal/dto"
	"github.com/noah-isme/sma-intervention-api/internal/models"
	appErrors "github.com/noah-isme/sma-intervention-api/pkg/errors"
)

type interventionRepository interface {
	List(ctx context.Context, filter models.InterventionFilter) ([]models.Intervention, error)
	FindByID(ctx context.Context, id int64) (*models.Intervention, error)
	Create(ctx context.Context, item *models.Intervention, involvedStaffIDs []int64) error
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}, involvedStaffIDs []int64) error
	Delete(ctx context.Context, id int64) (bool, error)
	InvolvedStaffIDs(ctx context.Context, caseIDs []int64) (map[int64][]int64, error)
}

type identityRepository interface {
	FindStudentByID(ctx context.Context, id int64) (*models.Student, error)
	FindStaffByID(ctx context.Context, id int64) (*models.Staff, error)
	StudentsByIDs(ctx context.Context, ids []int64) (map[int64]models.Student, error)
	StaffByIDs(ctx context.Context, ids []int64) (map[int64]models.Staff, error)
}

type caseCommentReader interface {
	ListAll(ctx context.Context, caseID int64) ([]models.Comment, error)
}

// InterventionServiceConfig tunes the case service.
type InterventionServiceConfig struct {
	CacheTTL time.Duration
}

// InterventionService orchestrates the case store, identity lookups and the
// scoring engine.
type InterventionService struct {
	cases      interventionRepository
	identities identityRepository
	comments   caseCommentReader
	scoring    *ScoringEngine
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	config     InterventionServiceConfig
}

// NewInterventionService constructs the case service.
func NewInterventionService(
	cases interventionRepository,
	identities identityRepository,
	comments caseCommentReader,
	scoring *ScoringEngine,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	config InterventionServiceConfig,
) *InterventionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if scoring == nil {
		scoring = NewScoringEngine(nil)
	}
	return &InterventionService{
		cases:      cases,
		identities: identities,
		comments:   comments,
		scoring:    scoring,
		cache:      cache,
		metrics:    metrics,
		validator:  ensureCaseValidators(validate),
		logger:     logger,
		config:     config,
	}
}

// List returns every case matching filter with student, informer and
// responsible populated.
func (s *InterventionService) List(ctx context.Context, filter models.InterventionFilter) ([]models.Intervention, error) {
	start := time.Now()
	items, err := s.cases.List(ctx, filter)
	s.metrics.ObserveDBQuery("cases_list", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cases")
	}
	if items == nil {
		items = []models.Intervention{}
	}
	if err := s.attachRelations(ctx, items, true); err != nil {
		return nil, err
	}
	return items, nil
}

// ListScored returns the filtered cases ranked by urgency score, highest
// first. Equal scores keep the newest case first.
func (s *InterventionService) ListScored(ctx context.Context, filter models.InterventionFilter) ([]dto.ScoredIntervention, error) {
	items, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.rank(items), nil
}

func (s *InterventionService) rank(items []models.Intervention) []dto.ScoredIntervention {
	now := s.scoring.Now()
	scored := make([]dto.ScoredIntervention, 0, len(items))
	for _, item := range items {
		scored = append(scored, dto.ScoredIntervention{
			Intervention: item,
			Score:        ScoreAt(ScoreInputFromIntervention(item), now).Total(),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID > scored[j].ID
	})
	return scored
}

// ListByStudent returns a student's cases with informer and responsible only.
func (s *InterventionService) ListByStudent(ctx context.Context, studentID int64) ([]models.Intervention, error) {
	if studentID <= 0 {
		return nil, fieldValidation("studentId", "min", "1")
	}
	start := time.Now()
	items, err := s.cases.List(ctx, models.InterventionFilter{StudentID: studentID})
	s.metrics.ObserveDBQuery("cases_by_student", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student cases")
	}
	if items == nil {
		items = []models.Intervention{}
	}
	if err := s.attachRelations(ctx, items, false); err != nil {
		return nil, err
	}
	return items, nil
}

// attachRelations batch loads the relations of a listing.
func (s *InterventionService) attachRelations(ctx context.Context, items []models.Intervention, withStudent bool) error {
	if len(items) == 0 {
		return nil
	}
	studentIDs := make([]int64, 0, len(items))
	staffIDs := make([]int64, 0, len(items)*2)
	for _, item := range items {
		studentIDs = append(studentIDs, item.StudentID)
		staffIDs = append(staffIDs, item.InformerID, item.ResponsibleID)
	}

	staff, err := s.identities.StaffByIDs(ctx, uniqueIDs(staffIDs))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case staff")
	}
	var students map[int64]models.Student
	if withStudent {
		students, err = s.identities.StudentsByIDs(ctx, uniqueIDs(studentIDs))
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case students")
		}
	}

	for i := range items {
		if st, ok := students[items[i].StudentID]; ok {
			student := st
			items[i].Student = &student
		}
		if informer, ok := staff[items[i].InformerID]; ok {
			v := informer
			items[i].Informer = &v
		}
		if responsible, ok := staff[items[i].ResponsibleID]; ok {
			v := responsible
			items[i].Responsible = &v
		}
	}
	return nil
}

// Get returns one case with its informer and responsible flattened.
func (s *InterventionService) Get(ctx context.Context, id int64) (*dto.InterventionDetail, error) {
	if id <= 0 {
		return nil, fieldValidation("id", "min", "1")
	}
	var cached dto.InterventionDetail
	if hit, _ := s.cache.Get(ctx, caseDetailKey(id), &cached); hit {
		return &cached, nil
	}

	item, err := s.loadFull(ctx, id, false)
	if err != nil {
		return nil, err
	}
	detail := dto.NewInterventionDetail(*item)
	_ = s.cache.Set(ctx, caseDetailKey(id), detail, s.config.CacheTTL)
	return &detail, nil
}

// Score computes the urgency score of one case on read.
func (s *InterventionService) Score(ctx context.Context, id int64) (*dto.ScoreResponse, error) {
	item, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.scoring.Now()
	breakdown := ScoreAt(ScoreInputFromIntervention(*item), now)
	s.metrics.ObserveScore(breakdown.Total())
	return &dto.ScoreResponse{
		CaseID:     item.ID,
		Score:      breakdown.Total(),
		Breakdown:  breakdown,
		ComputedAt: now.UTC(),
	}, nil
}

// Create validates the command, resolves every referenced identity and only
// then persists the case. Nothing is written when a reference is missing.
func (s *InterventionService) Create(ctx context.Context, cmd dto.CreateInterventionCommand) (*models.Intervention, error) {
	cmd.Description = strings.TrimSpace(cmd.Description)
	if err := s.validator.Struct(cmd); err != nil {
		return nil, validationError(err, "invalid case payload")
	}
	if cmd.DateReported.IsZero() {
		return nil, fieldValidation("dateReported", "required", "")
	}

	student, err := s.resolveStudent(ctx, cmd.StudentID.Int64())
	if err != nil {
		return nil, err
	}
	informer, err := s.resolveStaff(ctx, "informer", cmd.InformerID.Int64())
	if err != nil {
		return nil, err
	}
	responsible, err := s.resolveStaff(ctx, "responsible", cmd.ResponsibleID.Int64())
	if err != nil {
		return nil, err
	}
	involvedIDs := uniqueIDs(cmd.InvolvedStaffIDs)
	involved, err := s.resolveInvolvedStaff(ctx, involvedIDs)
	if err != nil {
		return nil, err
	}

	item := newInterventionFromCommand(cmd)
	start := time.Now()
	err = s.cases.Create(ctx, item, involvedIDs)
	s.metrics.ObserveDBQuery("cases_create", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create case")
	}
	s.metrics.RecordCaseWrite("create")

	item.Student = student
	item.Informer = informer
	item.Responsible = responsible
	item.InvolvedStaff = involved
	s.logger.Info("case created", zap.Int64("case_id", item.ID), zap.Int64("student_id", item.StudentID))
	return item, nil
}

func newInterventionFromCommand(cmd dto.CreateInterventionCommand) *models.Intervention {
	item := &models.Intervention{
		Title:                   cmd.Title,
		Type:                    cmd.Type,
		Status:                  cmd.Status,
		Priority:                int(cmd.Priority.Int64()),
		Scope:                   cmd.Scope,
		Severity:                cmd.Severity,
		DateReported:            *cmd.DateReported,
		DateResolved:            nonZeroDate(cmd.DateResolved),
		FollowUpDate:            nonZeroDate(cmd.FollowUpDate),
		Description:             cmd.Description,
		ActionsTaken:            trimAll(cmd.ActionsTaken),
		OutcomeEvaluation:       cmd.OutcomeEvaluation,
		ParentFeedback:          cmd.ParentFeedback,
		ExternalReferralDetails: cmd.ExternalReferralDetails,
		Tags:                    trimAll(cmd.Tags),
		Outcome:                 cmd.Outcome,
		StudentID:               cmd.StudentID.Int64(),
		InformerID:              cmd.InformerID.Int64(),
		ResponsibleID:           cmd.ResponsibleID.Int64(),
	}
	if item.Type == "" {
		item.Type = models.InterventionTypeOther
	}
	if item.Status == "" {
		item.Status = models.InterventionStatusPending
	}
	if item.Scope == "" {
		item.Scope = models.InterventionScopeIndividual
	}
	if item.Severity == "" {
		item.Severity = models.SeverityMedium
	}
	if cmd.ProgressPercentage != nil {
		item.ProgressPercentage = *cmd.ProgressPercentage
	}
	if cmd.RequiresExternalReferral != nil {
		item.RequiresExternalReferral = cmd.RequiresExternalReferral.Bool()
	}
	if cmd.RequiresFollowUp != nil {
		item.RequiresFollowUp = cmd.RequiresFollowUp.Bool()
	}
	return item
}

func nonZeroDate(d *models.Date) *models.Date {
	if d == nil || d.IsZero() {
		return nil
	}
	v := *d
	return &v
}

// Update applies the supplied fields of cmd. Relation ids that do not
// resolve are skipped and logged; the stored relation is kept.
func (s *InterventionService) Update(ctx context.Context, id int64, cmd dto.UpdateInterventionCommand) (*models.Intervention, error) {
	if id <= 0 {
		return nil, fieldValidation("id", "min", "1")
	}
	if err := s.validateUpdate(cmd); err != nil {
		return nil, err
	}

	current, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	relations := UpdateRelations{
		Student:     s.resolveOptionalRelation(ctx, "student", cmd.StudentID),
		Informer:    s.resolveOptionalRelation(ctx, "informer", cmd.InformerID),
		Responsible: s.resolveOptionalRelation(ctx, "responsible", cmd.ResponsibleID),
	}
	for name, rel := range map[string]RelationResolution{
		"student": relations.Student, "informer": relations.Informer, "responsible": relations.Responsible,
	} {
		if rel.Requested && !rel.Resolved {
			s.logger.Warn("relation not replaced", zap.Int64("case_id", id), zap.String("relation", name),
				zap.Int64("requested_id", rel.ID), zap.Error(rel.Err))
		}
	}

	var involvedIDs []int64
	if cmd.InvolvedStaffIDs.Set {
		involvedIDs, err = s.resolvableInvolvedIDs(ctx, id, cmd.InvolvedStaffIDs)
		if err != nil {
			return nil, err
		}
	}

	_, fields := MergeIntervention(*current, cmd, relations)
	if len(fields) > 0 || involvedIDs != nil {
		start := time.Now()
		err = s.cases.UpdateFields(ctx, id, fields, involvedIDs)
		s.metrics.ObserveDBQuery("cases_update", time.Since(start))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update case")
		}
		s.metrics.RecordCaseWrite("update")
	}
	_ = s.cache.Delete(ctx, caseDetailKey(id))

	return s.loadFull(ctx, id, true)
}

func (s *InterventionService) validateUpdate(cmd dto.UpdateInterventionCommand) error {
	required := []struct {
		field string
		opt   interface{ Present() bool }
		set   bool
	}{
		{"studentId", cmd.StudentID, cmd.StudentID.Set},
		{"informerId", cmd.InformerID, cmd.InformerID.Set},
		{"responsibleId", cmd.ResponsibleID, cmd.ResponsibleID.Set},
		{"type", cmd.Type, cmd.Type.Set},
		{"status", cmd.Status, cmd.Status.Set},
		{"priority", cmd.Priority, cmd.Priority.Set},
		{"scope", cmd.Scope, cmd.Scope.Set},
		{"severity", cmd.Severity, cmd.Severity.Set},
		{"dateReported", cmd.DateReported, cmd.DateReported.Set},
		{"description", cmd.Description, cmd.Description.Set},
		{"requiresExternalReferral", cmd.RequiresExternalReferral, cmd.RequiresExternalReferral.Set},
		{"progressPercentage", cmd.ProgressPercentage, cmd.ProgressPercentage.Set},
		{"requiresFollowUp", cmd.RequiresFollowUp, cmd.RequiresFollowUp.Set},
	}
	for _, r := range required {
		if r.set && !r.opt.Present() {
			return appErrors.Clone(appErrors.ErrValidation, r.field+" cannot be null")
		}
	}

	checks := []struct {
		field string
		apply bool
		value interface{}
		tag   string
	}{
		{"type", cmd.Type.Present(), string(cmd.Type.Value), "case_type"},
		{"status", cmd.Status.Present(), string(cmd.Status.Value), "case_status"},
		{"scope", cmd.Scope.Present(), string(cmd.Scope.Value), "case_scope"},
		{"severity", cmd.Severity.Present(), string(cmd.Severity.Value), "case_severity"},
		{"priority", cmd.Priority.Present(), cmd.Priority.Value.Int64(), "min=1,max=5"},
		{"progressPercentage", cmd.ProgressPercentage.Present(), cmd.ProgressPercentage.Value, "min=0,max=100"},
		{"description", cmd.Description.Present(), strings.TrimSpace(cmd.Description.Value), "required"},
		{"involvedStaffIds", cmd.InvolvedStaffIDs.Present(), cmd.InvolvedStaffIDs.Value, "omitempty,dive,min=1"},
	}
	for _, c := range checks {
		if !c.apply {
			continue
		}
		if err := s.validator.Var(c.value, c.tag); err != nil {
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
				return fieldValidation(c.field, fieldErrs[0].Tag(), fieldErrs[0].Param())
			}
			return validationError(err, "invalid "+c.field)
		}
	}
	if cmd.DateReported.Present() && cmd.DateReported.Value.IsZero() {
		return fieldValidation("dateReported", "required", "")
	}
	return nil
}

// resolveOptionalRelation looks up a supplied relation id without failing.
func (s *InterventionService) resolveOptionalRelation(ctx context.Context, relation string, opt dto.Optional[dto.FlexInt]) RelationResolution {
	if !opt.Present() {
		return RelationResolution{}
	}
	res := RelationResolution{Requested: true, ID: opt.Value.Int64()}
	if res.ID <= 0 {
		res.Err = fmt.Errorf("%s id must be positive", relation)
		return res
	}
	var err error
	if relation == "student" {
		_, err = s.identities.FindStudentByID(ctx, res.ID)
	} else {
		_, err = s.identities.FindStaffByID(ctx, res.ID)
	}
	res.Err = err
	res.Resolved = err == nil
	return res
}

// resolvableInvolvedIDs keeps the supplied involved staff that exist. Null
// clears the set.
func (s *InterventionService) resolvableInvolvedIDs(ctx context.Context, caseID int64, opt dto.Optional[[]int64]) ([]int64, error) {
	if opt.Null {
		return []int64{}, nil
	}
	requested := uniqueIDs(opt.Value)
	found, err := s.identities.StaffByIDs(ctx, requested)
	if err != nil {
		s.logger.Warn("involved staff not replaced", zap.Int64("case_id", caseID), zap.Error(err))
		return nil, nil
	}
	kept := make([]int64, 0, len(requested))
	for _, id := range requested {
		if _, ok := found[id]; ok {
			kept = append(kept, id)
			continue
		}
		s.logger.Warn("involved staff dropped", zap.Int64("case_id", caseID), zap.Int64("staff_id", id))
	}
	return kept, nil
}

// Delete removes the case and its comments.
func (s *InterventionService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fieldValidation("id", "min", "1")
	}
	start := time.Now()
	deleted, err := s.cases.Delete(ctx, id)
	s.metrics.ObserveDBQuery("cases_delete", time.Since(start))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete case")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "case not found")
	}
	s.metrics.RecordCaseWrite("delete")
	_ = s.cache.Delete(ctx, caseDetailKey(id))
	s.logger.Info("case deleted", zap.Int64("case_id", id))
	return nil
}

func (s *InterventionService) find(ctx context.Context, id int64) (*models.Intervention, error) {
	start := time.Now()
	item, err := s.cases.FindByID(ctx, id)
	s.metrics.ObserveDBQuery("cases_get", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case")
	}
	return item, nil
}

// loadFull reads a case with student, informer and responsible (with
// profiles), involved staff and, when asked, its comments.
func (s *InterventionService) loadFull(ctx context.Context, id int64, withComments bool) (*models.Intervention, error) {
	item, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	student, err := s.identities.FindStudentByID(ctx, item.StudentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case student")
	}
	item.Student = student

	staffIDs := []int64{item.InformerID, item.ResponsibleID}
	involvedMap, err := s.cases.InvolvedStaffIDs(ctx, []int64{id})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load involved staff")
	}
	involvedIDs := involvedMap[id]
	staff, err := s.identities.StaffByIDs(ctx, uniqueIDs(append(staffIDs, involvedIDs...)))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case staff")
	}
	if v, ok := staff[item.InformerID]; ok {
		informer := v
		item.Informer = &informer
	}
	if v, ok := staff[item.ResponsibleID]; ok {
		responsible := v
		item.Responsible = &responsible
	}
	for _, staffID := range involvedIDs {
		if v, ok := staff[staffID]; ok {
			item.InvolvedStaff = append(item.InvolvedStaff, v)
		}
	}

	if withComments && s.comments != nil {
		comments, err := s.comments.ListAll(ctx, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case comments")
		}
		item.Comments = comments
	}
	return item, nil
}

func (s *InterventionService) resolveStudent(ctx context.Context, id int64) (*models.Student, error) {
	student, err := s.identities.FindStudentByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrReferenceNotFound, fmt.Sprintf("student %d not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}
	return student, nil
}

func (s *InterventionService) resolveStaff(ctx context.Context, relation string, id int64) (*models.Staff, error) {
	staff, err := s.identities.FindStaffByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrReferenceNotFound, fmt.Sprintf("%s %d not found", relation, id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve "+relation)
	}
	return staff, nil
}

// resolveInvolvedStaff loads ids in order. An unknown id rejects the request.
func (s *InterventionService) resolveInvolvedStaff(ctx context.Context, ids []int64) ([]models.Staff, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := s.identities.StaffByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve involved staff")
	}
	result := make([]models.Staff, 0, len(ids))
	for _, id := range ids {
		staff, ok := found[id]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrReferenceNotFound, fmt.Sprintf("involved staff %d not found", id))
		}
		result = append(result, staff)
	}
	return result, nil
}

func uniqueIDs(ids []int64) []int64 {
	if ids == nil {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
