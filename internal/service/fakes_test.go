package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/sma-intervention-api/internal/models"
	appErrors "github.com/noah-isme/sma-intervention-api/pkg/errors"
)

var errStorage = errors.New("storage unavailable")

type fakeInterventionRepo struct {
	mu       sync.Mutex
	items    map[int64]models.Intervention
	involved map[int64][]int64
	nextID   int64
	comments *fakeCommentRepo
	listErr  error
	creates  int
}

func newFakeInterventionRepo(comments *fakeCommentRepo) *fakeInterventionRepo {
	return &fakeInterventionRepo{
		items:    make(map[int64]models.Intervention),
		involved: make(map[int64][]int64),
		nextID:   1,
		comments: comments,
	}
}

func (r *fakeInterventionRepo) List(ctx context.Context, filter models.InterventionFilter) ([]models.Intervention, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []models.Intervention
	for _, item := range r.items {
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.Type != "" && item.Type != filter.Type {
			continue
		}
		if filter.Priority > 0 && item.Priority != filter.Priority {
			continue
		}
		if filter.Severity != "" && item.Severity != filter.Severity {
			continue
		}
		if filter.StudentID > 0 && item.StudentID != filter.StudentID {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateReported.Equal(out[j].DateReported.Time) {
			return out[i].DateReported.After(out[j].DateReported.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *fakeInterventionRepo) FindByID(ctx context.Context, id int64) (*models.Intervention, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

func (r *fakeInterventionRepo) Create(ctx context.Context, item *models.Intervention, involvedStaffIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.ID = r.nextID
	r.nextID++
	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	stored := *item
	stored.Student, stored.Informer, stored.Responsible, stored.InvolvedStaff, stored.Comments = nil, nil, nil, nil, nil
	r.items[item.ID] = stored
	if len(involvedStaffIDs) > 0 {
		r.involved[item.ID] = append([]int64(nil), involvedStaffIDs...)
	}
	r.creates++
	return nil
}

// UpdateFields applies only the named columns, like a column-wise UPDATE.
func (r *fakeInterventionRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}, involvedStaffIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	for column, value := range fields {
		applyColumn(&item, column, value)
	}
	item.UpdatedAt = time.Now().UTC()
	r.items[id] = item
	if involvedStaffIDs != nil {
		r.involved[id] = append([]int64(nil), involvedStaffIDs...)
	}
	return nil
}

func applyColumn(item *models.Intervention, column string, value interface{}) {
	switch column {
	case "student_id":
		item.StudentID = value.(int64)
	case "informer_id":
		item.InformerID = value.(int64)
	case "responsible_id":
		item.ResponsibleID = value.(int64)
	case "title":
		item.Title = value.(*string)
	case "type":
		item.Type = value.(models.InterventionType)
	case "status":
		item.Status = value.(models.InterventionStatus)
	case "priority":
		item.Priority = value.(int)
	case "scope":
		item.Scope = value.(models.InterventionScope)
	case "severity":
		item.Severity = value.(models.Severity)
	case "date_reported":
		item.DateReported = value.(models.Date)
	case "date_resolved":
		item.DateResolved = value.(*models.Date)
	case "follow_up_date":
		item.FollowUpDate = value.(*models.Date)
	case "description":
		item.Description = value.(string)
	case "actions_taken":
		item.ActionsTaken = value.(pq.StringArray)
	case "outcome_evaluation":
		item.OutcomeEvaluation = value.(*string)
	case "parent_feedback":
		item.ParentFeedback = value.(*string)
	case "requires_external_referral":
		item.RequiresExternalReferral = value.(bool)
	case "external_referral_details":
		item.ExternalReferralDetails = value.(*string)
	case "progress_percentage":
		item.ProgressPercentage = value.(float64)
	case "requires_follow_up":
		item.RequiresFollowUp = value.(bool)
	case "tags":
		item.Tags = value.(pq.StringArray)
	case "outcome":
		item.Outcome = value.(*string)
	default:
		panic("unknown column " + column)
	}
}

func (r *fakeInterventionRepo) Delete(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return false, nil
	}
	delete(r.items, id)
	delete(r.involved, id)
	if r.comments != nil {
		r.comments.deleteCase(id)
	}
	return true, nil
}

func (r *fakeInterventionRepo) InvolvedStaffIDs(ctx context.Context, caseIDs []int64) (map[int64][]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64][]int64, len(caseIDs))
	for _, id := range caseIDs {
		if ids, ok := r.involved[id]; ok {
			out[id] = append([]int64(nil), ids...)
		}
	}
	return out, nil
}

func (r *fakeInterventionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type fakeIdentityRepo struct {
	students map[int64]models.Student
	staff    map[int64]models.Staff
	err      error
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	first, last := "Ana", "Rojas"
	position := "Counselor"
	return &fakeIdentityRepo{
		students: map[int64]models.Student{
			1: {ID: 1, FirstName: "Diego", LastName: "Soto", RUT: "11.111.111-1", Grade: "8A", AcademicYear: 2024, IsActive: true},
			2: {ID: 2, FirstName: "Camila", LastName: "Paz", RUT: "22.222.222-2", Grade: "7B", AcademicYear: 2024, IsActive: true},
		},
		staff: map[int64]models.Staff{
			10: {ID: 10, Email: "ana@school.test", Role: models.RoleStaff, IsActive: true,
				Profile: &models.Profile{ID: 100, FirstName: first, LastName: last, Position: &position}},
			11: {ID: 11, Email: "luis@school.test", Role: models.RoleStaff, IsActive: true,
				Profile: &models.Profile{ID: 101, FirstName: "Luis", LastName: "Vera"}},
			12: {ID: 12, Email: "noprofile@school.test", Role: models.RoleAdmin, IsActive: true},
		},
	}
}

func (r *fakeIdentityRepo) FindStudentByID(ctx context.Context, id int64) (*models.Student, error) {
	if r.err != nil {
		return nil, r.err
	}
	s, ok := r.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (r *fakeIdentityRepo) FindStaffByID(ctx context.Context, id int64) (*models.Staff, error) {
	if r.err != nil {
		return nil, r.err
	}
	s, ok := r.staff[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (r *fakeIdentityRepo) StudentsByIDs(ctx context.Context, ids []int64) (map[int64]models.Student, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make(map[int64]models.Student)
	for _, id := range ids {
		if s, ok := r.students[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (r *fakeIdentityRepo) StaffByIDs(ctx context.Context, ids []int64) (map[int64]models.Staff, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make(map[int64]models.Staff)
	for _, id := range ids {
		if s, ok := r.staff[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

type fakeCommentRepo struct {
	mu       sync.Mutex
	comments []models.Comment
	nextID   int64
	base     time.Time
	staff    map[int64]models.Staff
}

func newFakeCommentRepo(staff map[int64]models.Staff) *fakeCommentRepo {
	return &fakeCommentRepo{nextID: 1, base: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), staff: staff}
}

// Create stamps each comment one minute after the previous one.
func (r *fakeCommentRepo) Create(ctx context.Context, comment *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment.ID = r.nextID
	comment.CreatedAt = r.base.Add(time.Duration(r.nextID) * time.Minute)
	r.nextID++
	stored := *comment
	stored.Author = nil
	r.comments = append(r.comments, stored)
	return nil
}

func (r *fakeCommentRepo) withAuthor(c models.Comment) models.Comment {
	author := &models.CommentAuthor{ID: c.AuthorID}
	if s, ok := r.staff[c.AuthorID]; ok && s.Profile != nil {
		first, last := s.Profile.FirstName, s.Profile.LastName
		author.FirstName, author.LastName = &first, &last
	}
	c.Author = author
	return c
}

func (r *fakeCommentRepo) sorted(caseID int64) []models.Comment {
	var out []models.Comment
	for _, c := range r.comments {
		if c.InterventionID == caseID {
			out = append(out, r.withAuthor(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *fakeCommentRepo) ListByIntervention(ctx context.Context, caseID int64, limit, offset int) ([]models.Comment, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted(caseID)
	if offset >= len(all) {
		return []models.Comment{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (r *fakeCommentRepo) FindScoped(ctx context.Context, caseID, commentID int64) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.comments {
		if c.ID == commentID && c.InterventionID == caseID {
			out := r.withAuthor(c)
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeCommentRepo) UpdateContent(ctx context.Context, caseID, commentID int64, content string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.comments {
		if c.ID == commentID && c.InterventionID == caseID {
			r.comments[i].Content = content
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeCommentRepo) DeleteScoped(ctx context.Context, caseID, commentID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.comments {
		if c.ID == commentID && c.InterventionID == caseID {
			r.comments = append(r.comments[:i], r.comments[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeCommentRepo) ListAll(ctx context.Context, caseID int64) ([]models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(caseID), nil
}

func (r *fakeCommentRepo) deleteCase(caseID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.comments[:0]
	for _, c := range r.comments {
		if c.InterventionID != caseID {
			kept = append(kept, c)
		}
	}
	r.comments = kept
}

func (r *fakeCommentRepo) content(id int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.comments {
		if c.ID == id {
			return c.Content
		}
	}
	return ""
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}
