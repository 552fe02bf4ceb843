package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lektorek-app/lektorek-api/internal/models"
	appErrors "github.com/lektorek-app/lektorek-api/pkg/errors"
)

type mockAvailabilityRepo struct {
	blocks     map[string][]models.AvailabilityBlock
	replaceErr error
}

func (m *mockAvailabilityRepo) ReplaceWeek(ctx context.Context, teacherID string, blocks []models.AvailabilityBlock) ([]string, error) {
	if m.replaceErr != nil {
		return nil, m.replaceErr
	}
	if m.blocks == nil {
		m.blocks = map[string][]models.AvailabilityBlock{}
	}
	ids := make([]string, 0, len(blocks))
	for i := range blocks {
		blocks[i].ID = "blk-" + blocks[i].StartTime
		blocks[i].TeacherID = teacherID
		blocks[i].Available = true
		ids = append(ids, blocks[i].ID)
	}
	m.blocks[teacherID] = blocks
	return ids, nil
}

func (m *mockAvailabilityRepo) ListByTeacher(ctx context.Context, teacherID string) ([]models.AvailabilityBlock, error) {
	return m.blocks[teacherID], nil
}

func (m *mockAvailabilityRepo) DeleteBlock(ctx context.Context, teacherID, blockID string) error {
	for i, b := range m.blocks[teacherID] {
		if b.ID == blockID {
			m.blocks[teacherID] = append(m.blocks[teacherID][:i], m.blocks[teacherID][i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type mockOverrideRepo struct {
	stored map[string]bool
}

func (m *mockOverrideRepo) Upsert(ctx context.Context, teacherID, date string, isFree bool) (bool, error) {
	if m.stored == nil {
		m.stored = map[string]bool{}
	}
	key := teacherID + "|" + date
	if current, ok := m.stored[key]; ok && current == isFree {
		return false, nil
	}
	m.stored[key] = isFree
	return true, nil
}

func (m *mockOverrideRepo) ListRange(ctx context.Context, teacherID, from, to string) ([]models.AvailabilityOverride, error) {
	var out []models.AvailabilityOverride
	for key, isFree := range m.stored {
		out = append(out, models.AvailabilityOverride{
			TeacherID: teacherID,
			Date:      key[len(teacherID)+1:],
			IsFree:    isFree,
		})
	}
	return out, nil
}

type mockBookedSlots struct {
	taken map[string][]string
}

func (m *mockBookedSlots) BookedSlots(ctx context.Context, teacherID, from, to string) (map[string][]string, error) {
	return m.taken, nil
}

type mockUserFinder struct {
	users map[string]*models.User
}

func (m *mockUserFinder) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type mockCache struct {
	gets, sets int
	deletes    []string
	cached     *models.TeacherAvailabilityView
}

func (m *mockCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.gets++
	if m.cached != nil {
		if view, ok := dest.(*models.TeacherAvailabilityView); ok {
			*view = *m.cached
			return nil
		}
	}
	return appErrors.ErrCacheMiss
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.sets++
	return nil
}

func (m *mockCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deletes = append(m.deletes, pattern)
	return nil
}

type availabilityFixture struct {
	svc       *AvailabilityService
	repo      *mockAvailabilityRepo
	overrides *mockOverrideRepo
	booked    *mockBookedSlots
	cache     *mockCache
}

func newAvailabilityFixture() *availabilityFixture {
	f := &availabilityFixture{
		repo:      &mockAvailabilityRepo{},
		overrides: &mockOverrideRepo{},
		booked:    &mockBookedSlots{taken: map[string][]string{}},
		cache:     &mockCache{},
	}
	users := &mockUserFinder{users: map[string]*models.User{
		"teacher-1": {ID: "teacher-1", FullName: "Teacher One", Role: models.RoleTeacher},
		"student-1": {ID: "student-1", FullName: "Student One", Role: models.RoleUser},
	}}
	f.svc = NewAvailabilityService(f.repo, f.overrides, users, f.booked, f.cache, time.Minute, nil, nil, nil)
	return f
}

func TestSetWeeklyAvailabilityReplacesAndInvalidates(t *testing.T) {
	f := newAvailabilityFixture()

	ids, err := f.svc.SetWeeklyAvailability(context.Background(), teacher, SetAvailabilityRequest{
		Blocks: []BlockRequest{
			{DayOfWeek: 0, StartTime: "9:00", EndTime: "10:00", Mode: models.ModeOnline},
			{DayOfWeek: 2, StartTime: "14:00", EndTime: "15:00", Mode: models.ModeBoth},
		},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Equal(t, "09:00", f.repo.blocks["teacher-1"][0].StartTime)
	assert.Contains(t, f.cache.deletes, "availability:teacher:teacher-1")
}

func TestSetWeeklyAvailabilityRejectsNonTeacher(t *testing.T) {
	f := newAvailabilityFixture()

	_, err := f.svc.SetWeeklyAvailability(context.Background(), student, SetAvailabilityRequest{})
	var typed *appErrors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, appErrors.ErrForbidden.Code, typed.Code)
}

func TestSetWeeklyAvailabilityRejectsInvertedBlock(t *testing.T) {
	f := newAvailabilityFixture()

	_, err := f.svc.SetWeeklyAvailability(context.Background(), teacher, SetAvailabilityRequest{
		Blocks: []BlockRequest{{DayOfWeek: 0, StartTime: "11:00", EndTime: "10:00", Mode: models.ModeOnline}},
	})
	var typed *appErrors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, appErrors.ErrValidation.Code, typed.Code)
}

func TestSetWeeklyAvailabilityRejectsDuplicateBlocks(t *testing.T) {
	f := newAvailabilityFixture()

	block := BlockRequest{DayOfWeek: 0, StartTime: "09:00", EndTime: "10:00", Mode: models.ModeOnline}
	_, err := f.svc.SetWeeklyAvailability(context.Background(), teacher, SetAvailabilityRequest{
		Blocks: []BlockRequest{block, block},
	})
	var typed *appErrors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, appErrors.ErrValidation.Code, typed.Code)
}

func TestSetDayOverrideIdempotent(t *testing.T) {
	f := newAvailabilityFixture()

	first, err := f.svc.SetDayOverride(context.Background(), teacher, DayOverrideRequest{Date: "2026-09-07", IsFree: true})
	require.NoError(t, err)
	assert.True(t, first.Changed)

	second, err := f.svc.SetDayOverride(context.Background(), teacher, DayOverrideRequest{Date: "2026-09-07", IsFree: true})
	require.NoError(t, err)
	assert.False(t, second.Changed)

	// Only the effective change invalidates the cache.
	assert.Len(t, f.cache.deletes, 1)
}

func TestSetDayOverrideRejectsBadDate(t *testing.T) {
	f := newAvailabilityFixture()

	_, err := f.svc.SetDayOverride(context.Background(), teacher, DayOverrideRequest{Date: "07.09.2026", IsFree: true})
	var typed *appErrors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, appErrors.ErrValidation.Code, typed.Code)
}

func TestGetTeacherAvailabilityBuildsGrid(t *testing.T) {
	f := newAvailabilityFixture()
	f.repo.blocks = map[string][]models.AvailabilityBlock{
		"teacher-1": {
			{ID: "b1", TeacherID: "teacher-1", DayOfWeek: 0, StartTime: "09:00", EndTime: "10:00", Mode: models.ModeOnline, Available: true},
		},
	}

	view, err := f.svc.GetTeacherAvailability(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, "Teacher One", view.TeacherName)
	assert.Len(t, view.TimeSlots, 24)

	monday := view.Availability[0]
	require.NotNil(t, monday)
	assert.Equal(t, models.SlotInfo{Available: true, Mode: models.ModeOnline}, monday["09:00 - 09:30"])
	assert.Equal(t, models.SlotInfo{Available: true, Mode: models.ModeOnline}, monday["09:30 - 10:00"])
	_, outside := monday["10:00 - 10:30"]
	assert.False(t, outside)
	assert.Equal(t, 1, f.cache.sets)
}

func TestGetTeacherAvailabilityOverlaysBookedAndBlocked(t *testing.T) {
	f := newAvailabilityFixture()
	f.repo.blocks = map[string][]models.AvailabilityBlock{
		"teacher-1": {
			{ID: "b1", TeacherID: "teacher-1", DayOfWeek: 0, StartTime: "09:00", EndTime: "12:00", Mode: models.ModeBoth, Available: true},
		},
	}
	f.booked.taken["2026-09-07"] = []string{"09:00 - 09:30"}
	_, err := f.svc.SetDayOverride(context.Background(), teacher, DayOverrideRequest{Date: "2026-09-08", IsFree: true})
	require.NoError(t, err)

	view, err := f.svc.GetTeacherAvailability(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00 - 09:30"}, view.BookedSlots["2026-09-07"])
	assert.Equal(t, []string{"2026-09-08"}, view.BlockedDates)
}

func TestGetTeacherAvailabilityBookedSlotsFreshOnCacheHit(t *testing.T) {
	f := newAvailabilityFixture()
	f.cache.cached = &models.TeacherAvailabilityView{
		TeacherID:   "teacher-1",
		TeacherName: "Teacher One",
	}
	f.booked.taken["2026-09-07"] = []string{"10:00 - 10:30"}

	view, err := f.svc.GetTeacherAvailability(context.Background(), "teacher-1")
	require.NoError(t, err)
	// The cached weekly grid is reused but the booked layer is current.
	assert.Zero(t, f.cache.sets)
	assert.Equal(t, []string{"10:00 - 10:30"}, view.BookedSlots["2026-09-07"])
}

func TestGetTeacherAvailabilityRejectsNonTeacher(t *testing.T) {
	f := newAvailabilityFixture()

	_, err := f.svc.GetTeacherAvailability(context.Background(), "student-1")
	var typed *appErrors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, appErrors.ErrNotFound.Code, typed.Code)
}
