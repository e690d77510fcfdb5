package access

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"omnidesk/internal/db"
	"omnidesk/internal/model"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetEmployee(ctx context.Context, userID string) (*model.Employee, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Employee), args.Error(1)
}

func (m *mockStore) UpsertEmployee(ctx context.Context, e *model.Employee) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockStore) BlockEmployee(ctx context.Context, userID string, blocked bool, reason string) error {
	return m.Called(ctx, userID, blocked, reason).Error(0)
}

func (m *mockStore) ListEmployees(ctx context.Context) ([]model.Employee, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Employee), args.Error(1)
}

func (m *mockStore) RemoveEmployee(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func TestCanAccessPage(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	store.On("GetEmployee", ctx, "admin").Return(&model.Employee{UserID: "admin", Role: model.RoleAdmin}, nil)
	store.On("GetEmployee", ctx, "emp").Return(&model.Employee{UserID: "emp", Role: model.RoleEmployee, Pages: []model.Page{model.PageCalendar}}, nil)
	store.On("GetEmployee", ctx, "blocked").Return(&model.Employee{UserID: "blocked", Role: model.RoleAdmin, IsBlocked: true, BlockReason: "fired"}, nil)
	store.On("GetEmployee", ctx, "ghost").Return(nil, db.ErrNotFound)
	store.On("GetEmployee", ctx, "broken").Return(nil, errors.New("disk on fire"))

	svc := NewService(store, []string{"owner"}, zerolog.Nop())

	tests := []struct {
		user string
		page model.Page
		want bool
	}{
		{"owner", model.PageBilling, true},
		{"admin", model.PageSettings, true},
		{"emp", model.PageCalendar, true},
		{"emp", model.PageSettings, false},
		{"blocked", model.PageCalendar, false},
		{"ghost", model.PageCalendar, false},
		{"", model.PageCalendar, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.user, tt.page), func(t *testing.T) {
			ok, err := svc.CanAccessPage(ctx, tt.user, tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	_, err := svc.CanAccessPage(ctx, "broken", model.PageCalendar)
	assert.Error(t, err)
}

func TestRequirePage(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	store.On("GetEmployee", ctx, "blocked").Return(&model.Employee{UserID: "blocked", IsBlocked: true, BlockReason: "fired"}, nil)
	store.On("GetEmployee", ctx, "emp").Return(&model.Employee{UserID: "emp", Role: model.RoleEmployee}, nil)
	store.On("GetEmployee", ctx, "broken").Return(nil, errors.New("disk on fire"))

	svc := NewService(store, nil, zerolog.Nop())

	err := svc.RequirePage(ctx, "blocked", model.PageCalendar)
	require.Error(t, err)
	assert.True(t, IsAccessDenied(err))
	assert.Equal(t, "access blocked: fired", err.Error())

	err = svc.RequirePage(ctx, "emp", model.PageSettings)
	assert.True(t, IsAccessDenied(err))
	assert.Equal(t, "no access to settings", err.Error())

	err = svc.RequirePage(ctx, "broken", model.PageCalendar)
	require.Error(t, err)
	assert.False(t, IsAccessDenied(err))
}

func TestGrantPages(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	store.On("GetEmployee", ctx, "new").Return(nil, db.ErrNotFound)
	store.On("UpsertEmployee", ctx, mock.MatchedBy(func(e *model.Employee) bool {
		return e.UserID == "new" && e.Role == model.RoleEmployee && len(e.Pages) == 2
	})).Return(nil)

	svc := NewService(store, nil, zerolog.Nop())
	require.NoError(t, svc.GrantPages(ctx, "new", []model.Page{model.PageCalendar, model.PageChats}))
	store.AssertExpectations(t)
}

func TestBlock(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	store.On("BlockEmployee", ctx, "emp", true, "spam").Return(nil)
	store.On("BlockEmployee", ctx, "emp", false, "").Return(nil)

	svc := NewService(store, []string{"owner"}, zerolog.Nop())
	require.NoError(t, svc.Block(ctx, "emp", "spam"))
	require.NoError(t, svc.Unblock(ctx, "emp"))
	assert.ErrorIs(t, svc.Block(ctx, "owner", "coup"), ErrInvalidEmployee)
	store.AssertExpectations(t)
}

func TestGrantPages_InvalidPage(t *testing.T) {
	svc := NewService(new(mockStore), nil, zerolog.Nop())

	err := svc.GrantPages(context.Background(), "emp", []model.Page{"reports"})
	assert.ErrorIs(t, err, ErrInvalidEmployee)
	assert.ErrorIs(t, svc.GrantPages(context.Background(), "", nil), ErrInvalidEmployee)
}

func TestSaveEmployee(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	store.On("GetEmployee", ctx, "emp").Return(&model.Employee{UserID: "emp", IsBlocked: true, BlockReason: "spam"}, nil)
	store.On("GetEmployee", ctx, "new").Return(nil, db.ErrNotFound)
	store.On("UpsertEmployee", ctx, mock.MatchedBy(func(e *model.Employee) bool {
		return e.UserID == "emp" && e.Role == model.RoleAdmin && e.IsBlocked && e.BlockReason == "spam"
	})).Return(nil)
	store.On("UpsertEmployee", ctx, mock.MatchedBy(func(e *model.Employee) bool {
		return e.UserID == "new" && e.Role == model.RoleEmployee && !e.IsBlocked
	})).Return(nil)

	svc := NewService(store, nil, zerolog.Nop())
	require.NoError(t, svc.SaveEmployee(ctx, &model.Employee{UserID: "emp", Name: "Anna", Role: model.RoleAdmin}))
	require.NoError(t, svc.SaveEmployee(ctx, &model.Employee{UserID: "new", Pages: []model.Page{model.PageCalendar}}))

	assert.ErrorIs(t, svc.SaveEmployee(ctx, &model.Employee{UserID: "x", Role: "boss"}), ErrInvalidEmployee)
	assert.ErrorIs(t, svc.SaveEmployee(ctx, &model.Employee{}), ErrInvalidEmployee)
	store.AssertExpectations(t)
}

func TestListAndRemoveEmployees(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	store.On("ListEmployees", ctx).Return(nil, nil).Once()
	store.On("RemoveEmployee", ctx, "ghost").Return(db.ErrNotFound)
	store.On("RemoveEmployee", ctx, "emp").Return(nil)

	svc := NewService(store, nil, zerolog.Nop())
	list, err := svc.ListEmployees(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	require.NoError(t, svc.RemoveEmployee(ctx, "emp"))
	assert.ErrorIs(t, svc.RemoveEmployee(ctx, "ghost"), db.ErrNotFound)
	store.AssertExpectations(t)
}
