package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang/mock/gomock"
	"github.com/sbilibin2017/gw-accounts/internal/models"
	"github.com/sbilibin2017/gw-accounts/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	normalUser = &models.User{ID: 1, Username: "ann", Email: "ann@example.com", IsActive: true, HashedPassword: "$2a$04$digest"}
	adminUser  = &models.User{ID: 2, Username: "root", Email: "root@example.com", IsActive: true, IsSuperuser: true}
)

func newRequest(method, target, body, id string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if id != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	return req
}

func decodeDetail(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body.Detail
}

func TestListUsersHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := NewMockUserLister(ctrl)

	tests := []struct {
		name         string
		query        string
		mockSetup    func()
		expectedCode int
		expectedLen  int
	}{
		{
			name:  "defaults",
			query: "",
			mockSetup: func() {
				mockSvc.EXPECT().List(gomock.Any(), 0, 0).Return([]models.User{*normalUser, *adminUser}, nil)
			},
			expectedCode: http.StatusOK,
			expectedLen:  2,
		},
		{
			name:  "paged",
			query: "?skip=1&limit=1",
			mockSetup: func() {
				mockSvc.EXPECT().List(gomock.Any(), 1, 1).Return([]models.User{*adminUser}, nil)
			},
			expectedCode: http.StatusOK,
			expectedLen:  1,
		},
		{
			name:  "empty page is an empty array",
			query: "?skip=50",
			mockSetup: func() {
				mockSvc.EXPECT().List(gomock.Any(), 50, 0).Return(nil, nil)
			},
			expectedCode: http.StatusOK,
			expectedLen:  0,
		},
		{name: "negative skip", query: "?skip=-1", mockSetup: func() {}, expectedCode: http.StatusUnprocessableEntity},
		{name: "zero limit", query: "?limit=0", mockSetup: func() {}, expectedCode: http.StatusUnprocessableEntity},
		{name: "non numeric limit", query: "?limit=ten", mockSetup: func() {}, expectedCode: http.StatusUnprocessableEntity},
		{
			name:  "store error",
			query: "",
			mockSetup: func() {
				mockSvc.EXPECT().List(gomock.Any(), 0, 0).Return(nil, errors.New("db error"))
			},
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()

			rr := httptest.NewRecorder()
			NewListUsersHandler(mockSvc)(rr, newRequest(http.MethodGet, "/users/"+tt.query, "", ""), adminUser)

			assert.Equal(t, tt.expectedCode, rr.Code)
			if tt.expectedCode == http.StatusOK {
				var got []map[string]any
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
				assert.Len(t, got, tt.expectedLen)
				for _, u := range got {
					assert.NotContains(t, u, "hashed_password")
					assert.NotContains(t, u, "password")
				}
			}
		})
	}
}

func TestReadMeHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	NewReadMeHandler()(rr, newRequest(http.MethodGet, "/users/me", "", ""), normalUser)

	assert.Equal(t, http.StatusOK, rr.Code)

	var got models.UserPublic
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, normalUser.Public(), got)
}

func TestReadUserHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := NewMockUserViewer(ctrl)

	tests := []struct {
		name         string
		id           string
		mockSetup    func()
		expectedCode int
		expectedID   int64
	}{
		{
			name: "own record",
			id:   "1",
			mockSetup: func() {
				mockSvc.EXPECT().GetForViewer(gomock.Any(), normalUser, int64(1)).Return(normalUser, nil)
			},
			expectedCode: http.StatusOK,
			expectedID:   1,
		},
		{
			name: "someone else's record",
			id:   "2",
			mockSetup: func() {
				mockSvc.EXPECT().GetForViewer(gomock.Any(), normalUser, int64(2)).Return(nil, services.ErrForbidden)
			},
			expectedCode: http.StatusForbidden,
		},
		{
			name: "missing",
			id:   "99",
			mockSetup: func() {
				mockSvc.EXPECT().GetForViewer(gomock.Any(), normalUser, int64(99)).Return(nil, services.ErrUserNotFound)
			},
			expectedCode: http.StatusNotFound,
		},
		{name: "bad id", id: "abc", mockSetup: func() {}, expectedCode: http.StatusUnprocessableEntity},
		{name: "zero id", id: "0", mockSetup: func() {}, expectedCode: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()

			rr := httptest.NewRecorder()
			NewReadUserHandler(mockSvc)(rr, newRequest(http.MethodGet, "/users/"+tt.id, "", tt.id), normalUser)

			assert.Equal(t, tt.expectedCode, rr.Code)
			if tt.expectedCode == http.StatusOK {
				var got models.UserPublic
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
				assert.Equal(t, tt.expectedID, got.ID)
			}
		})
	}
}

func TestCreateUserHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := NewMockUserCreator(ctrl)

	tests := []struct {
		name           string
		body           string
		mockSetup      func()
		expectedCode   int
		expectedDetail string
	}{
		{
			name: "success",
			body: `{"username":"newuser","email":"newuser@example.com","password":"password123"}`,
			mockSetup: func() {
				mockSvc.EXPECT().
					Create(gomock.Any(), models.UserCreate{Username: "newuser", Email: "newuser@example.com", Password: "password123"}).
					Return(&models.User{ID: 3, Username: "newuser", Email: "newuser@example.com", IsActive: true, HashedPassword: "digest"}, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "duplicate",
			body: `{"username":"newuser","email":"newuser@example.com","password":"password123"}`,
			mockSetup: func() {
				mockSvc.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, services.ErrUserAlreadyExists)
			},
			expectedCode:   http.StatusBadRequest,
			expectedDetail: "The user with the given email or username already exists.",
		},
		{
			name:           "missing password",
			body:           `{"username":"newuser","email":"newuser@example.com"}`,
			mockSetup:      func() {},
			expectedCode:   http.StatusUnprocessableEntity,
			expectedDetail: `validation failed: password: failed on "required"`,
		},
		{
			name:         "password too long",
			body:         `{"username":"u","email":"e","password":"` + strings.Repeat("x", 73) + `"}`,
			mockSetup:    func() {},
			expectedCode: http.StatusUnprocessableEntity,
		},
		{
			name:         "malformed json",
			body:         `{"username":`,
			mockSetup:    func() {},
			expectedCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()

			rr := httptest.NewRecorder()
			NewCreateUserHandler(mockSvc)(rr, newRequest(http.MethodPost, "/users/", tt.body, ""), adminUser)

			assert.Equal(t, tt.expectedCode, rr.Code)
			if tt.expectedCode == http.StatusOK {
				var got map[string]any
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
				assert.EqualValues(t, 3, got["id"])
				assert.Equal(t, "newuser@example.com", got["email"])
				assert.NotContains(t, got, "password")
				assert.NotContains(t, got, "hashed_password")
			}
			if tt.expectedDetail != "" {
				assert.Equal(t, tt.expectedDetail, decodeDetail(t, rr))
			}
		})
	}
}

func TestUpdateMeHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := NewMockMeUpdater(ctrl)
	email := "new@example.com"

	tests := []struct {
		name         string
		body         string
		mockSetup    func()
		expectedCode int
	}{
		{
			name: "success",
			body: `{"email":"new@example.com"}`,
			mockSetup: func() {
				mockSvc.EXPECT().
					UpdateMe(gomock.Any(), normalUser, models.UserUpdateMe{Email: &email}).
					Return(&models.User{ID: 1, Email: email, IsActive: true}, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "email taken",
			body: `{"email":"new@example.com"}`,
			mockSetup: func() {
				mockSvc.EXPECT().UpdateMe(gomock.Any(), normalUser, gomock.Any()).Return(nil, services.ErrUserAlreadyExists)
			},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "empty username",
			body:         `{"username":""}`,
			mockSetup:    func() {},
			expectedCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()

			rr := httptest.NewRecorder()
			NewUpdateMeHandler(mockSvc)(rr, newRequest(http.MethodPatch, "/users/me", tt.body, ""), normalUser)

			assert.Equal(t, tt.expectedCode, rr.Code)
		})
	}
}

func TestUpdatePasswordHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := NewMockPasswordChanger(ctrl)

	tests := []struct {
		name           string
		body           string
		mockSetup      func()
		expectedCode   int
		expectedDetail string
	}{
		{
			name: "success",
			body: `{"current_password":"old","new_password":"new"}`,
			mockSetup: func() {
				mockSvc.EXPECT().ChangePassword(gomock.Any(), normalUser, "old", "new").Return(nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "wrong current password",
			body: `{"current_password":"bad","new_password":"new"}`,
			mockSetup: func() {
				mockSvc.EXPECT().ChangePassword(gomock.Any(), normalUser, "bad", "new").Return(services.ErrWrongPassword)
			},
			expectedCode:   http.StatusBadRequest,
			expectedDetail: "Incorrect password.",
		},
		{
			name: "same password",
			body: `{"current_password":"old","new_password":"old"}`,
			mockSetup: func() {
				mockSvc.EXPECT().ChangePassword(gomock.Any(), normalUser, "old", "old").Return(services.ErrSamePassword)
			},
			expectedCode:   http.StatusBadRequest,
			expectedDetail: "New password cannot be the same as the current one.",
		},
		{
			name:         "missing new password",
			body:         `{"current_password":"old"}`,
			mockSetup:    func() {},
			expectedCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()

			rr := httptest.NewRecorder()
			NewUpdatePasswordHandler(mockSvc)(rr, newRequest(http.MethodPatch, "/users/me/password", tt.body, ""), normalUser)

			assert.Equal(t, tt.expectedCode, rr.Code)
			if tt.expectedDetail != "" {
				assert.Equal(t, tt.expectedDetail, decodeDetail(t, rr))
			}
		})
	}
}

func TestUpdateUserHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := NewMockUserUpdater(ctrl)
	inactive := false

	tests := []struct {
		name         string
		id           string
		body         string
		mockSetup    func()
		expectedCode int
	}{
		{
			name: "deactivate",
			id:   "1",
			body: `{"is_active":false}`,
			mockSetup: func() {
				mockSvc.EXPECT().
					Update(gomock.Any(), int64(1), models.UserUpdate{IsActive: &inactive}).
					Return(&models.User{ID: 1, IsActive: false}, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "null clears first name, absent keeps last name",
			id:   "1",
			body: `{"first_name":null}`,
			mockSetup: func() {
				mockSvc.EXPECT().
					Update(gomock.Any(), int64(1), models.UserUpdate{FirstName: models.Null[string]()}).
					Return(&models.User{ID: 1}, nil)
			},
			expectedCode: http.StatusOK,
		},
		{name: "name too long", id: "1", body: `{"last_name":"` + strings.Repeat("x", 256) + `"}`, mockSetup: func() {}, expectedCode: http.StatusUnprocessableEntity},
		{
			name: "missing user",
			id:   "99",
			body: `{"is_active":false}`,
			mockSetup: func() {
				mockSvc.EXPECT().Update(gomock.Any(), int64(99), gomock.Any()).Return(nil, services.ErrUserNotFound)
			},
			expectedCode: http.StatusNotFound,
		},
		{
			name: "duplicate username",
			id:   "1",
			body: `{"username":"root"}`,
			mockSetup: func() {
				mockSvc.EXPECT().Update(gomock.Any(), int64(1), gomock.Any()).Return(nil, services.ErrUserAlreadyExists)
			},
			expectedCode: http.StatusBadRequest,
		},
		{name: "bad id", id: "x", body: `{}`, mockSetup: func() {}, expectedCode: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()

			rr := httptest.NewRecorder()
			NewUpdateUserHandler(mockSvc)(rr, newRequest(http.MethodPatch, "/users/"+tt.id, tt.body, tt.id), adminUser)

			assert.Equal(t, tt.expectedCode, rr.Code)
		})
	}
}

func TestDeleteUserHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := NewMockUserDeleter(ctrl)

	tests := []struct {
		name         string
		id           string
		mockSetup    func()
		expectedCode int
	}{
		{
			name: "deleted",
			id:   "1",
			mockSetup: func() {
				mockSvc.EXPECT().Delete(gomock.Any(), int64(1)).Return(nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "missing",
			id:   "99",
			mockSetup: func() {
				mockSvc.EXPECT().Delete(gomock.Any(), int64(99)).Return(services.ErrUserNotFound)
			},
			expectedCode: http.StatusNotFound,
		},
		{name: "bad id", id: "-3", mockSetup: func() {}, expectedCode: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()

			rr := httptest.NewRecorder()
			NewDeleteUserHandler(mockSvc)(rr, newRequest(http.MethodDelete, "/users/"+tt.id, "", tt.id), adminUser)

			assert.Equal(t, tt.expectedCode, rr.Code)
			if tt.expectedCode == http.StatusOK {
				var got models.Message
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
				assert.Equal(t, "User deleted successfully.", got.Message)
			}
		})
	}
}
