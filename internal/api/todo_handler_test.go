package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cirocosta/todorest/internal/authz"
	"github.com/cirocosta/todorest/internal/identity"
	"github.com/cirocosta/todorest/internal/model"
	"github.com/cirocosta/todorest/internal/query"
	"github.com/cirocosta/todorest/internal/repository"
	"github.com/cirocosta/todorest/internal/validation"
)

var (
	requester = identity.Identity{ID: 1, Username: "username1"}
	created   = time.Date(2022, 1, 2, 12, 0, 0, 0, time.UTC)
)

func ptr[T any](v T) *T { return &v }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func todo(id int64, name string, done bool) model.Todo {
	return model.Todo{
		ID:          id,
		Name:        name,
		DateCreated: created,
		Done:        done,
		Owner:       model.Owner{ID: requester.ID, Username: requester.Username},
	}
}

// mockTodoService is a mock implementation of TodoService
type mockTodoService struct {
	mock.Mock
}

func (m *mockTodoService) ListTodos(ctx context.Context, who identity.Identity, params query.Params) ([]model.Todo, error) {
	args := m.Called(ctx, who, params)
	return args.Get(0).([]model.Todo), args.Error(1)
}

func (m *mockTodoService) GetTodo(ctx context.Context, who identity.Identity, id int64) (model.Todo, error) {
	args := m.Called(ctx, who, id)
	return args.Get(0).(model.Todo), args.Error(1)
}

func (m *mockTodoService) CreateTodo(ctx context.Context, who identity.Identity, req model.CreateTodoRequest) (model.Todo, error) {
	args := m.Called(ctx, who, req)
	return args.Get(0).(model.Todo), args.Error(1)
}

// UpdateTodo resolves the todo through the "UpdateTodo" expectation, then
// decodes the payload and hands it to the "applyUpdate" expectation
func (m *mockTodoService) UpdateTodo(ctx context.Context, who identity.Identity, id int64, decode func() (model.UpdateTodoRequest, error)) (model.Todo, error) {
	if err := m.Called(ctx, who, id).Error(0); err != nil {
		return model.Todo{}, err
	}

	req, err := decode()
	if err != nil {
		return model.Todo{}, err
	}

	args := m.MethodCalled("applyUpdate", req)
	return args.Get(0).(model.Todo), args.Error(1)
}

func (m *mockTodoService) DeleteTodo(ctx context.Context, who identity.Identity, id int64) error {
	args := m.Called(ctx, who, id)
	return args.Error(0)
}

// decodeError asserts rec holds an ErrorResponse and returns it
func decodeError(t *testing.T, rec *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()

	var errResp model.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	return errResp
}

func TestListTodos(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		query      string
		setupMock  func(m *mockTodoService)
		wantStatus int
		wantTodos  []model.Todo
		wantErr    string
		wantFields map[string][]string
	}{
		"success": {
			setupMock: func(m *mockTodoService) {
				todos := []model.Todo{todo(1, "n1", false), todo(2, "n2", true)}
				m.On("ListTodos", mock.Anything, requester, query.Params{}).Return(todos, nil)
			},
			wantStatus: http.StatusOK,
			wantTodos:  []model.Todo{todo(1, "n1", false), todo(2, "n2", true)},
		},
		"empty list is an array": {
			setupMock: func(m *mockTodoService) {
				m.On("ListTodos", mock.Anything, requester, query.Params{}).Return([]model.Todo(nil), nil)
			},
			wantStatus: http.StatusOK,
			wantTodos:  []model.Todo{},
		},
		"filters and ordering": {
			query: "?done=true&ordering=-name&owner=2",
			setupMock: func(m *mockTodoService) {
				params := query.Params{
					Done:     ptr(true),
					Ordering: []query.OrderTerm{{Field: query.OrderByName, Descending: true}},
				}
				m.On("ListTodos", mock.Anything, requester, params).Return([]model.Todo{todo(2, "n2", true)}, nil)
			},
			wantStatus: http.StatusOK,
			wantTodos:  []model.Todo{todo(2, "n2", true)},
		},
		"invalid filter": {
			query:      "?done=maybe",
			setupMock:  func(m *mockTodoService) {},
			wantStatus: http.StatusBadRequest,
			wantErr:    "validation failed",
			wantFields: map[string][]string{"done": {`"maybe" is not a valid boolean`}},
		},
		"unknown ordering": {
			query:      "?ordering=owner",
			setupMock:  func(m *mockTodoService) {},
			wantStatus: http.StatusBadRequest,
			wantErr:    "validation failed",
			wantFields: map[string][]string{"ordering": {`cannot order by "owner", expected one of name, date_created`}},
		},
		"service error": {
			setupMock: func(m *mockTodoService) {
				m.On("ListTodos", mock.Anything, requester, query.Params{}).Return([]model.Todo{}, errors.New("database error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantErr:    "error listing todos",
		},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mockService := new(mockTodoService)
			tc.setupMock(mockService)

			handler := NewTodoHandler(mockService, discardLogger())
			req := httptest.NewRequest(http.MethodGet, "/todos"+tc.query, nil)
			rec := httptest.NewRecorder()

			handler.ListTodos(rec, req, requester)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			mockService.AssertExpectations(t)

			if tc.wantErr != "" {
				errResp := decodeError(t, rec)
				assert.Equal(t, tc.wantErr, errResp.Error)
				assert.Equal(t, tc.wantFields, errResp.Fields)
				return
			}

			assert.True(t, strings.HasPrefix(rec.Body.String(), "["), "list must be a bare array: %s", rec.Body.String())

			var gotTodos []model.Todo
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gotTodos))

			if diff := cmp.Diff(tc.wantTodos, gotTodos); diff != "" {
				t.Errorf("response mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetTodo(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		todoID     string
		setupMock  func(m *mockTodoService)
		wantStatus int
		wantTodo   model.Todo
		wantErr    string
	}{
		"success": {
			todoID: "123",
			setupMock: func(m *mockTodoService) {
				m.On("GetTodo", mock.Anything, requester, int64(123)).Return(todo(123, "Test Todo", false), nil)
			},
			wantStatus: http.StatusOK,
			wantTodo:   todo(123, "Test Todo", false),
		},
		"not found": {
			todoID: "999",
			setupMock: func(m *mockTodoService) {
				m.On("GetTodo", mock.Anything, requester, int64(999)).Return(model.Todo{}, repository.ErrTodoNotFound{ID: 999})
			},
			wantStatus: http.StatusNotFound,
			wantErr:    "todo not found",
		},
		"not the owner": {
			todoID: "4",
			setupMock: func(m *mockTodoService) {
				m.On("GetTodo", mock.Anything, requester, int64(4)).Return(model.Todo{}, authz.ErrForbidden)
			},
			wantStatus: http.StatusForbidden,
			wantErr:    "you do not have permission to perform this action",
		},
		"non numeric id": {
			todoID:     "abc",
			setupMock:  func(m *mockTodoService) {},
			wantStatus: http.StatusNotFound,
			wantErr:    "todo not found",
		},
		"service error": {
			todoID: "123",
			setupMock: func(m *mockTodoService) {
				m.On("GetTodo", mock.Anything, requester, int64(123)).Return(model.Todo{}, errors.New("database error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantErr:    "error getting todo",
		},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mockService := new(mockTodoService)
			tc.setupMock(mockService)

			handler := NewTodoHandler(mockService, discardLogger())

			req := httptest.NewRequest(http.MethodGet, "/todos/"+tc.todoID, nil)
			req.SetPathValue("id", tc.todoID)
			rec := httptest.NewRecorder()

			handler.GetTodo(rec, req, requester)

			assert.Equal(t, tc.wantStatus, rec.Code)
			mockService.AssertExpectations(t)

			if tc.wantErr != "" {
				assert.Equal(t, tc.wantErr, decodeError(t, rec).Error)
				return
			}

			var gotTodo model.Todo
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gotTodo))

			if diff := cmp.Diff(tc.wantTodo, gotTodo); diff != "" {
				t.Errorf("todo mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCreateTodo(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		requestBody string
		setupMock   func(m *mockTodoService)
		wantStatus  int
		wantTodo    model.Todo
		wantErr     string
		wantFields  map[string][]string
	}{
		"success": {
			requestBody: `{"name": "New Todo"}`,
			setupMock: func(m *mockTodoService) {
				m.On("CreateTodo", mock.Anything, requester, model.CreateTodoRequest{Name: "New Todo"}).
					Return(todo(7, "New Todo", false), nil)
			},
			wantStatus: http.StatusCreated,
			wantTodo:   todo(7, "New Todo", false),
		},
		"owner in payload is ignored": {
			requestBody: `{"name": "mine", "done": true, "owner": {"id": 2, "username": "username2"}}`,
			setupMock: func(m *mockTodoService) {
				m.On("CreateTodo", mock.Anything, requester, model.CreateTodoRequest{Name: "mine", Done: true}).
					Return(todo(8, "mine", true), nil)
			},
			wantStatus: http.StatusCreated,
			wantTodo:   todo(8, "mine", true),
		},
		"invalid json": {
			requestBody: `{invalid json`,
			setupMock:   func(m *mockTodoService) {},
			wantStatus:  http.StatusBadRequest,
			wantErr:     "validation failed",
			wantFields:  map[string][]string{validation.NonFieldErrors: {"Request body is not valid JSON."}},
		},
		"missing name": {
			requestBody: `{"done": true}`,
			setupMock:   func(m *mockTodoService) {},
			wantStatus:  http.StatusBadRequest,
			wantErr:     "validation failed",
			wantFields:  map[string][]string{"name": {"This field is required."}},
		},
		"blank name rejected by service": {
			requestBody: `{"name": "   "}`,
			setupMock: func(m *mockTodoService) {
				m.On("CreateTodo", mock.Anything, requester, model.CreateTodoRequest{Name: "   "}).
					Return(model.Todo{}, validation.Errors{"name": {"This field may not be blank."}})
			},
			wantStatus: http.StatusBadRequest,
			wantErr:    "validation failed",
			wantFields: map[string][]string{"name": {"This field may not be blank."}},
		},
		"service error": {
			requestBody: `{"name": "New Todo"}`,
			setupMock: func(m *mockTodoService) {
				m.On("CreateTodo", mock.Anything, requester, model.CreateTodoRequest{Name: "New Todo"}).
					Return(model.Todo{}, errors.New("database error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantErr:    "error creating todo",
		},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mockService := new(mockTodoService)
			tc.setupMock(mockService)

			handler := NewTodoHandler(mockService, discardLogger())

			req := httptest.NewRequest(http.MethodPost, "/todos", strings.NewReader(tc.requestBody))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			handler.CreateTodo(rec, req, requester)

			assert.Equal(t, tc.wantStatus, rec.Code)
			mockService.AssertExpectations(t)

			if tc.wantErr != "" {
				errResp := decodeError(t, rec)
				assert.Equal(t, tc.wantErr, errResp.Error)
				assert.Equal(t, tc.wantFields, errResp.Fields)
				return
			}

			var gotTodo model.Todo
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gotTodo))

			if diff := cmp.Diff(tc.wantTodo, gotTodo); diff != "" {
				t.Errorf("todo mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUpdateTodo(t *testing.T) {
	t.Parallel()

	found := func(id int64) func(m *mockTodoService) {
		return func(m *mockTodoService) {
			m.On("UpdateTodo", mock.Anything, requester, id).Return(nil)
		}
	}

	for name, tc := range map[string]struct {
		method      string
		todoID      string
		requestBody string
		setupMock   func(m *mockTodoService)
		wantStatus  int
		wantTodo    model.Todo
		wantErr     string
	}{
		"replace": {
			method:      http.MethodPut,
			todoID:      "123",
			requestBody: `{"name": "Updated Todo", "done": true}`,
			setupMock: func(m *mockTodoService) {
				found(123)(m)
				req := model.UpdateTodoRequest{Name: ptr("Updated Todo"), Done: ptr(true)}
				m.On("applyUpdate", req).Return(todo(123, "Updated Todo", true), nil)
			},
			wantStatus: http.StatusOK,
			wantTodo:   todo(123, "Updated Todo", true),
		},
		"replace without done": {
			method:      http.MethodPut,
			todoID:      "123",
			requestBody: `{"name": "Updated Todo"}`,
			setupMock: func(m *mockTodoService) {
				found(123)(m)
				req := model.UpdateTodoRequest{Name: ptr("Updated Todo")}
				m.On("applyUpdate", req).Return(todo(123, "Updated Todo", false), nil)
			},
			wantStatus: http.StatusOK,
			wantTodo:   todo(123, "Updated Todo", false),
		},
		"replace requires name": {
			method:      http.MethodPut,
			todoID:      "123",
			requestBody: `{"done": true}`,
			setupMock:   found(123),
			wantStatus:  http.StatusBadRequest,
			wantErr:     "validation failed",
		},
		"partial": {
			method:      http.MethodPatch,
			todoID:      "123",
			requestBody: `{"done": true}`,
			setupMock: func(m *mockTodoService) {
				found(123)(m)
				req := model.UpdateTodoRequest{Done: ptr(true)}
				m.On("applyUpdate", req).Return(todo(123, "n1", true), nil)
			},
			wantStatus: http.StatusOK,
			wantTodo:   todo(123, "n1", true),
		},
		"partial trims name": {
			method:      http.MethodPatch,
			todoID:      "123",
			requestBody: `{"name": "  spaced  "}`,
			setupMock: func(m *mockTodoService) {
				found(123)(m)
				req := model.UpdateTodoRequest{Name: ptr("spaced")}
				m.On("applyUpdate", req).Return(todo(123, "spaced", false), nil)
			},
			wantStatus: http.StatusOK,
			wantTodo:   todo(123, "spaced", false),
		},
		"wrong type": {
			method:      http.MethodPatch,
			todoID:      "123",
			requestBody: `{"done": "yes"}`,
			setupMock:   found(123),
			wantStatus:  http.StatusBadRequest,
			wantErr:     "validation failed",
		},
		"invalid json": {
			method:      http.MethodPut,
			todoID:      "123",
			requestBody: `{invalid json`,
			setupMock:   found(123),
			wantStatus:  http.StatusBadRequest,
			wantErr:     "validation failed",
		},
		"not found": {
			method:      http.MethodPut,
			todoID:      "999",
			requestBody: `{"name": "Updated Todo", "done": true}`,
			setupMock: func(m *mockTodoService) {
				m.On("UpdateTodo", mock.Anything, requester, int64(999)).Return(repository.ErrTodoNotFound{ID: 999})
			},
			wantStatus: http.StatusNotFound,
			wantErr:    "todo not found",
		},
		"not found with invalid body": {
			method:      http.MethodPut,
			todoID:      "999",
			requestBody: `{"name": ""}`,
			setupMock: func(m *mockTodoService) {
				m.On("UpdateTodo", mock.Anything, requester, int64(999)).Return(repository.ErrTodoNotFound{ID: 999})
			},
			wantStatus: http.StatusNotFound,
			wantErr:    "todo not found",
		},
		"not the owner": {
			method:      http.MethodPatch,
			todoID:      "4",
			requestBody: `{"name": "x"}`,
			setupMock: func(m *mockTodoService) {
				m.On("UpdateTodo", mock.Anything, requester, int64(4)).Return(authz.ErrForbidden)
			},
			wantStatus: http.StatusForbidden,
			wantErr:    "you do not have permission to perform this action",
		},
		"not the owner with invalid body": {
			method:      http.MethodPut,
			todoID:      "4",
			requestBody: `{"done": "yes"}`,
			setupMock: func(m *mockTodoService) {
				m.On("UpdateTodo", mock.Anything, requester, int64(4)).Return(authz.ErrForbidden)
			},
			wantStatus: http.StatusForbidden,
			wantErr:    "you do not have permission to perform this action",
		},
		"non numeric id": {
			method:      http.MethodPatch,
			todoID:      "1.5",
			requestBody: `{"done": true}`,
			setupMock:   func(m *mockTodoService) {},
			wantStatus:  http.StatusNotFound,
			wantErr:     "todo not found",
		},
		"service error": {
			method:      http.MethodPut,
			todoID:      "123",
			requestBody: `{"name": "Updated Todo", "done": true}`,
			setupMock: func(m *mockTodoService) {
				m.On("UpdateTodo", mock.Anything, requester, int64(123)).Return(errors.New("database error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantErr:    "error updating todo",
		},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mockService := new(mockTodoService)
			tc.setupMock(mockService)

			handler := NewTodoHandler(mockService, discardLogger())

			req := httptest.NewRequest(tc.method, "/todos/"+tc.todoID, strings.NewReader(tc.requestBody))
			req.Header.Set("Content-Type", "application/json")
			req.SetPathValue("id", tc.todoID)
			rec := httptest.NewRecorder()

			if tc.method == http.MethodPut {
				handler.ReplaceTodo(rec, req, requester)
			} else {
				handler.UpdateTodo(rec, req, requester)
			}

			assert.Equal(t, tc.wantStatus, rec.Code)
			mockService.AssertExpectations(t)

			if tc.wantErr != "" {
				assert.Equal(t, tc.wantErr, decodeError(t, rec).Error)
				return
			}

			var gotTodo model.Todo
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gotTodo))

			if diff := cmp.Diff(tc.wantTodo, gotTodo); diff != "" {
				t.Errorf("todo mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDeleteTodo(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		todoID     string
		setupMock  func(m *mockTodoService)
		wantStatus int
		wantErr    string
	}{
		"success": {
			todoID: "123",
			setupMock: func(m *mockTodoService) {
				m.On("DeleteTodo", mock.Anything, requester, int64(123)).Return(nil)
			},
			wantStatus: http.StatusNoContent,
		},
		"not found": {
			todoID: "999",
			setupMock: func(m *mockTodoService) {
				m.On("DeleteTodo", mock.Anything, requester, int64(999)).Return(repository.ErrTodoNotFound{ID: 999})
			},
			wantStatus: http.StatusNotFound,
			wantErr:    "todo not found",
		},
		"not the owner": {
			todoID: "4",
			setupMock: func(m *mockTodoService) {
				m.On("DeleteTodo", mock.Anything, requester, int64(4)).Return(authz.ErrForbidden)
			},
			wantStatus: http.StatusForbidden,
			wantErr:    "you do not have permission to perform this action",
		},
		"negative id": {
			todoID:     "-1",
			setupMock:  func(m *mockTodoService) {},
			wantStatus: http.StatusNotFound,
			wantErr:    "todo not found",
		},
		"service error": {
			todoID: "123",
			setupMock: func(m *mockTodoService) {
				m.On("DeleteTodo", mock.Anything, requester, int64(123)).Return(errors.New("database error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantErr:    "error deleting todo",
		},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mockService := new(mockTodoService)
			tc.setupMock(mockService)

			handler := NewTodoHandler(mockService, discardLogger())

			req := httptest.NewRequest(http.MethodDelete, "/todos/"+tc.todoID, nil)
			req.SetPathValue("id", tc.todoID)
			rec := httptest.NewRecorder()

			handler.DeleteTodo(rec, req, requester)

			assert.Equal(t, tc.wantStatus, rec.Code)
			mockService.AssertExpectations(t)

			if tc.wantErr != "" {
				assert.Equal(t, tc.wantErr, decodeError(t, rec).Error)
			} else if rec.Body.Len() > 0 {
				t.Errorf("expected empty response body for success case, got: %s", rec.Body.String())
			}
		})
	}
}

func TestCreateTodoBodyTooLarge(t *testing.T) {
	t.Parallel()

	mockService := new(mockTodoService)
	handler := NewTodoHandler(mockService, discardLogger())

	body := `{"name": "` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/todos", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.CreateTodo(rec, req, requester)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	mockService.AssertNotCalled(t, "CreateTodo", mock.Anything, mock.Anything, mock.Anything)
}

// TestHelperFunctions tests the writeJSON and writeError functions
func TestHelperFunctions(t *testing.T) {
	t.Parallel()

	t.Run("writeJSON", func(t *testing.T) {
		t.Parallel()

		data := map[string]string{"key": "value"}
		rec := httptest.NewRecorder()

		writeJSON(rec, data, http.StatusOK)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var result map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, data, result)
	})

	t.Run("writeError", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()

		writeError(rec, "test error", http.StatusBadRequest)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"test error"}`, rec.Body.String())
	})

	t.Run("writeValidationError", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()

		writeValidationError(rec, validation.Errors{"name": {"This field is required."}})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"validation failed","fields":{"name":["This field is required."]}}`, rec.Body.String())
	})
}
