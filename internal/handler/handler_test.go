package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/forum-service/internal/db"
	"github.com/vasiliy-maslov/forum-service/internal/forum"
	"github.com/vasiliy-maslov/forum-service/internal/handler"
	"github.com/vasiliy-maslov/forum-service/internal/user"
)

type fakeConn struct {
	released int
}

func (c *fakeConn) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("fakeConn: unexpected Exec")
}

func (c *fakeConn) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("fakeConn: unexpected Query")
}

func (c *fakeConn) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

func (c *fakeConn) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeConn: unexpected Begin")
}

func (c *fakeConn) Release() { c.released++ }

type fakeStore struct {
	conn     *fakeConn
	acquired int
	err      error
}

func (s *fakeStore) Acquire(context.Context) (db.Conn, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.acquired++
	return s.conn, nil
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) GetUserByID(ctx context.Context, id int64) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) Register(ctx context.Context, in user.RegisterInput) (*user.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) Login(ctx context.Context, in user.LoginInput) (*user.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) UpdateRole(ctx context.Context, in user.RoleInput) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

type MockForumService struct {
	mock.Mock
}

func (m *MockForumService) ListCategories(ctx context.Context) ([]forum.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]forum.Category), args.Error(1)
}

func (m *MockForumService) CreateCategory(ctx context.Context, in forum.CreateCategoryInput) (*forum.Category, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*forum.Category), args.Error(1)
}

func (m *MockForumService) ListTopics(ctx context.Context) ([]forum.Topic, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]forum.Topic), args.Error(1)
}

func (m *MockForumService) CreateTopic(ctx context.Context, in forum.CreateTopicInput) (*forum.Post, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*forum.Post), args.Error(1)
}

func (m *MockForumService) SetTopicPinned(ctx context.Context, in forum.PinInput) error {
	return m.Called(ctx, in).Error(0)
}

func (m *MockForumService) SetTopicLocked(ctx context.Context, in forum.LockInput) error {
	return m.Called(ctx, in).Error(0)
}

func (m *MockForumService) ArchiveTopic(ctx context.Context, in forum.ArchiveInput) error {
	return m.Called(ctx, in).Error(0)
}

type fixture struct {
	store   *fakeStore
	users   *MockUserService
	forum   *MockForumService
	handler *handler.ForumHandler
}

func newFixture() *fixture {
	f := &fixture{
		store: &fakeStore{conn: &fakeConn{}},
		users: new(MockUserService),
		forum: new(MockForumService),
	}
	f.handler = handler.NewForumHandler(f.store, func(q db.Querier) handler.Services {
		return handler.Services{Users: f.users, Forum: f.forum}
	})
	return f
}

func ptr[T any](v T) *T { return &v }

func request(method, path, body string) handler.Request {
	return handler.Request{
		Method:      method,
		QueryParams: map[string]string{"path": path},
		Body:        body,
	}
}

func assertCORS(t *testing.T, resp handler.Response) {
	t.Helper()
	assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	assert.Equal(t, "GET, POST, PUT, OPTIONS", resp.Headers["Access-Control-Allow-Methods"])
	assert.Equal(t, "Content-Type, X-User-Id", resp.Headers["Access-Control-Allow-Headers"])
}

func TestForumHandler_Preflight(t *testing.T) {
	for _, path := range []string{"", "topics", "users/role", "nope"} {
		t.Run("path_"+path, func(t *testing.T) {
			f := newFixture()

			resp, err := f.handler.Handle(context.Background(), request(http.MethodOptions, path, ""))
			require.NoError(t, err)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Empty(t, resp.Body)
			assert.False(t, resp.IsBase64Encoded)
			assertCORS(t, resp)
			assert.Equal(t, "86400", resp.Headers["Access-Control-Max-Age"])
			assert.Zero(t, f.store.acquired, "preflight must not touch the database")
		})
	}
}

func TestForumHandler_EndpointNotFound(t *testing.T) {
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "posts"},
		{http.MethodGet, ""},
		{http.MethodDelete, "topics"},
		{http.MethodPut, "categories"},
		{http.MethodPost, "users"},
	}

	for _, tt := range tests {
		t.Run(tt.method+"_"+tt.path, func(t *testing.T) {
			f := newFixture()

			resp, err := f.handler.Handle(context.Background(), request(tt.method, tt.path, ""))
			require.NoError(t, err)

			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			assert.JSONEq(t, `{"error":"Endpoint not found"}`, resp.Body)
			assert.Equal(t, "application/json", resp.Headers["Content-Type"])
			assertCORS(t, resp)
			assert.NotContains(t, resp.Headers, "Access-Control-Max-Age")
			assert.Equal(t, 1, f.store.acquired)
			assert.Equal(t, 1, f.store.conn.released)
		})
	}
}

func TestForumHandler_AcquireFailure(t *testing.T) {
	f := newFixture()
	f.store.err = errors.New("pool exhausted")

	_, err := f.handler.Handle(context.Background(), request(http.MethodGet, "categories", ""))
	require.ErrorIs(t, err, f.store.err)
}

func TestForumHandler_ListCategories(t *testing.T) {
	f := newFixture()
	created := time.Date(2025, 4, 16, 12, 0, 0, 0, time.UTC)
	f.forum.On("ListCategories", mock.Anything).Return([]forum.Category{
		{ID: 1, Name: "General", Description: ptr("Talk"), Icon: "MessageSquare", Color: "from-blue-500 to-blue-600", CreatedAt: created, TopicsCount: 2},
		{ID: 2, Name: "Empty", Icon: "Folder", Color: "from-gray-500 to-gray-600", CreatedAt: created},
	}, nil).Once()

	resp, err := f.handler.Handle(context.Background(), request(http.MethodGet, "categories", ""))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[
		{"id":1,"name":"General","description":"Talk","icon":"MessageSquare","color":"from-blue-500 to-blue-600","created_at":"2025-04-16T12:00:00Z","topics_count":2},
		{"id":2,"name":"Empty","description":null,"icon":"Folder","color":"from-gray-500 to-gray-600","created_at":"2025-04-16T12:00:00Z","topics_count":0}
	]`, resp.Body)
	assert.Equal(t, 1, f.store.conn.released)
	f.forum.AssertExpectations(t)
}

func TestForumHandler_ListCategories_Empty(t *testing.T) {
	f := newFixture()
	f.forum.On("ListCategories", mock.Anything).Return([]forum.Category{}, nil).Once()

	resp, err := f.handler.Handle(context.Background(), request(http.MethodGet, "categories", ""))
	require.NoError(t, err)
	assert.Equal(t, "[]", resp.Body)
}

func TestForumHandler_ListTopics(t *testing.T) {
	f := newFixture()
	updated := time.Date(2025, 4, 16, 12, 0, 0, 0, time.UTC)
	f.forum.On("ListTopics", mock.Anything).Return([]forum.Topic{
		{
			ID: 3, Title: "Hello", CategoryID: 1, AuthorID: 1, IsPinned: true,
			CreatedAt: updated, UpdatedAt: updated,
			AuthorUsername: ptr("alice"), AuthorRole: ptr("admin"), AuthorRank: ptr(user.DefaultRank),
			AuthorPosts: ptr(4), AuthorReputation: ptr(10), CategoryName: ptr("General"), SecondsAgo: 12.5,
		},
	}, nil).Once()

	resp, err := f.handler.Handle(context.Background(), request(http.MethodGet, "topics", ""))
	require.NoError(t, err)

	var topics []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &topics))
	require.Len(t, topics, 1)
	assert.Equal(t, "alice", topics[0]["author_username"])
	assert.Equal(t, "General", topics[0]["category_name"])
	assert.Equal(t, true, topics[0]["is_pinned"])
	assert.Equal(t, 12.5, topics[0]["seconds_ago"])
	assert.Equal(t, float64(4), topics[0]["author_posts"])
}

func TestForumHandler_GetUser(t *testing.T) {
	f := newFixture()
	f.users.On("GetUserByID", mock.Anything, int64(1)).Return(&user.User{
		ID: 1, Username: "alice", Email: "a@x.com", Role: user.RoleUser, Rank: user.DefaultRank,
		CreatedAt: time.Date(2025, 4, 16, 12, 0, 0, 0, time.UTC), PasswordHash: "secret-hash",
	}, nil).Once()

	req := request(http.MethodGet, "users", "")
	req.QueryParams["id"] = "1"

	resp, err := f.handler.Handle(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":1,"username":"alice","email":"a@x.com","avatar_url":null,"role":"user","rank":"Новичок","posts_count":0,"reputation":0,"created_at":"2025-04-16T12:00:00Z"}`, resp.Body)
	assert.NotContains(t, resp.Body, "secret-hash")
}

func TestForumHandler_GetUser_NotFound(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{name: "missing_id", id: ""},
		{name: "non_numeric_id", id: "abc"},
		{name: "unknown_id", id: "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.users.On("GetUserByID", mock.Anything, int64(42)).Return(nil, user.ErrNotFound).Maybe()

			req := request(http.MethodGet, "users", "")
			if tt.id != "" {
				req.QueryParams["id"] = tt.id
			}

			resp, err := f.handler.Handle(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			assert.Equal(t, `{"error":"User not found"}`, resp.Body)
			assert.Equal(t, 1, f.store.conn.released)
		})
	}
}

func TestForumHandler_Register(t *testing.T) {
	f := newFixture()
	f.users.On("Register", mock.Anything, user.RegisterInput{Username: ptr("alice"), Email: ptr("a@x.com")}).
		Return(&user.User{ID: 1, Username: "alice", Email: "a@x.com", Role: user.RoleUser, Rank: user.DefaultRank, PasswordHash: "h"}, nil).
		Once()

	resp, err := f.handler.Handle(context.Background(), request(http.MethodPost, "register", `{"username":"alice","email":"a@x.com"}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal(t, "user", body["role"])
	assert.Equal(t, "Новичок", body["rank"])
	assert.Equal(t, float64(0), body["posts_count"])
	assert.NotContains(t, body, "password_hash")
	assert.NotContains(t, body, "password")
	f.users.AssertExpectations(t)
}

func TestForumHandler_Register_MalformedBody(t *testing.T) {
	f := newFixture()

	_, err := f.handler.Handle(context.Background(), request(http.MethodPost, "register", `{"username":`))
	require.ErrorIs(t, err, handler.ErrMalformedBody)
	assert.Equal(t, 1, f.store.conn.released)
	f.users.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestForumHandler_Register_ErrorPropagates(t *testing.T) {
	f := newFixture()
	f.users.On("Register", mock.Anything, mock.Anything).Return(nil, user.ErrUsernameTaken).Once()

	_, err := f.handler.Handle(context.Background(), request(http.MethodPost, "register", `{"username":"alice"}`))
	require.ErrorIs(t, err, user.ErrUsernameTaken)
	assert.Equal(t, 1, f.store.conn.released)
}

func TestForumHandler_Login(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		input      user.LoginInput
		found      *user.User
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "known_user_any_password",
			body:       `{"username":"alice","password":"whatever"}`,
			input:      user.LoginInput{Username: ptr("alice"), Password: ptr("whatever")},
			found:      &user.User{ID: 1, Username: "alice", Email: "a@x.com", Role: "user", Rank: "Новичок"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "known_user_no_password",
			body:       `{"username":"alice"}`,
			input:      user.LoginInput{Username: ptr("alice")},
			found:      &user.User{ID: 1, Username: "alice", Email: "a@x.com", Role: "user", Rank: "Новичок"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown_user",
			body:       `{"username":"ghost"}`,
			input:      user.LoginInput{Username: ptr("ghost")},
			err:        user.ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":"Invalid credentials"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.found != nil {
				f.users.On("Login", mock.Anything, tt.input).Return(tt.found, nil).Once()
			} else {
				f.users.On("Login", mock.Anything, tt.input).Return(nil, tt.err).Once()
			}

			resp, err := f.handler.Handle(context.Background(), request(http.MethodPost, "login", tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, resp.Body)
			} else {
				assert.Contains(t, resp.Body, `"username":"alice"`)
			}
			f.users.AssertExpectations(t)
		})
	}
}

func TestForumHandler_CreateTopic(t *testing.T) {
	f := newFixture()
	input := forum.CreateTopicInput{Title: ptr("T"), CategoryID: ptr(int64(1)), AuthorID: ptr(int64(1)), Content: ptr("C")}
	f.forum.On("CreateTopic", mock.Anything, input).Return(&forum.Post{ID: 9, TopicID: 5, AuthorID: 1, Content: "C"}, nil).Once()

	resp, err := f.handler.Handle(context.Background(), request(http.MethodPost, "topics", `{"title":"T","category_id":1,"author_id":1,"content":"C"}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"id":5,"message":"Topic created"}`, resp.Body)
	f.forum.AssertExpectations(t)
}

func TestForumHandler_CreateTopic_WrongFieldType(t *testing.T) {
	f := newFixture()

	_, err := f.handler.Handle(context.Background(), request(http.MethodPost, "topics", `{"title":"T","category_id":"one"}`))
	require.ErrorIs(t, err, handler.ErrMalformedBody)
	f.forum.AssertNotCalled(t, "CreateTopic", mock.Anything, mock.Anything)
}

func TestForumHandler_CreateCategory(t *testing.T) {
	f := newFixture()
	f.forum.On("CreateCategory", mock.Anything, forum.CreateCategoryInput{Name: ptr("Go"), Description: ptr("All Go")}).
		Return(&forum.Category{ID: 4, Name: "Go", Description: ptr("All Go"), Icon: "Folder", Color: "from-gray-500 to-gray-600"}, nil).
		Once()

	resp, err := f.handler.Handle(context.Background(), request(http.MethodPost, "categories", `{"name":"Go","description":"All Go"}`))
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal(t, float64(4), body["id"])
	assert.Equal(t, "Folder", body["icon"])
	f.forum.AssertExpectations(t)
}

func TestForumHandler_PutOperations(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		setup    func(f *fixture)
		wantBody string
	}{
		{
			name: "role",
			path: "users/role",
			body: `{"user_id":2,"role":"moderator"}`,
			setup: func(f *fixture) {
				f.users.On("UpdateRole", mock.Anything, user.RoleInput{UserID: ptr(int64(2)), Role: ptr("moderator")}).Return(nil).Once()
			},
			wantBody: `{"message":"Role updated"}`,
		},
		{
			name: "pin",
			path: "topics/pin",
			body: `{"topic_id":3,"is_pinned":true}`,
			setup: func(f *fixture) {
				f.forum.On("SetTopicPinned", mock.Anything, forum.PinInput{TopicID: ptr(int64(3)), IsPinned: ptr(true)}).Return(nil).Once()
			},
			wantBody: `{"message":"Topic pin status updated"}`,
		},
		{
			name: "lock",
			path: "topics/lock",
			body: `{"topic_id":3,"is_locked":false}`,
			setup: func(f *fixture) {
				f.forum.On("SetTopicLocked", mock.Anything, forum.LockInput{TopicID: ptr(int64(3)), IsLocked: ptr(false)}).Return(nil).Once()
			},
			wantBody: `{"message":"Topic lock status updated"}`,
		},
		{
			name: "archive",
			path: "topics/archive",
			body: `{"topic_id":3}`,
			setup: func(f *fixture) {
				f.forum.On("ArchiveTopic", mock.Anything, forum.ArchiveInput{TopicID: ptr(int64(3))}).Return(nil).Once()
			},
			wantBody: `{"message":"Topic archived"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)

			req := request(http.MethodPut, tt.path, tt.body)
			req.Headers = map[string]string{"x-user-id": "1"}

			resp, err := f.handler.Handle(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.wantBody, resp.Body)
			assertCORS(t, resp)
			f.users.AssertExpectations(t)
			f.forum.AssertExpectations(t)
		})
	}
}

func TestForumHandler_ArchiveTwice(t *testing.T) {
	f := newFixture()
	f.forum.On("ArchiveTopic", mock.Anything, forum.ArchiveInput{TopicID: ptr(int64(3))}).Return(nil).Twice()

	for i := 0; i < 2; i++ {
		resp, err := f.handler.Handle(context.Background(), request(http.MethodPut, "topics/archive", `{"topic_id":3}`))
		require.NoError(t, err)
		assert.Equal(t, `{"message":"Topic archived"}`, resp.Body)
	}
	assert.Equal(t, 2, f.store.conn.released)
	f.forum.AssertExpectations(t)
}

func TestForumHandler_MethodDefaultsToGet(t *testing.T) {
	f := newFixture()
	f.forum.On("ListTopics", mock.Anything).Return([]forum.Topic{}, nil).Once()

	resp, err := f.handler.Handle(context.Background(), request("", "topics", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestForumHandler_LowercaseMethod(t *testing.T) {
	f := newFixture()
	f.forum.On("ListCategories", mock.Anything).Return([]forum.Category{}, nil).Once()

	resp, err := f.handler.Handle(context.Background(), request("get", "categories", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestForumHandler_ReleasesOnPanic(t *testing.T) {
	f := newFixture()
	f.forum.On("ListTopics", mock.Anything).Run(func(mock.Arguments) { panic("driver exploded") })

	assert.Panics(t, func() {
		_, _ = f.handler.Handle(context.Background(), request(http.MethodGet, "topics", ""))
	})
	assert.Equal(t, 1, f.store.conn.released)
}

func TestRequest_Header(t *testing.T) {
	req := handler.Request{Headers: map[string]string{"x-user-id": "7"}}
	assert.Equal(t, "7", req.Header(handler.HeaderUserID))
	assert.Empty(t, req.Header("Authorization"))
}
