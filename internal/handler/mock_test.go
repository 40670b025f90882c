package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/kizuna/internal/middleware"
	"github.com/hitoshi/kizuna/internal/model"
	"github.com/hitoshi/kizuna/internal/user"
)

// --- モック定義 ---

type mockAuthService struct {
	loginFn func(ctx context.Context, username, password string) (string, error)
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (string, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return "", nil
}

type mockUserService struct {
	registerFn      func(ctx context.Context, in model.ProfileInput) (*model.User, error)
	listFn          func(ctx context.Context, page, limit int) (*model.Page[*model.User], error)
	getFn           func(ctx context.Context, id string) (*model.User, error)
	updateProfileFn func(ctx context.Context, actor model.Identity, id string, in model.ProfileInput) (*model.User, error)
	deleteFn        func(ctx context.Context, actor model.Identity, id string) (*model.User, error)
	followFn        func(ctx context.Context, actor model.Identity, targetID string) (*user.FollowResult, error)
	unfollowFn      func(ctx context.Context, actor model.Identity, targetID string) (*user.FollowResult, error)
}

func (m *mockUserService) Register(ctx context.Context, in model.ProfileInput) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil
}

func (m *mockUserService) List(ctx context.Context, page, limit int) (*model.Page[*model.User], error) {
	if m.listFn != nil {
		return m.listFn(ctx, page, limit)
	}
	return nil, nil
}

func (m *mockUserService) Get(ctx context.Context, id string) (*model.User, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserService) UpdateProfile(ctx context.Context, actor model.Identity, id string, in model.ProfileInput) (*model.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, actor, id, in)
	}
	return nil, nil
}

func (m *mockUserService) Delete(ctx context.Context, actor model.Identity, id string) (*model.User, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actor, id)
	}
	return nil, nil
}

func (m *mockUserService) Follow(ctx context.Context, actor model.Identity, targetID string) (*user.FollowResult, error) {
	if m.followFn != nil {
		return m.followFn(ctx, actor, targetID)
	}
	return nil, nil
}

func (m *mockUserService) Unfollow(ctx context.Context, actor model.Identity, targetID string) (*user.FollowResult, error) {
	if m.unfollowFn != nil {
		return m.unfollowFn(ctx, actor, targetID)
	}
	return nil, nil
}

type mockPostService struct {
	createFn   func(ctx context.Context, actor model.Identity, file io.Reader, filename, caption string) (*model.Post, error)
	listFeedFn func(ctx context.Context, actor model.Identity, page, limit int) (*model.Page[*model.Post], error)
	deleteFn   func(ctx context.Context, actor model.Identity, id string) (*model.Post, error)
}

func (m *mockPostService) Create(ctx context.Context, actor model.Identity, file io.Reader, filename, caption string) (*model.Post, error) {
	if m.createFn != nil {
		return m.createFn(ctx, actor, file, filename, caption)
	}
	return nil, nil
}

func (m *mockPostService) ListFeed(ctx context.Context, actor model.Identity, page, limit int) (*model.Page[*model.Post], error) {
	if m.listFeedFn != nil {
		return m.listFeedFn(ctx, actor, page, limit)
	}
	return nil, nil
}

func (m *mockPostService) Delete(ctx context.Context, actor model.Identity, id string) (*model.Post, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actor, id)
	}
	return nil, nil
}

type mockStatusService struct {
	createFn     func(ctx context.Context, actor model.Identity, file io.Reader, filename, caption string, privacy model.Privacy) (*model.Status, error)
	listActiveFn func(ctx context.Context, userID string, page, limit int) (*model.Page[*model.Status], error)
	deleteFn     func(ctx context.Context, actor model.Identity, id string) (*model.Status, error)
}

func (m *mockStatusService) Create(ctx context.Context, actor model.Identity, file io.Reader, filename, caption string, privacy model.Privacy) (*model.Status, error) {
	if m.createFn != nil {
		return m.createFn(ctx, actor, file, filename, caption, privacy)
	}
	return nil, nil
}

func (m *mockStatusService) ListActive(ctx context.Context, userID string, page, limit int) (*model.Page[*model.Status], error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx, userID, page, limit)
	}
	return nil, nil
}

func (m *mockStatusService) Delete(ctx context.Context, actor model.Identity, id string) (*model.Status, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actor, id)
	}
	return nil, nil
}

type mockCommentService struct {
	createFn func(ctx context.Context, actor model.Identity, postID, text string) (*model.Comment, error)
	deleteFn func(ctx context.Context, actor model.Identity, id string) (*model.Comment, error)
}

func (m *mockCommentService) Create(ctx context.Context, actor model.Identity, postID, text string) (*model.Comment, error) {
	if m.createFn != nil {
		return m.createFn(ctx, actor, postID, text)
	}
	return nil, nil
}

func (m *mockCommentService) Delete(ctx context.Context, actor model.Identity, id string) (*model.Comment, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actor, id)
	}
	return nil, nil
}

type mockNotificationService struct {
	listFn        func(ctx context.Context, userID string, page, limit int) (*model.Page[*model.Notification], error)
	markAllReadFn func(ctx context.Context, userID string) (int64, error)
	deleteFn      func(ctx context.Context, actor model.Identity, id string) (*model.Notification, error)
}

func (m *mockNotificationService) List(ctx context.Context, userID string, page, limit int) (*model.Page[*model.Notification], error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, page, limit)
	}
	return nil, nil
}

func (m *mockNotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if m.markAllReadFn != nil {
		return m.markAllReadFn(ctx, userID)
	}
	return 0, nil
}

func (m *mockNotificationService) Delete(ctx context.Context, actor model.Identity, id string) (*model.Notification, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actor, id)
	}
	return nil, nil
}

type mockMediaStore struct {
	uploadFn func(ctx context.Context, file io.Reader, filename, folder string) (model.Content, error)
	deleteFn func(ctx context.Context, publicID string) error
}

func (m *mockMediaStore) Upload(ctx context.Context, file io.Reader, filename, folder string) (model.Content, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, file, filename, folder)
	}
	return model.Content{}, nil
}

func (m *mockMediaStore) Delete(ctx context.Context, publicID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, publicID)
	}
	return nil
}

// --- テストヘルパー ---

var testActor = model.Identity{UserID: "11111111-1111-1111-1111-111111111111", Username: "alice"}

// withActor はリクエストのコンテキストに認証済みIdentityを設定する。
func withActor(r *http.Request, actor model.Identity) *http.Request {
	return r.WithContext(middleware.ContextWithIdentity(r.Context(), actor))
}

// multipartRequest はfieldにファイルを添付したmultipartリクエストを生成する。
func multipartRequest(t *testing.T, method, target, field, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// envelope はレスポンスの統一フォーマットをdataを生のまま保持してデコードしたもの。
type envelope struct {
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Code       string          `json:"code"`
	Data       json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}

// decodeData はエンベロープのdataをvにデコードする。
func decodeData(t *testing.T, env envelope, v any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("failed to decode data: %v (%s)", err, string(env.Data))
	}
}
