package comment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hitoshi/kizuna/internal/model"
	"github.com/hitoshi/kizuna/internal/security"
)

const (
	aliceID   = "11111111-1111-1111-1111-111111111111"
	bobID     = "22222222-2222-2222-2222-222222222222"
	postID    = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	commentID = "eeeeeeee-eeee-eeee-eeee-eeeeeeeeeeee"
)

var (
	alice = model.Identity{UserID: aliceID, Username: "alice"}
	bob   = model.Identity{UserID: bobID, Username: "bobby"}
)

type mockCommentRepo struct {
	findByIDFn   func(ctx context.Context, id string) (*model.Comment, error)
	createFn     func(ctx context.Context, c *model.Comment) error
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockCommentRepo) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockCommentRepo) Create(ctx context.Context, c *model.Comment) error {
	if m.createFn != nil {
		return m.createFn(ctx, c)
	}
	return nil
}

func (m *mockCommentRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

// postLookup はFindByIDのみを持つPostRepositoryのモック。
type postLookup struct {
	posts map[string]*model.Post
}

func (p *postLookup) FindByID(_ context.Context, id string) (*model.Post, error) {
	return p.posts[id], nil
}
func (p *postLookup) Create(context.Context, *model.Post) error { return nil }
func (p *postLookup) ListByUserIDs(context.Context, []string, int, int) ([]*model.Post, error) {
	return nil, nil
}
func (p *postLookup) CountByUserIDs(context.Context, []string) (int, error) { return 0, nil }
func (p *postLookup) DeleteByID(context.Context, string) error              { return nil }

type notifyCall struct {
	UserID  string
	Message string
}

type mockNotifier struct {
	calls []notifyCall
	err   error
}

func (m *mockNotifier) Notify(_ context.Context, userID, message string) error {
	m.calls = append(m.calls, notifyCall{UserID: userID, Message: message})
	return m.err
}

func bobsPost() *postLookup {
	return &postLookup{posts: map[string]*model.Post{postID: {ID: postID, User: bob}}}
}

func TestCreate_PrefixesOwnerAndNotifies(t *testing.T) {
	var stored *model.Comment
	repo := &mockCommentRepo{createFn: func(_ context.Context, c *model.Comment) error {
		stored = c
		return nil
	}}
	notifier := &mockNotifier{}
	svc := NewService(repo, bobsPost(), security.NewTextSanitizer(), notifier)

	c, err := svc.Create(context.Background(), alice, postID, "nice <b>shot</b>")
	if err != nil {
		t.Fatalf("Create がエラーを返した: %v", err)
	}
	if c.Text != "@bobby nice shot" {
		t.Errorf("Text = %q, want %q", c.Text, "@bobby nice shot")
	}
	if stored == nil || stored.PostID != postID || stored.User != alice {
		t.Errorf("保存されたコメント = %+v", stored)
	}
	want := []notifyCall{{UserID: bobID, Message: "alice commented on your post"}}
	if diff := cmp.Diff(want, notifier.calls); diff != "" {
		t.Errorf("通知 (-want +got):\n%s", diff)
	}
}

func TestCreate_OwnCommentNotNotified(t *testing.T) {
	notifier := &mockNotifier{}
	svc := NewService(&mockCommentRepo{}, bobsPost(), security.NewTextSanitizer(), notifier)

	if _, err := svc.Create(context.Background(), bob, postID, "thanks"); err != nil {
		t.Fatalf("Create がエラーを返した: %v", err)
	}
	if len(notifier.calls) != 0 {
		t.Errorf("自分の投稿へのコメントで通知された: %v", notifier.calls)
	}
}

func TestCreate_NotificationFailureIgnored(t *testing.T) {
	svc := NewService(&mockCommentRepo{}, bobsPost(), security.NewTextSanitizer(), &mockNotifier{err: errors.New("db down")})

	if _, err := svc.Create(context.Background(), alice, postID, "hi"); err != nil {
		t.Errorf("通知失敗でコメントが失敗した: %v", err)
	}
}

func TestCreate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		postID   string
		text     string
		wantCode string
	}{
		{"空の本文", postID, "", model.ErrCodeValidation},
		{"本文が長すぎる", postID, strings.Repeat("x", MaxTextLength+1), model.ErrCodeValidation},
		{"存在しない投稿", "ffffffff-ffff-ffff-ffff-ffffffffffff", "hi", model.ErrCodePostNotFound},
		{"UUIDでない投稿ID", "p1", "hi", model.ErrCodePostNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockCommentRepo{createFn: func(context.Context, *model.Comment) error {
				t.Error("エラー時に保存された")
				return nil
			}}
			svc := NewService(repo, bobsPost(), security.NewTextSanitizer(), nil)

			_, err := svc.Create(context.Background(), alice, tt.postID, tt.text)
			if code := model.ErrorCode(err); code != tt.wantCode {
				t.Errorf("エラーコード = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	owned := &model.Comment{ID: commentID, User: alice, PostID: postID, Text: "@bobby hi"}
	tests := []struct {
		name        string
		actor       model.Identity
		id          string
		wantCode    string
		wantDeleted bool
	}{
		{name: "所有者による削除", actor: alice, id: commentID, wantDeleted: true},
		{name: "大文字のIDは正規化される", actor: alice, id: strings.ToUpper(commentID), wantDeleted: true},
		{name: "他ユーザーのコメント", actor: bob, id: commentID, wantCode: model.ErrCodeNotOwner},
		{name: "存在しないコメント", actor: alice, id: postID, wantCode: model.ErrCodeCommentNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deleted := false
			repo := &mockCommentRepo{
				findByIDFn: func(_ context.Context, id string) (*model.Comment, error) {
					if id == commentID {
						return owned, nil
					}
					return nil, nil
				},
				deleteByIDFn: func(context.Context, string) error {
					deleted = true
					return nil
				},
			}
			svc := NewService(repo, bobsPost(), security.NewTextSanitizer(), nil)

			got, err := svc.Delete(context.Background(), tt.actor, tt.id)
			if code := model.ErrorCode(err); code != tt.wantCode {
				t.Fatalf("エラーコード = %q, want %q", code, tt.wantCode)
			}
			if deleted != tt.wantDeleted {
				t.Errorf("削除 = %v, want %v", deleted, tt.wantDeleted)
			}
			if tt.wantDeleted && got.ID != commentID {
				t.Errorf("返却されたコメント = %+v", got)
			}
		})
	}
}
