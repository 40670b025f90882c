package user

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hitoshi/kizuna/internal/model"
)

const (
	aliceID = "11111111-1111-1111-1111-111111111111"
	bobID   = "22222222-2222-2222-2222-222222222222"
	carolID = "33333333-3333-3333-3333-333333333333"
	ghostID = "99999999-9999-9999-9999-999999999999"
	daveID  = "abcdef01-2345-4678-9abc-def012345678"
)

func seedUsers() (*model.User, *model.User, *model.User) {
	alice := &model.User{ID: aliceID, Username: "alice"}
	bob := &model.User{ID: bobID, Username: "bobby"}
	carol := &model.User{ID: carolID, Username: "carol"}
	return alice, bob, carol
}

func newFollowService(repo *memUserRepo, notifier Notifier, recorder FollowRecorder) *Service {
	return NewService(repo, plainHasher{}, identitySanitizer{}, notifier, recorder)
}

func identityOf(u *model.User) model.Identity {
	return model.Identity{UserID: u.ID, Username: u.Username}
}

func TestFollow_AddsEdgeOnBothSides(t *testing.T) {
	alice, bob, _ := seedUsers()
	repo := newMemUserRepo(alice, bob)
	notifier := &mockNotifier{}
	svc := newFollowService(repo, notifier, nil)

	result, err := svc.Follow(context.Background(), identityOf(alice), bob.ID)
	if err != nil {
		t.Fatalf("Follow returned error: %v", err)
	}

	if diff := cmp.Diff([]model.Identity{identityOf(bob)}, result.Dower.Followings); diff != "" {
		t.Errorf("dower followings mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]model.Identity{identityOf(alice)}, result.Gainer.Followers); diff != "" {
		t.Errorf("gainer followers mismatch (-want +got):\n%s", diff)
	}

	// 永続化された状態も双方向で一致すること
	storedA, storedB := repo.get(alice.ID), repo.get(bob.ID)
	if !containsIdentity(storedA.Followings, bob.ID) || !containsIdentity(storedB.Followers, alice.ID) {
		t.Errorf("stored edge incomplete: alice.followings=%v bob.followers=%v", storedA.Followings, storedB.Followers)
	}

	want := []notifyCall{{UserID: bob.ID, Message: "alice followed you"}}
	if diff := cmp.Diff(want, notifier.calls); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestFollow_Errors(t *testing.T) {
	tests := []struct {
		name     string
		targetID string
		prepare  func(repo *memUserRepo)
		wantCode string
	}{
		{name: "存在しないユーザー", targetID: ghostID, wantCode: model.ErrCodeUserNotFound},
		{name: "UUIDでないID", targetID: "not-a-uuid", wantCode: model.ErrCodeUserNotFound},
		{name: "自分自身", targetID: aliceID, wantCode: model.ErrCodeSelfReference},
		{
			name:     "既にフォロー済み",
			targetID: bobID,
			prepare: func(repo *memUserRepo) {
				repo.users[bobID].Followers = []model.Identity{{UserID: aliceID, Username: "alice"}}
				repo.users[aliceID].Followings = []model.Identity{{UserID: bobID, Username: "bobby"}}
			},
			wantCode: model.ErrCodeAlreadyFollowing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alice, bob, _ := seedUsers()
			repo := newMemUserRepo(alice, bob)
			if tt.prepare != nil {
				tt.prepare(repo)
			}
			before := repo.get(bob.ID)
			notifier := &mockNotifier{}
			svc := newFollowService(repo, notifier, nil)

			_, err := svc.Follow(context.Background(), identityOf(alice), tt.targetID)
			if code := model.ErrorCode(err); code != tt.wantCode {
				t.Fatalf("error code = %q, want %q (err=%v)", code, tt.wantCode, err)
			}
			if diff := cmp.Diff(before, repo.get(bob.ID)); diff != "" {
				t.Errorf("target modified on error (-before +after):\n%s", diff)
			}
			if len(notifier.calls) != 0 {
				t.Errorf("notifications written on error: %v", notifier.calls)
			}
		})
	}
}

func TestFollow_SelfReferenceMessage(t *testing.T) {
	alice, _, _ := seedUsers()
	svc := newFollowService(newMemUserRepo(alice), nil, nil)

	_, err := svc.Follow(context.Background(), identityOf(alice), alice.ID)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *model.APIError", err)
	}
	if apiErr.Message != "You can't follow yourself!" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestFollow_NonCanonicalIDs(t *testing.T) {
	dave := &model.User{ID: daveID, Username: "dave"}
	variants := map[string]string{
		"大文字":       strings.ToUpper(daveID),
		"波括弧":       "{" + daveID + "}",
		"URN形式":     "urn:uuid:" + daveID,
		"ハイフンなし大文字": strings.ToUpper(strings.ReplaceAll(daveID, "-", "")),
	}

	for name, targetID := range variants {
		t.Run(name+"/自分自身", func(t *testing.T) {
			svc := newFollowService(newMemUserRepo(dave), nil, nil)
			_, err := svc.Follow(context.Background(), identityOf(dave), targetID)
			if code := model.ErrorCode(err); code != model.ErrCodeSelfReference {
				t.Errorf("error code = %q, want %q (err=%v)", code, model.ErrCodeSelfReference, err)
			}
		})

		t.Run(name+"/他ユーザー", func(t *testing.T) {
			alice, _, _ := seedUsers()
			repo := newMemUserRepo(alice, dave)
			svc := newFollowService(repo, &mockNotifier{}, nil)

			result, err := svc.Follow(context.Background(), identityOf(alice), targetID)
			if err != nil {
				t.Fatalf("Follow returned error: %v", err)
			}
			if result.Gainer.ID != daveID {
				t.Errorf("gainer ID = %q, want %q", result.Gainer.ID, daveID)
			}
			if !containsIdentity(repo.get(alice.ID).Followings, daveID) {
				t.Errorf("alice.followings = %v, want canonical %s", repo.get(alice.ID).Followings, daveID)
			}
		})
	}
}

func TestFollow_DeletedActor(t *testing.T) {
	_, bob, _ := seedUsers()
	svc := newFollowService(newMemUserRepo(bob), nil, nil)

	_, err := svc.Follow(context.Background(), model.Identity{UserID: ghostID, Username: "ghost"}, bob.ID)
	if code := model.ErrorCode(err); code != model.ErrCodeUserNotFound {
		t.Errorf("error code = %q, want %q", code, model.ErrCodeUserNotFound)
	}
}

func TestFollow_NotificationFailureDoesNotFailFollow(t *testing.T) {
	alice, bob, _ := seedUsers()
	repo := newMemUserRepo(alice, bob)
	notifier := &mockNotifier{err: errors.New("db down")}
	svc := newFollowService(repo, notifier, nil)

	if _, err := svc.Follow(context.Background(), identityOf(alice), bob.ID); err != nil {
		t.Fatalf("Follow returned error: %v", err)
	}
	if !containsIdentity(repo.get(bob.ID).Followers, alice.ID) {
		t.Error("follow edge not persisted")
	}
}

func TestFollow_RepositoryErrorIsWrapped(t *testing.T) {
	alice, bob, _ := seedUsers()
	repo := newMemUserRepo(alice, bob)
	dbErr := errors.New("connection reset")
	repo.mutateErr = dbErr
	svc := newFollowService(repo, nil, nil)

	_, err := svc.Follow(context.Background(), identityOf(alice), bob.ID)
	if !errors.Is(err, dbErr) {
		t.Errorf("err = %v, want wrapped dbErr", err)
	}
	if model.ErrorCode(err) != "" {
		t.Errorf("infrastructure error must not be an APIError: %v", err)
	}
}

func TestUnfollow_RemovesEdgeOnBothSides(t *testing.T) {
	alice, bob, carol := seedUsers()
	repo := newMemUserRepo(alice, bob, carol)
	svc := newFollowService(repo, nil, nil)
	ctx := context.Background()

	for _, target := range []string{bob.ID, carol.ID} {
		if _, err := svc.Follow(ctx, identityOf(alice), target); err != nil {
			t.Fatalf("Follow(%s) returned error: %v", target, err)
		}
	}

	result, err := svc.Unfollow(ctx, identityOf(alice), bob.ID)
	if err != nil {
		t.Fatalf("Unfollow returned error: %v", err)
	}
	if diff := cmp.Diff([]model.Identity{identityOf(carol)}, result.Dower.Followings); diff != "" {
		t.Errorf("dower followings mismatch (-want +got):\n%s", diff)
	}
	if len(result.Gainer.Followers) != 0 {
		t.Errorf("gainer followers = %v, want empty", result.Gainer.Followers)
	}
}

func TestUnfollow_Errors(t *testing.T) {
	tests := []struct {
		name     string
		targetID string
		wantCode string
		wantMsg  string
	}{
		{name: "存在しないユーザー", targetID: ghostID, wantCode: model.ErrCodeUserNotFound, wantMsg: "User does not exist!"},
		{name: "自分自身", targetID: aliceID, wantCode: model.ErrCodeSelfReference, wantMsg: "You can't unfollow yourself!"},
		{name: "フォローしていない", targetID: bobID, wantCode: model.ErrCodeNotFollowing, wantMsg: "You are not following this account"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alice, bob, _ := seedUsers()
			svc := newFollowService(newMemUserRepo(alice, bob), nil, nil)

			_, err := svc.Unfollow(context.Background(), identityOf(alice), tt.targetID)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *model.APIError", err)
			}
			if apiErr.Code != tt.wantCode || apiErr.Message != tt.wantMsg {
				t.Errorf("got (%q, %q), want (%q, %q)", apiErr.Code, apiErr.Message, tt.wantCode, tt.wantMsg)
			}
		})
	}
}

func TestFollowUnfollow_RoundTripRestoresLists(t *testing.T) {
	alice, bob, carol := seedUsers()
	repo := newMemUserRepo(alice, bob, carol)
	svc := newFollowService(repo, nil, nil)
	ctx := context.Background()

	// carolが先にbobをフォローしておき、順序が保たれることを確認する
	if _, err := svc.Follow(ctx, identityOf(carol), bob.ID); err != nil {
		t.Fatalf("Follow returned error: %v", err)
	}
	beforeA, beforeB := repo.get(alice.ID), repo.get(bob.ID)

	if _, err := svc.Follow(ctx, identityOf(alice), bob.ID); err != nil {
		t.Fatalf("Follow returned error: %v", err)
	}
	if _, err := svc.Unfollow(ctx, identityOf(alice), bob.ID); err != nil {
		t.Fatalf("Unfollow returned error: %v", err)
	}

	if diff := cmp.Diff(beforeA.Followings, repo.get(alice.ID).Followings); diff != "" {
		t.Errorf("alice followings not restored (-before +after):\n%s", diff)
	}
	if diff := cmp.Diff(beforeB.Followers, repo.get(bob.ID).Followers); diff != "" {
		t.Errorf("bob followers not restored (-before +after):\n%s", diff)
	}
}

func TestFollow_ConcurrentFollowersAllRecorded(t *testing.T) {
	target := &model.User{ID: bobID, Username: "bobby"}
	followers := []*model.User{
		{ID: aliceID, Username: "alice"},
		{ID: carolID, Username: "carol"},
		{ID: "44444444-4444-4444-4444-444444444444", Username: "dave1"},
		{ID: "55555555-5555-5555-5555-555555555555", Username: "erin1"},
	}
	repo := newMemUserRepo(append(followers, target)...)
	svc := newFollowService(repo, nil, nil)

	var wg sync.WaitGroup
	for _, f := range followers {
		wg.Add(1)
		go func(f *model.User) {
			defer wg.Done()
			if _, err := svc.Follow(context.Background(), identityOf(f), target.ID); err != nil {
				t.Errorf("Follow(%s) returned error: %v", f.Username, err)
			}
		}(f)
	}
	wg.Wait()

	stored := repo.get(target.ID)
	if len(stored.Followers) != len(followers) {
		t.Errorf("followers = %d, want %d", len(stored.Followers), len(followers))
	}
	for _, f := range followers {
		if !containsIdentity(stored.Followers, f.ID) {
			t.Errorf("follower %s missing", f.Username)
		}
		if !containsIdentity(repo.get(f.ID).Followings, target.ID) {
			t.Errorf("%s followings missing target", f.Username)
		}
	}
}

func TestFollow_RecordsOutcome(t *testing.T) {
	alice, bob, _ := seedUsers()
	recorder := &mockRecorder{}
	svc := newFollowService(newMemUserRepo(alice, bob), nil, recorder)
	ctx := context.Background()

	svc.Follow(ctx, identityOf(alice), bob.ID)
	svc.Follow(ctx, identityOf(alice), bob.ID)
	svc.Unfollow(ctx, identityOf(alice), bob.ID)

	want := []string{"follow:success", "follow:" + model.ErrCodeAlreadyFollowing, "unfollow:success"}
	if diff := cmp.Diff(want, recorder.ops); diff != "" {
		t.Errorf("recorded ops mismatch (-want +got):\n%s", diff)
	}
}
