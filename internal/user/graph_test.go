package user

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hitoshi/kizuna/internal/model"
)

func TestWithoutIdentity_PreservesOrder(t *testing.T) {
	list := []model.Identity{
		{UserID: "a", Username: "a"},
		{UserID: "b", Username: "b"},
		{UserID: "c", Username: "c"},
	}
	got := withoutIdentity(list, "b")
	want := []model.Identity{{UserID: "a", Username: "a"}, {UserID: "c", Username: "c"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("withoutIdentity mismatch (-want +got):\n%s", diff)
	}
	if len(list) != 3 {
		t.Error("withoutIdentity must not modify its input")
	}
}

func TestAddFollowEdge_KeyedByUserIDOnly(t *testing.T) {
	actor := &model.User{ID: "a", Username: "renamed"}
	target := &model.User{ID: "t", Username: "target", Followers: []model.Identity{{UserID: "a", Username: "old-name"}}}

	err := addFollowEdge(actor, target)
	if model.ErrorCode(err) != model.ErrCodeAlreadyFollowing {
		t.Errorf("err = %v, want AlreadyFollowing", err)
	}
}

func TestAddFollowEdge_DoesNotDuplicateFollowings(t *testing.T) {
	actor := &model.User{ID: "a", Username: "actor", Followings: []model.Identity{{UserID: "t", Username: "target"}}}
	target := &model.User{ID: "t", Username: "target"}

	if err := addFollowEdge(actor, target); err != nil {
		t.Fatalf("addFollowEdge returned error: %v", err)
	}
	if len(actor.Followings) != 1 {
		t.Errorf("followings = %v, want single entry", actor.Followings)
	}
	if len(target.Followers) != 1 {
		t.Errorf("followers = %v, want single entry", target.Followers)
	}
}

func TestRemoveFollowEdge_LeavesUnrelatedEntries(t *testing.T) {
	actor := &model.User{ID: "a", Username: "actor", Followings: []model.Identity{
		{UserID: "x", Username: "x"}, {UserID: "t", Username: "target"},
	}}
	target := &model.User{ID: "t", Username: "target", Followers: []model.Identity{
		{UserID: "a", Username: "actor"}, {UserID: "y", Username: "y"},
	}}

	if err := removeFollowEdge(actor, target); err != nil {
		t.Fatalf("removeFollowEdge returned error: %v", err)
	}
	if diff := cmp.Diff([]model.Identity{{UserID: "x", Username: "x"}}, actor.Followings); diff != "" {
		t.Errorf("actor followings mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]model.Identity{{UserID: "y", Username: "y"}}, target.Followers); diff != "" {
		t.Errorf("target followers mismatch (-want +got):\n%s", diff)
	}
}
