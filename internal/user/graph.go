package user

import "github.com/hitoshi/kizuna/internal/model"

// containsIdentity はlistにuserIDのIdentityが含まれるかを返す。
func containsIdentity(list []model.Identity, userID string) bool {
	for _, id := range list {
		if id.UserID == userID {
			return true
		}
	}
	return false
}

// withoutIdentity はlistからuserIDのIdentityを除いた新しいスライスを返す。順序は保持する。
func withoutIdentity(list []model.Identity, userID string) []model.Identity {
	out := make([]model.Identity, 0, len(list))
	for _, id := range list {
		if id.UserID != userID {
			out = append(out, id)
		}
	}
	return out
}

// addFollowEdge はactorがtargetをフォローする辺を両側に追加する。
// 既にtarget.Followersにactorが含まれる場合はAlreadyFollowingを返し、何も変更しない。
func addFollowEdge(actor, target *model.User) error {
	if actor.ID == target.ID {
		return model.NewSelfReferenceError("follow")
	}
	if containsIdentity(target.Followers, actor.ID) {
		return model.NewAlreadyFollowingError()
	}
	target.Followers = append(target.Followers, actor.Identity())
	if !containsIdentity(actor.Followings, target.ID) {
		actor.Followings = append(actor.Followings, target.Identity())
	}
	return nil
}

// removeFollowEdge はactorからtargetへの辺を両側から取り除く。
// actor.Followingsにtargetが含まれない場合はNotFollowingを返し、何も変更しない。
func removeFollowEdge(actor, target *model.User) error {
	if actor.ID == target.ID {
		return model.NewSelfReferenceError("unfollow")
	}
	if !containsIdentity(actor.Followings, target.ID) {
		return model.NewNotFollowingError()
	}
	actor.Followings = withoutIdentity(actor.Followings, target.ID)
	target.Followers = withoutIdentity(target.Followers, actor.ID)
	return nil
}
