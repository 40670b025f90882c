package user

import (
	"context"
	"sort"
	"sync"

	"github.com/hitoshi/kizuna/internal/model"
	"github.com/hitoshi/kizuna/internal/repository"
)

// memUserRepo はテスト用のインメモリUserRepository。
// MutateFollowEdgeはコピーに対してmutateを適用し、成功時のみ保存する。
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User

	mutateErr error
	createErr error
}

func newMemUserRepo(users ...*model.User) *memUserRepo {
	r := &memUserRepo{users: make(map[string]*model.User)}
	for _, u := range users {
		r.users[u.ID] = cloneUser(u)
	}
	return r
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	c.Links = append([]string(nil), u.Links...)
	c.Followers = append([]model.Identity{}, u.Followers...)
	c.Followings = append([]model.Identity{}, u.Followings...)
	return &c
}

func (r *memUserRepo) get(id string) *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneUser(r.users[id])
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	return r.get(id), nil
}

func (r *memUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) List(_ context.Context, offset, limit int) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, cloneUser(u))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memUserRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

func (r *memUserRepo) Create(_ context.Context, user *model.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return repository.ErrUsernameTaken
		}
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *memUserRepo) UpdateProfile(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return nil
	}
	updated := cloneUser(user)
	updated.Followers = stored.Followers
	updated.Followings = stored.Followings
	r.users[user.ID] = updated
	return nil
}

func (r *memUserRepo) MutateFollowEdge(_ context.Context, actorID, targetID string, mutate repository.FollowMutation) (*model.User, *model.User, error) {
	if r.mutateErr != nil {
		return nil, nil, r.mutateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	actor := cloneUser(r.users[actorID])
	if actor == nil {
		return nil, nil, nil
	}
	target := cloneUser(r.users[targetID])
	if err := mutate(actor, target); err != nil {
		return nil, nil, err
	}
	r.users[actor.ID] = cloneUser(actor)
	if target != nil {
		r.users[target.ID] = cloneUser(target)
	}
	return actor, target, nil
}

func (r *memUserRepo) DeleteByID(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return false, nil
	}
	delete(r.users, id)
	for _, u := range r.users {
		u.Followers = withoutIdentity(u.Followers, id)
		u.Followings = withoutIdentity(u.Followings, id)
	}
	return true, nil
}

var _ repository.UserRepository = (*memUserRepo)(nil)

// --- その他のモック ---

type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

type identitySanitizer struct{}

func (identitySanitizer) Sanitize(raw string) string { return raw }

type mockNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	err   error
}

type notifyCall struct {
	UserID  string
	Message string
}

func (m *mockNotifier) Notify(_ context.Context, userID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, notifyCall{UserID: userID, Message: message})
	return m.err
}

type mockRecorder struct {
	ops []string
}

func (m *mockRecorder) RecordFollowOp(op, result string) {
	m.ops = append(m.ops, op+":"+result)
}
