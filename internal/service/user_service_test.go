package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ragpro-go/internal/apperr"
	"ragpro-go/internal/model"
	"ragpro-go/pkg/token"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: make(map[uint]model.User)}
}

func (f *fakeUserRepo) Create(user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.ID = f.nextID
	f.nextID++
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) FindByEmail(email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) FindByUsername(username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) FindByID(userID uint) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (f *fakeUserRepo) FindAll() ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUserRepo) Delete(userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, userID)
	return nil
}

func (f *fakeUserRepo) Count() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.users)), nil
}

func newUserService() (UserService, *fakeUserRepo) {
	repo := newFakeUserRepo()
	jwtManager := token.NewJWTManager("test-secret", 1, 1)
	return NewUserService(repo, jwtManager), repo
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newUserService()

	user, err := svc.Register("alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "USER", user.Role)
	assert.NotEqual(t, "s3cret-pass", user.Password, "密码必须以哈希形式存储")

	access, refresh, err := svc.Login("alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newUserService()

	_, err := svc.Register("alice", "alice@example.com", "password1")
	require.NoError(t, err)

	_, err = svc.Register("alice2", "alice@example.com", "password2")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	svc, _ := newUserService()

	_, err := svc.Register("alice", "alice@example.com", "password1")
	require.NoError(t, err)

	_, err = svc.Register("alice", "other@example.com", "password2")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newUserService()

	_, err := svc.Register("alice", "alice@example.com", "correct-pass")
	require.NoError(t, err)

	_, _, err = svc.Login("alice@example.com", "wrong-pass")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newUserService()

	_, _, err := svc.Login("nobody@example.com", "whatever")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestRefreshTokenIssuesNewPair(t *testing.T) {
	svc, _ := newUserService()

	_, err := svc.Register("alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	_, refresh, err := svc.Login("alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	newAccess, newRefresh, err := svc.RefreshToken(refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.NotEmpty(t, newRefresh)
}

func TestRefreshTokenRejectsGarbage(t *testing.T) {
	svc, _ := newUserService()

	_, _, err := svc.RefreshToken("not-a-jwt")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestRefreshTokenRejectsDeletedUser(t *testing.T) {
	svc, repo := newUserService()

	user, err := svc.Register("alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	_, refresh, err := svc.Login("alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(user.ID))

	_, _, err = svc.RefreshToken(refresh)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}
