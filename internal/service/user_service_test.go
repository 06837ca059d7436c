package service

import (
	"testing"
	"time"

	"chat-sentiment-demo/backend/internal/models"
	"chat-sentiment-demo/backend/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUserService(t *testing.T) *UserService {
	t.Helper()
	return NewUserService(setupTestDB(t), jwt.NewService("test-secret", time.Hour))
}

func TestCreateUser(t *testing.T) {
	svc := newTestUserService(t)

	user, token, err := svc.CreateUser(&models.CreateUserRequest{
		Name:     "Dana",
		Email:    "dana@example.com",
		Password: "supersecret",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, token)
	assert.Equal(t, string(jwt.RoleUser), user.Role)
	// Password must be stored hashed
	assert.NotEqual(t, "supersecret", user.Password)
	assert.True(t, models.CheckPasswordHash("supersecret", user.Password))
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	svc := newTestUserService(t)

	req := &models.CreateUserRequest{Name: "Dana", Email: "dana@example.com", Password: "supersecret"}
	_, _, err := svc.CreateUser(req)
	require.NoError(t, err)

	_, _, err = svc.CreateUser(req)
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestLogin(t *testing.T) {
	svc := newTestUserService(t)

	_, _, err := svc.CreateUser(&models.CreateUserRequest{
		Name:     "Dana",
		Email:    "dana@example.com",
		Password: "supersecret",
	})
	require.NoError(t, err)

	user, token, err := svc.Login(&models.LoginRequest{
		Email:    "dana@example.com",
		Password: "supersecret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "dana@example.com", user.Email)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc := newTestUserService(t)

	_, _, err := svc.CreateUser(&models.CreateUserRequest{
		Name:     "Dana",
		Email:    "dana@example.com",
		Password: "supersecret",
	})
	require.NoError(t, err)

	_, _, err = svc.Login(&models.LoginRequest{
		Email:    "dana@example.com",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(&models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "supersecret",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGetUserByID(t *testing.T) {
	svc := newTestUserService(t)

	created, _, err := svc.CreateUser(&models.CreateUserRequest{
		Name:     "Dana",
		Email:    "dana@example.com",
		Password: "supersecret",
	})
	require.NoError(t, err)

	user, err := svc.GetUserByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dana", user.Name)

	_, err = svc.GetUserByID(9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
