package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khayalcare/internal/models"
	"khayalcare/internal/repositories"
)

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		password string
		ok       bool
	}{
		{"Passw0rd12", true},
		{"Aa12bcde", true},
		{"short1A", false},       // меньше 8 символов
		{"alllower12", false},    // нет верхнего регистра
		{"ALLUPPER12", false},    // нет нижнего регистра
		{"Password1", false},     // только одна цифра
		{"PasswordAB", false},    // цифр нет вообще
	}
	for _, tc := range cases {
		err := ValidatePassword(tc.password)
		if tc.ok {
			assert.NoError(t, err, "password %q", tc.password)
		} else {
			assert.Error(t, err, "password %q", tc.password)
		}
	}
}

func registrationPayload(t *testing.T) json.RawMessage {
	t.Helper()
	req := models.RegistrationRequest{
		Username: "ali",
		Name:     "Ali Khan",
		Email:    "ali@example.com",
		Phone:    "+923001234567",
		Password: "Passw0rd12",
		Role:     models.RoleSubscriber,
		City:     "Karachi",
	}
	payload, err := req.Marshal()
	require.NoError(t, err)
	return payload
}

func TestRegisterVerifiedCreatesUser(t *testing.T) {
	repo := repositories.NewMemoryUserRepository()
	auth := NewAuthService([]byte("test-secret"), time.Hour)
	svc := NewUserService(repo, nil, auth)

	user, err := svc.RegisterVerified(context.Background(), registrationPayload(t))
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "ali@example.com", user.Email)
	assert.Equal(t, models.RoleSubscriber, user.Role)
	assert.True(t, user.IsVerified)
	assert.NotEqual(t, "Passw0rd12", user.PasswordHash)
	assert.NoError(t, auth.CheckPassword(user.PasswordHash, "Passw0rd12"))
}

func TestRegisterVerifiedRejectsTakenIdentity(t *testing.T) {
	repo := repositories.NewMemoryUserRepository()
	auth := NewAuthService([]byte("test-secret"), time.Hour)
	svc := NewUserService(repo, nil, auth)

	_, err := svc.RegisterVerified(context.Background(), registrationPayload(t))
	require.NoError(t, err)

	// ключ заняли, пока код ждал подтверждения
	_, err = svc.RegisterVerified(context.Background(), registrationPayload(t))
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRegisterVerifiedRejectsBadPayload(t *testing.T) {
	repo := repositories.NewMemoryUserRepository()
	auth := NewAuthService([]byte("test-secret"), time.Hour)
	svc := NewUserService(repo, nil, auth)

	_, err := svc.RegisterVerified(context.Background(), nil)
	assert.Error(t, err)

	_, err = svc.RegisterVerified(context.Background(), json.RawMessage(`{"role":"warlord"}`))
	assert.Error(t, err)
}

func TestGetByIdentifier(t *testing.T) {
	repo := repositories.NewMemoryUserRepository()
	auth := NewAuthService([]byte("test-secret"), time.Hour)
	svc := NewUserService(repo, nil, auth)

	_, err := svc.RegisterVerified(context.Background(), registrationPayload(t))
	require.NoError(t, err)

	byEmail, err := svc.GetByIdentifier(context.Background(), "ALI@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "ali", byEmail.Username)

	byUsername, err := svc.GetByIdentifier(context.Background(), "ali")
	require.NoError(t, err)
	require.NotNil(t, byUsername)
	assert.Equal(t, "ali@example.com", byUsername.Email)

	missing, err := svc.GetByIdentifier(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdatePassword(t *testing.T) {
	repo := repositories.NewMemoryUserRepository()
	auth := NewAuthService([]byte("test-secret"), time.Hour)
	svc := NewUserService(repo, nil, auth)

	_, err := svc.RegisterVerified(context.Background(), registrationPayload(t))
	require.NoError(t, err)

	require.NoError(t, svc.UpdatePassword(context.Background(), "ali@example.com", "NewPassw0rd1"))

	user, err := svc.GetByEmail(context.Background(), "ali@example.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NoError(t, auth.CheckPassword(user.PasswordHash, "NewPassw0rd1"))
	assert.Error(t, auth.CheckPassword(user.PasswordHash, "Passw0rd12"))

	assert.Error(t, svc.UpdatePassword(context.Background(), "ghost@example.com", "NewPassw0rd1"))
}
