package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khayalcare/internal/handlers"
	"khayalcare/internal/models"
	"khayalcare/internal/repositories"
	"khayalcare/internal/routes"
	"khayalcare/internal/services"
)

// Полный HTTP-стек на in-memory хранилищах; уведомления отключены.
type testAPI struct {
	router        *gin.Engine
	verifications *repositories.MemoryVerificationRepository
	users         *repositories.MemoryUserRepository
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	verifications := repositories.NewMemoryVerificationRepository()
	daily := repositories.NewMemoryDailyAttemptRepository()
	restrictions := repositories.NewMemoryRestrictionRepository()
	userRepo := repositories.NewMemoryUserRepository()

	guard := services.NewAbuseGuard(restrictions, daily, nil, 5, 4*24*time.Hour)
	dispatcher := services.NewNotificationDispatcher(nil, nil, time.Second, 10*time.Minute)
	verificationSvc := services.NewVerificationService(verifications, guard, dispatcher, 10*time.Minute, 2*time.Minute, 5)

	auth := services.NewAuthService([]byte("test-secret"), time.Hour)
	users := services.NewUserService(userRepo, nil, auth)

	verificationHandler := handlers.NewVerificationHandler(verificationSvc, users, auth, 10, 2, 5)
	authHandler := handlers.NewAuthHandler(users, auth)

	router := routes.SetupRoutes(gin.New(), authHandler, verificationHandler, []byte("test-secret"))
	return &testAPI{router: router, verifications: verifications, users: userRepo}
}

func (a *testAPI) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) pendingCode(t *testing.T, email, phone string, purpose models.VerificationPurpose) string {
	t.Helper()
	rec, err := a.verifications.GetPending(context.Background(), email, phone, purpose)
	require.NoError(t, err)
	require.NotNil(t, rec, "pending verification expected for %s", email)
	return rec.Code
}

func registrationBody() gin.H {
	return gin.H{
		"username": "ali",
		"name":     "Ali Khan",
		"email":    "ali@example.com",
		"phone":    "+923001234567",
		"password": "Passw0rd12",
		"role":     "subscriber",
		"city":     "Karachi",
	}
}

func TestRegisterConfirmFlow(t *testing.T) {
	api := newTestAPI(t)

	w := api.post(t, "/auth/register", registrationBody())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 10, resp["expires_in_minutes"])
	assert.EqualValues(t, 2, resp["can_resend_after_minutes"])
	assert.EqualValues(t, 5, resp["daily_limit"])

	code := api.pendingCode(t, "ali@example.com", "+923001234567", models.PurposeRegistration)

	w = api.post(t, "/auth/register/confirm", gin.H{
		"email": "ali@example.com",
		"phone": "+923001234567",
		"code":  code,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var confirm map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &confirm))
	assert.NotEmpty(t, confirm["token"])

	user, err := api.users.GetByEmail(context.Background(), "ali@example.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.True(t, user.IsVerified)

	// логин свежесозданным аккаунтом
	w = api.post(t, "/auth/login", gin.H{"email": "Ali@Example.com", "password": "Passw0rd12"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	api := newTestAPI(t)

	body := registrationBody()
	body["password"] = "password1"
	w := api.post(t, "/auth/register", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	api := newTestAPI(t)

	body := registrationBody()
	body["role"] = "warlord"
	w := api.post(t, "/auth/register", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterConflictOnExistingUser(t *testing.T) {
	api := newTestAPI(t)

	w := api.post(t, "/auth/register", registrationBody())
	require.Equal(t, http.StatusOK, w.Code)
	code := api.pendingCode(t, "ali@example.com", "+923001234567", models.PurposeRegistration)
	w = api.post(t, "/auth/register/confirm", gin.H{
		"email": "ali@example.com", "phone": "+923001234567", "code": code,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = api.post(t, "/auth/register", registrationBody())
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestImmediateResendReturns429(t *testing.T) {
	api := newTestAPI(t)

	w := api.post(t, "/auth/register", registrationBody())
	require.Equal(t, http.StatusOK, w.Code)

	w = api.post(t, "/auth/register/resend", gin.H{
		"email": "ali@example.com",
		"phone": "+923001234567",
	})
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	retry, ok := resp["retry_after_seconds"].(float64)
	require.True(t, ok, "retry_after_seconds expected in %s", w.Body.String())
	assert.Greater(t, retry, float64(0))
}

func TestConfirmWrongCodeReportsRemainingAttempts(t *testing.T) {
	api := newTestAPI(t)

	w := api.post(t, "/auth/register", registrationBody())
	require.Equal(t, http.StatusOK, w.Code)
	code := api.pendingCode(t, "ali@example.com", "+923001234567", models.PurposeRegistration)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	w = api.post(t, "/auth/register/confirm", gin.H{
		"email": "ali@example.com", "phone": "+923001234567", "code": wrong,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 4, resp["attempts_remaining"])
}

func TestConfirmWithoutPendingVerification(t *testing.T) {
	api := newTestAPI(t)

	w := api.post(t, "/auth/register/confirm", gin.H{
		"email": "ghost@example.com", "phone": "+920000000000", "code": "123456",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No pending verification found")
}

func TestPasswordResetFlow(t *testing.T) {
	api := newTestAPI(t)

	// создаём аккаунт через обычный флоу
	w := api.post(t, "/auth/register", registrationBody())
	require.Equal(t, http.StatusOK, w.Code)
	code := api.pendingCode(t, "ali@example.com", "+923001234567", models.PurposeRegistration)
	w = api.post(t, "/auth/register/confirm", gin.H{
		"email": "ali@example.com", "phone": "+923001234567", "code": code,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = api.post(t, "/auth/password-reset/request", gin.H{"identifier": "ali"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resetCode := api.pendingCode(t, "ali@example.com", "+923001234567", models.PurposePasswordReset)
	w = api.post(t, "/auth/password-reset/verify", gin.H{
		"email":        "ali@example.com",
		"phone":        "+923001234567",
		"code":         resetCode,
		"new_password": "NewPassw0rd1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// старый пароль больше не работает, новый — работает
	w = api.post(t, "/auth/login", gin.H{"email": "ali@example.com", "password": "Passw0rd12"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = api.post(t, "/auth/login", gin.H{"email": "ali@example.com", "password": "NewPassw0rd1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPasswordResetDoesNotLeakAccounts(t *testing.T) {
	api := newTestAPI(t)

	w := api.post(t, "/auth/password-reset/request", gin.H{"identifier": "nobody@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "If the account exists")
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRouteWithToken(t *testing.T) {
	api := newTestAPI(t)

	w := api.post(t, "/auth/register", registrationBody())
	require.Equal(t, http.StatusOK, w.Code)
	code := api.pendingCode(t, "ali@example.com", "+923001234567", models.PurposeRegistration)
	w = api.post(t, "/auth/register/confirm", gin.H{
		"email": "ali@example.com", "phone": "+923001234567", "code": code,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var confirm struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &confirm))

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+confirm.Token)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "subscriber")
}
