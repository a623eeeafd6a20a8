package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/bmartins/loja-online/internal/models"
)

func newAuthHandler(t *testing.T) (*AuthHandler, *echo.Echo) {
	t.Helper()
	return &AuthHandler{
		DB:            testDB(t),
		JWTSecret:     []byte("test-secret"),
		RefreshSecret: []byte("test-refresh"),
	}, echo.New()
}

func TestRegisterCreatesClient(t *testing.T) {
	h, e := newAuthHandler(t)

	body := `{"name":"Ana","email":"ana@example.com","password":"segredo123","phone":"11987654321"}`
	req, rec := jsonRequest(http.MethodPost, "/api/v1/auth/register", body)
	require.NoError(t, h.Register(e.NewContext(req, rec)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var user models.User
	require.NoError(t, h.DB.Where("email = ?", "ana@example.com").First(&user).Error)
	require.Equal(t, "cliente", user.Role)
	require.True(t, user.Active)
	require.NotEqual(t, "segredo123", user.PasswordHash)

	// password hash never leaves the API
	require.NotContains(t, rec.Body.String(), "segredo123")
	require.NotContains(t, rec.Body.String(), user.PasswordHash)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	h, e := newAuthHandler(t)

	body := `{"name":"Ana","email":"ana@example.com","password":"segredo123"}`
	req, rec := jsonRequest(http.MethodPost, "/api/v1/auth/register", body)
	require.NoError(t, h.Register(e.NewContext(req, rec)))

	req, rec = jsonRequest(http.MethodPost, "/api/v1/auth/register", body)
	err := h.Register(e.NewContext(req, rec))
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusBadRequest, he.Code)
}

func TestLoginSetsCookiesAndStoresRefreshToken(t *testing.T) {
	h, e := newAuthHandler(t)

	body := `{"name":"Ana","email":"ana@example.com","password":"segredo123"}`
	req, rec := jsonRequest(http.MethodPost, "/api/v1/auth/register", body)
	require.NoError(t, h.Register(e.NewContext(req, rec)))

	req, rec = jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"ana@example.com","password":"segredo123"}`)
	require.NoError(t, h.Login(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		IsAdmin      bool   `json:"is_admin"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.False(t, resp.IsAdmin)

	cookies := rec.Result().Cookies()
	names := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		names = append(names, ck.Name)
	}
	require.Contains(t, names, "accessToken")
	require.Contains(t, names, "refreshToken")

	var stored models.RefreshToken
	require.NoError(t, h.DB.Where("token = ?", resp.RefreshToken).First(&stored).Error)
	require.False(t, stored.Revoked)
}

func TestLoginWrongPassword(t *testing.T) {
	h, e := newAuthHandler(t)

	body := `{"name":"Ana","email":"ana@example.com","password":"segredo123"}`
	req, rec := jsonRequest(http.MethodPost, "/api/v1/auth/register", body)
	require.NoError(t, h.Register(e.NewContext(req, rec)))

	req, rec = jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"ana@example.com","password":"errada"}`)
	err := h.Login(e.NewContext(req, rec))
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	h, e := newAuthHandler(t)

	body := `{"name":"Ana","email":"ana@example.com","password":"segredo123"}`
	req, rec := jsonRequest(http.MethodPost, "/api/v1/auth/register", body)
	require.NoError(t, h.Register(e.NewContext(req, rec)))

	req, rec = jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"ana@example.com","password":"segredo123"}`)
	require.NoError(t, h.Login(e.NewContext(req, rec)))

	var resp struct {
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	req, rec = jsonRequest(http.MethodPost, "/api/v1/auth/logout", "")
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: resp.RefreshToken})
	require.NoError(t, h.Logout(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	var stored models.RefreshToken
	require.NoError(t, h.DB.Where("token = ?", resp.RefreshToken).First(&stored).Error)
	require.True(t, stored.Revoked)
}
