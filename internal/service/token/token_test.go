package token

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bmartins/loja-online/internal/models"
)

var (
	testSecret  = []byte("access-secret")
	testRefresh = []byte("refresh-secret")
)

func testService(t *testing.T) *TokenService {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.RefreshToken{}))
	return &TokenService{DB: db, JWTSecret: testSecret, RefreshSecret: testRefresh}
}

func TestSignAccessTokenClaims(t *testing.T) {
	signed, err := SignAccessToken(7, "admin", testSecret)
	require.NoError(t, err)

	tok, err := jwt.Parse(signed, func(t *jwt.Token) (interface{}, error) { return testSecret, nil })
	require.NoError(t, err)
	require.True(t, tok.Valid)

	claims := tok.Claims.(jwt.MapClaims)
	require.Equal(t, float64(7), claims["sub"])
	require.Equal(t, "admin", claims["role"])
	_, hasType := claims["typ"]
	require.False(t, hasType)
}

func TestRotateTokenIssuesNewPair(t *testing.T) {
	svc := testService(t)

	refresh, err := SignRefreshToken(3, "cliente", testRefresh)
	require.NoError(t, err)
	require.NoError(t, SaveRefreshToken(svc.DB, refresh, 3))

	access, newRefresh, claims, err := svc.RotateToken(refresh)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, newRefresh)
	require.Equal(t, float64(3), claims["sub"])

	var stored models.RefreshToken
	require.NoError(t, svc.DB.Where("token = ?", newRefresh).First(&stored).Error)
	require.Equal(t, uint(3), stored.UserID)
}

func TestValidateRefreshRejectsRevoked(t *testing.T) {
	svc := testService(t)

	refresh, err := SignRefreshToken(3, "cliente", testRefresh)
	require.NoError(t, err)
	require.NoError(t, SaveRefreshToken(svc.DB, refresh, 3))

	require.NoError(t, svc.DB.Model(&models.RefreshToken{}).
		Where("token = ?", refresh).Update("revoked", true).Error)

	_, err = ValidateRefresh(refresh, testRefresh, svc.DB)
	require.ErrorContains(t, err, "revoked")
}

func TestValidateRefreshRejectsAccessToken(t *testing.T) {
	svc := testService(t)

	access, err := SignAccessToken(3, "cliente", testRefresh)
	require.NoError(t, err)

	_, err = ValidateRefresh(access, testRefresh, svc.DB)
	require.ErrorContains(t, err, "not a refresh token")
}

func TestValidateRefreshRejectsUnknownToken(t *testing.T) {
	svc := testService(t)

	refresh, err := SignRefreshToken(3, "cliente", testRefresh)
	require.NoError(t, err)

	_, err = ValidateRefresh(refresh, testRefresh, svc.DB)
	require.ErrorContains(t, err, "not found")
}

func middlewareContext(t *testing.T, svc *TokenService, cookies ...*http.Cookie) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestAutoRefreshMiddlewarePassesValidAccess(t *testing.T) {
	svc := testService(t)

	access, err := SignAccessToken(5, "cliente", testSecret)
	require.NoError(t, err)

	c, _ := middlewareContext(t, svc, &http.Cookie{Name: "accessToken", Value: access})

	called := false
	handler := svc.AutoRefreshMiddleware(func(c echo.Context) error {
		called = true
		return nil
	})
	require.NoError(t, handler(c))
	require.True(t, called)
	require.Equal(t, uint(5), c.Get("userID"))
	require.Equal(t, "cliente", c.Get("role"))
}

func TestAutoRefreshMiddlewareRotatesOnMissingAccess(t *testing.T) {
	svc := testService(t)

	refresh, err := SignRefreshToken(5, "cliente", testRefresh)
	require.NoError(t, err)
	require.NoError(t, SaveRefreshToken(svc.DB, refresh, 5))

	c, rec := middlewareContext(t, svc, &http.Cookie{Name: "refreshToken", Value: refresh})

	handler := svc.AutoRefreshMiddleware(func(c echo.Context) error { return nil })
	require.NoError(t, handler(c))

	names := make([]string, 0)
	for _, ck := range rec.Result().Cookies() {
		names = append(names, ck.Name)
	}
	require.Contains(t, names, "accessToken")
	require.Contains(t, names, "refreshToken")
}

func TestAutoRefreshMiddlewareAdminRejectsClient(t *testing.T) {
	svc := testService(t)

	access, err := SignAccessToken(5, "cliente", testSecret)
	require.NoError(t, err)

	c, _ := middlewareContext(t, svc, &http.Cookie{Name: "accessToken", Value: access})

	handler := svc.AutoRefreshMiddlewareAdmin(func(c echo.Context) error { return nil })
	err = handler(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusForbidden, he.Code)
}

func TestAutoRefreshMiddlewareRejectsMissingCookies(t *testing.T) {
	svc := testService(t)

	c, _ := middlewareContext(t, svc)
	handler := svc.AutoRefreshMiddleware(func(c echo.Context) error { return nil })
	err := handler(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestCreateCookieAttributes(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	ck := CreateCookie("accessToken", "abc", "/", exp)
	require.Equal(t, "accessToken", ck.Name)
	require.True(t, ck.HttpOnly)
	require.True(t, ck.Secure)
	require.Equal(t, http.SameSiteLaxMode, ck.SameSite)
}
