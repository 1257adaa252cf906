package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kevinaaaquil/library/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const secret = "test-secret"

func echoUser(w http.ResponseWriter, r *http.Request) {
	id, _ := UserIDFromContext(r.Context())
	w.Write([]byte(id.Hex() + " " + RoleFromContext(r.Context())))
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthRoundTrip(t *testing.T) {
	m := &models.Member{ID: primitive.NewObjectID(), Email: "ada@example.com", Role: models.RoleAdmin}
	token, err := IssueToken(secret, m, time.Hour)
	require.NoError(t, err)

	rec := serve(Auth(secret)(http.HandlerFunc(echoUser)), "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, m.ID.Hex()+" admin", rec.Body.String())
}

func TestAuthRejects(t *testing.T) {
	m := &models.Member{ID: primitive.NewObjectID(), Role: models.RoleStudent}
	expired, err := IssueToken(secret, m, -time.Minute)
	require.NoError(t, err)
	otherKey, err := IssueToken("other-secret", m, time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: m.ID.Hex()}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"garbage":        "Bearer abc.def.ghi",
		"expired":        "Bearer " + expired,
		"wrong key":      "Bearer " + otherKey,
		"alg none":       "Bearer " + none,
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			rec := serve(Auth(secret)(http.HandlerFunc(echoUser)), header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	h := Auth(secret)(RequireRole(models.RoleAdmin)(http.HandlerFunc(echoUser)))

	student, err := IssueToken(secret, &models.Member{ID: primitive.NewObjectID(), Role: models.RoleStudent}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(h, "Bearer "+student).Code)

	admin, err := IssueToken(secret, &models.Member{ID: primitive.NewObjectID(), Role: models.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(h, "Bearer "+admin).Code)
}
