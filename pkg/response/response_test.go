package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/shipdesk/internal/apperr"
)

func init() { gin.SetMode(gin.TestMode) }

func perform(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	h(c)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestError_MapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.Validation("missing_field", "name is required"), http.StatusBadRequest, "missing_field"},
		{apperr.NotFound("order_not_found", "order not found"), http.StatusNotFound, "order_not_found"},
		{apperr.New(apperr.KindInsufficientCredit, "insufficient_credit", "insufficient credit"), http.StatusPaymentRequired, "insufficient_credit"},
		{apperr.Authorization("invalid_signature", "bad signature"), http.StatusUnauthorized, "invalid_signature"},
		{errors.New("db down"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		w, body := perform(t, func(c *gin.Context) { Error(c, tc.err) })
		assert.Equal(t, tc.status, w.Code)
		assert.Equal(t, tc.code, body.Code)
	}
}

func TestInternalError_HidesCause(t *testing.T) {
	_, body := perform(t, func(c *gin.Context) { InternalError(c, errors.New("password=secret")) })
	assert.Equal(t, "internal server error", body.Message)
}

func TestSuccess(t *testing.T) {
	w, body := perform(t, func(c *gin.Context) { Success(c, gin.H{"id": 1}) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body.Code)
}
