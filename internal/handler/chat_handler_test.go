package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newChatContext(t *testing.T, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func TestAsk_RejectsOutOfRangeTemperature(t *testing.T) {
	h := NewChatHandler(nil)

	for _, body := range []string{
		`{"query":"q","temperature":2.5}`,
		`{"query":"q","temperature":-0.1}`,
	} {
		c, w := newChatContext(t, body)
		h.Ask(c)
		require.Contains(t, w.Body.String(), "temperature")
		require.NotContains(t, w.Header().Get("Content-Type"), "text/event-stream")
	}
}

func TestAsk_RejectsEmptyQuery(t *testing.T) {
	h := NewChatHandler(nil)
	c, w := newChatContext(t, `{"query":""}`)
	h.Ask(c)
	require.Contains(t, w.Body.String(), "query is required")
}
