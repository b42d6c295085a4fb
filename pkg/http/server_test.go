package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routes func(e *echo.Echo)

func (r routes) RegisterRoutes(e *echo.Echo) { r(e) }

type echoRequest struct {
	Symbol string `json:"symbol" validate:"required,max=10"`
	Limit  int    `json:"limit" default:"5" validate:"gte=1,lte=50"`
}

func newTestServer(opts ...ServerOption) *Server {
	h := routes(func(e *echo.Echo) {
		e.GET("/boom", func(c echo.Context) error { panic("boom") })
		e.POST("/echo", func(c echo.Context) error {
			var req echoRequest
			if errs := ReadAndValidateRequest(c, &req); errs != nil {
				return BadRequestResponse(c, errs)
			}
			return SuccessResponse(c, req)
		})
		e.GET("/fail", func(c echo.Context) error {
			return AppErrorResponse(c, TooManyRequestsError("slow down").WithError(errors.New("429 from upstream")))
		})
	})
	return NewServer(h, nil, append([]ServerOption{WithMetricsPath("")}, opts...)...)
}

func serve(s *Server, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthCarriesRequestID(t *testing.T) {
	rec := serve(newTestServer(), http.MethodGet, "/health", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	rid := rec.Header().Get(echo.HeaderXRequestID)
	require.NotEmpty(t, rid)
	assert.Equal(t, rid, decode(t, rec)["request_id"])
}

func TestRecoverAnswers500(t *testing.T) {
	rec := serve(newTestServer(), http.MethodGet, "/boom", "", map[string]string{echo.HeaderXRequestID: "req-1"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "req-1", body["request_id"])
	assert.NotContains(t, rec.Body.String(), "goroutine")
}

func TestValidationAndDefaults(t *testing.T) {
	s := newTestServer()

	rec := serve(s, http.MethodPost, "/echo", `{"symbol":"AAPL"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(5), decode(t, rec)["data"].(map[string]interface{})["limit"])

	rec = serve(s, http.MethodPost, "/echo", `{"limit":99}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errs := decode(t, rec)["data"].([]interface{})
	require.Len(t, errs, 2)
	first := errs[0].(map[string]interface{})
	assert.Equal(t, "ERR_REQUIRED", first["code"])
	assert.Equal(t, "symbol", first["field"])
	assert.Equal(t, "limit must be less than or equal to 50", errs[1].(map[string]interface{})["message"])

	rec = serve(s, http.MethodPost, "/echo", `{"symbol":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAppErrorKeepsCauseOutOfBody(t *testing.T) {
	rec := serve(newTestServer(), http.MethodGet, "/fail", "", nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_RATE_LIMITED")
	assert.NotContains(t, rec.Body.String(), "upstream")
}

func TestBodyLimit(t *testing.T) {
	s := newTestServer(WithBodyLimit("1K"))
	big := `{"symbol":"` + strings.Repeat("A", 2048) + `"}`

	rec := serve(s, http.MethodPost, "/echo", big, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	rec := serve(newTestServer(), http.MethodOptions, "/echo", "", map[string]string{
		echo.HeaderOrigin:                     "https://desk.example",
		echo.HeaderAccessControlRequestMethod: http.MethodPost,
	})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	rec = serve(newTestServer(WithCORS(false)), http.MethodGet, "/health", "", map[string]string{
		echo.HeaderOrigin: "https://desk.example",
	})
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
