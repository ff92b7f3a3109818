package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"soil-monitor/internal/core/auth"
	"soil-monitor/internal/core/config"
	"soil-monitor/internal/core/ratelimit"
	"soil-monitor/internal/testutil"
)

func init() { gin.SetMode(gin.TestMode) }

type testAPI struct {
	t *testing.T
	h http.Handler
}

func newTestAPI(t *testing.T, mutate func(*Deps)) *testAPI {
	cfg := &config.Config{
		Limits: config.Limits{RPS: 1000, Burst: 1000, MaxInFlight: 50, MaxBodyBytes: 1 << 20, TimeoutSec: 5},
		Auth:   config.Auth{BcryptCost: bcrypt.MinCost},
	}
	d := Deps{
		Logger: zap.NewNop(),
		DB:     testutil.NewDB(t),
		Config: cfg,
		JWT:    &auth.JWTer{Secret: []byte("test"), Issuer: "soil-monitor", TTL: time.Hour},
	}
	if mutate != nil {
		mutate(&d)
	}
	return &testAPI{t: t, h: NewAPIEngine(d)}
}

func (a *testAPI) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type loginBody struct {
	Message string `json:"message"`
	UserID  uint   `json:"userId"`
	Token   string `json:"token"`
}

type report struct {
	ReadingID  uint              `json:"readingId"`
	Conditions map[string]string `json:"conditions"`
	Treatments map[string]string `json:"treatments"`
}

func (a *testAPI) registerAndLogin(email string) loginBody {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/usuarios", gin.H{"name": "Ana", "email": email, "secret": "segredo"})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPost, "/login", gin.H{"email": email, "secret": "segredo"})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[loginBody](a.t, rec)
}

func reading(userID uint) gin.H {
	return gin.H{
		"userId": userID, "ph": 5.0, "moisture": 30, "temperature": 20,
		"nitrogen": 35, "phosphorus": 20, "potassium": 25, "microbiome": 5.0,
	}
}

func TestRegisterAndLogin(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(http.MethodPost, "/usuarios", gin.H{"name": "Ana", "email": "ana@example.com", "secret": "pw"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Usuário criado com sucesso!", decode[gin.H](t, rec)["message"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = api.do(http.MethodPost, "/usuarios", gin.H{"name": "Ana 2", "email": "ana@example.com", "secret": "pw"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DuplicateKey", decode[errBody](t, rec).Error)

	rec = api.do(http.MethodPost, "/usuarios", gin.H{"name": "Sem senha", "email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationError", decode[errBody](t, rec).Error)

	rec = api.do(http.MethodPost, "/login", gin.H{"email": "ana@example.com", "secret": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[loginBody](t, rec)
	assert.Equal(t, "Login bem-sucedido!", body.Message)
	assert.NotZero(t, body.UserID)
	assert.NotEmpty(t, body.Token)

	rec = api.do(http.MethodPost, "/login", gin.H{"email": "ana@example.com", "secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", decode[errBody](t, rec).Error)

	rec = api.do(http.MethodPost, "/login", gin.H{"email": "nobody@example.com", "secret": "pw"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", decode[errBody](t, rec).Error)
}

func TestSubmitReadingAndQueryAnomalies(t *testing.T) {
	api := newTestAPI(t, nil)
	uid := api.registerAndLogin("ana@example.com").UserID

	rec := api.do(http.MethodPost, "/api/solo", reading(uid))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	firstID := uint(decode[gin.H](t, rec)["readingId"].(float64))

	clean := reading(uid)
	clean["ph"] = 6.5
	rec = api.do(http.MethodPost, "/api/solo", clean)
	require.Equal(t, http.StatusCreated, rec.Code)

	zeros := gin.H{"userId": uid, "ph": 0, "moisture": 0, "temperature": 0, "nitrogen": 0, "phosphorus": 0, "potassium": 0, "microbiome": 0}
	rec = api.do(http.MethodPost, "/api/solo", zeros)
	require.Equal(t, http.StatusCreated, rec.Code, "zero is a valid measurement")

	rec = api.do(http.MethodGet, fmt.Sprintf("/api/condicoes_anormais/%d", uid), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reports := decode[[]report](t, rec)
	require.Len(t, reports, 2)
	assert.Equal(t, firstID, reports[0].ReadingID)
	assert.Equal(t, map[string]string{"ph": "Baixo (5.0). Ação: aumentar."}, reports[0].Conditions)
	assert.Equal(t, map[string]string{"ph": "Adicionar calcário para aumentar o pH."}, reports[0].Treatments)
	assert.Len(t, reports[1].Conditions, 7)

	rec = api.do(http.MethodGet, "/api/condicoes_anormais/999", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = api.do(http.MethodGet, fmt.Sprintf("/api/condicoes_anormais/%d/xlsx", uid), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.NotZero(t, rec.Body.Len())
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func TestSubmitReadingValidation(t *testing.T) {
	api := newTestAPI(t, nil)
	uid := api.registerAndLogin("ana@example.com").UserID

	missing := reading(uid)
	delete(missing, "microbiome")
	rec := api.do(http.MethodPost, "/api/solo", missing)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationError", decode[errBody](t, rec).Error)

	bad := reading(uid)
	bad["ph"] = "ácido"
	rec = api.do(http.MethodPost, "/api/solo", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/api/solo", `{"userId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/api/solo", reading(uid+50))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/api/condicoes_anormais/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnomalyAuditEndpoint(t *testing.T) {
	api := newTestAPI(t, nil)
	uid := api.registerAndLogin("ana@example.com").UserID
	rec := api.do(http.MethodPost, "/api/solo", reading(uid))
	require.Equal(t, http.StatusCreated, rec.Code)
	rid := decode[gin.H](t, rec)["readingId"]

	rec = api.do(http.MethodPost, "/api/condicoes_anormais", gin.H{
		"readingId": rid, "parameter": "ph", "condition": "Baixo (5.0). Ação: aumentar.", "action": "Adicionar calcário para aumentar o pH.",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotZero(t, decode[gin.H](t, rec)["anomalyId"])

	rec = api.do(http.MethodPost, "/api/condicoes_anormais", gin.H{
		"readingId": rid, "parameter": "salinidade", "condition": "x", "action": "y",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/api/condicoes_anormais", gin.H{
		"readingId": 9999, "parameter": "ph", "condition": "x", "action": "y",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, fmt.Sprintf("/api/solo/%v/condicoes_anormais", rid), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	trail := decode[[]struct {
		ReadingID uint   `json:"readingId"`
		Parameter string `json:"parameter"`
		Condition string `json:"condition"`
		Action    string `json:"action"`
	}](t, rec)
	require.Len(t, trail, 1)
	assert.Equal(t, "ph", trail[0].Parameter)
	assert.Equal(t, "Baixo (5.0). Ação: aumentar.", trail[0].Condition)

	rec = api.do(http.MethodGet, "/api/solo/9999/condicoes_anormais", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequiredJWT(t *testing.T) {
	api := newTestAPI(t, func(d *Deps) { d.Config.JWT.Required = true })
	ana := api.registerAndLogin("ana@example.com")
	bia := api.registerAndLogin("bia@example.com")
	path := fmt.Sprintf("/api/condicoes_anormais/%d", ana.UserID)

	rec := api.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodGet, path, nil, "Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodGet, path, nil, "Authorization", "Bearer "+bia.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodGet, path, nil, "Authorization", "Bearer "+ana.Token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodPost, "/api/solo", reading(ana.UserID), "Authorization", "Bearer "+bia.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodPost, "/api/solo", reading(ana.UserID), "Authorization", "Bearer "+ana.Token)
	require.Equal(t, http.StatusCreated, rec.Code)
	trail := fmt.Sprintf("/api/solo/%v/condicoes_anormais", decode[gin.H](t, rec)["readingId"])
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, trail, nil, "Authorization", "Bearer "+bia.Token).Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, trail, nil, "Authorization", "Bearer "+ana.Token).Code)
}

func TestLoginThrottle(t *testing.T) {
	mr := miniredis.RunT(t)
	fw, err := ratelimit.NewFixedWindow(ratelimit.NewClient(mr.Addr(), "", 0), "test:login", 2, time.Minute)
	require.NoError(t, err)
	api := newTestAPI(t, func(d *Deps) { d.Throttle = fw })

	creds := gin.H{"email": "nobody@example.com", "secret": "pw"}
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/login", creds).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/login", creds).Code)

	rec := api.do(http.MethodPost, "/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "TooManyRequests", decode[errBody](t, rec).Error)

	// 注册接口不受登录限流影响
	rec = api.do(http.MethodPost, "/usuarios", gin.H{"name": "Ana", "email": "ana@example.com", "secret": "pw"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestLoginThrottleIgnoresSpoofedForwardedFor(t *testing.T) {
	mr := miniredis.RunT(t)
	fw, err := ratelimit.NewFixedWindow(ratelimit.NewClient(mr.Addr(), "", 0), "test:login", 2, time.Minute)
	require.NoError(t, err)
	api := newTestAPI(t, func(d *Deps) { d.Throttle = fw })

	creds := gin.H{"email": "nobody@example.com", "secret": "pw"}
	for i, code := range []int{http.StatusNotFound, http.StatusNotFound, http.StatusTooManyRequests} {
		rec := api.do(http.MethodPost, "/login", creds, "X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		assert.Equal(t, code, rec.Code, "attempt %d", i+1)
	}
}

func TestLoginThrottleTrustsConfiguredProxy(t *testing.T) {
	mr := miniredis.RunT(t)
	fw, err := ratelimit.NewFixedWindow(ratelimit.NewClient(mr.Addr(), "", 0), "test:login", 2, time.Minute)
	require.NoError(t, err)
	api := newTestAPI(t, func(d *Deps) {
		d.Throttle = fw
		// httptest 请求的来源地址
		d.Config.App.HTTP.TrustedProxies = []string{"192.0.2.1"}
	})

	creds := gin.H{"email": "nobody@example.com", "secret": "pw"}
	for i := 1; i <= 3; i++ {
		rec := api.do(http.MethodPost, "/login", creds, "X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		assert.Equal(t, http.StatusNotFound, rec.Code, "client %d has its own window", i)
	}
	rec := api.do(http.MethodPost, "/login", creds, "X-Forwarded-For", "203.0.113.1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = api.do(http.MethodPost, "/login", creds, "X-Forwarded-For", "203.0.113.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestPerIPRateLimit(t *testing.T) {
	api := newTestAPI(t, func(d *Deps) {
		d.Config.Limits.PerIPRPS = 1
		d.Config.Limits.PerIPBurst = 1
	})
	get := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		api.h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, get("10.1.0.1:4000"))
	assert.Equal(t, http.StatusTooManyRequests, get("10.1.0.1:4001"))
	assert.Equal(t, http.StatusOK, get("10.1.0.2:4000"))
}

func TestDeadlineExceededIsTimeout(t *testing.T) {
	api := newTestAPI(t, nil)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/condicoes_anormais/1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	api.h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "Timeout", decode[errBody](t, rec).Error)
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t, nil)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health", nil).Code)

	rec := api.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "soil_http_requests_total")
}
