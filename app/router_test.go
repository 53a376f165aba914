package app

import (
	"archive/zip"
	"bitwise74/kidney-api/config"
	"bitwise74/kidney-api/internal"
	"bitwise74/kidney-api/pkg/middleware"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	deps   *internal.Deps
}

func newTestServer(t *testing.T, overrides map[string]any) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("JWT_SECRET", "testJwtKey")
	require.NoError(t, config.Load())

	dir := t.TempDir()
	viper.Set("storage.dir", filepath.Join(dir, "data"))
	viper.Set("upload.dir", filepath.Join(dir, "uploads"))
	viper.Set("predictor.delay", "0s")
	viper.Set("security.rate_limit", 0)

	for k, v := range overrides {
		viper.Set(k, v)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	d, err := internal.NewDeps(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	return &testServer{
		router: NewRouter(ctx, d),
		deps:   d,
	}
}

func (s *testServer) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type sessionBody struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user"`
}

type detailBody struct {
	Detail string `json:"detail"`
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()

	w := s.do(http.MethodPost, "/api/register", gin.H{"email": email, "password": "pass1234", "name": "Tim"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	return decode[sessionBody](t, w).AccessToken
}

func TestHealthAndWelcome(t *testing.T) {
	s := newTestServer(t, nil)

	for _, p := range []string{"/health", "/api/health"} {
		w := s.do(http.MethodGet, p, nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	}

	ids := []string{}
	for range 2 {
		w := s.do(http.MethodGet, "/welcome", nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"Welcome to the Kidney Stone Predictor API!"}`, w.Body.String())
		assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
		ids = append(ids, w.Header().Get(middleware.RequestIDHeader))
	}

	// The second greeting comes from cache but still gets its own id
	assert.NotEmpty(t, ids[0])
	assert.NotEmpty(t, ids[1])
	assert.NotEqual(t, ids[0], ids[1])
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/api/nothing-here", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Endpoint not found", decode[detailBody](t, w).Detail)

	w = s.do(http.MethodGet, "/api/register", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Endpoint not found", decode[detailBody](t, w).Detail)

	w = s.do(http.MethodPut, "/api/reports", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterLoginListReports(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, "/api/register", gin.H{"email": "t@ex.com", "password": "pass1234", "name": "Tim"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	reg := decode[sessionBody](t, w)
	assert.Equal(t, "bearer", reg.TokenType)
	assert.Equal(t, "t@ex.com", reg.User.Email)
	assert.Equal(t, "Tim", reg.User.Name)
	assert.NotContains(t, w.Body.String(), "password")

	w = s.do(http.MethodPost, "/api/login", gin.H{"email": "t@ex.com", "password": "pass1234"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decode[sessionBody](t, w)
	require.NotEmpty(t, login.AccessToken)

	w = s.do(http.MethodGet, "/api/reports", nil, login.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestRegisterTwice(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "t@ex.com")

	w := s.do(http.MethodPost, "/api/register", gin.H{"email": "t@ex.com", "password": "pass1234", "name": "Tim"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists", decode[detailBody](t, w).Detail)
}

func TestRegisterValidationListsFields(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, "/api/register", gin.H{"email": "nope", "password": "short", "name": "Tim"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid fields: email, password", decode[detailBody](t, w).Detail)

	w = s.do(http.MethodPost, "/api/register", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginFailuresLookAlike(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "t@ex.com")

	wrong := s.do(http.MethodPost, "/api/login", gin.H{"email": "t@ex.com", "password": "wrongpass"}, "")
	unknown := s.do(http.MethodPost, "/api/login", gin.H{"email": "ghost@ex.com", "password": "pass1234"}, "")

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.JSONEq(t, `{"detail":"Invalid credentials"}`, unknown.Body.String())
}

func TestReportsRequireToken(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/api/reports", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Access token required", decode[detailBody](t, w).Detail)

	w = s.do(http.MethodGet, "/api/reports", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid token", decode[detailBody](t, w).Detail)

	w = s.do(http.MethodPost, "/api/reports", gin.H{"name": "x"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodDelete, "/api/reports/abc", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReportLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.register(t, "t@ex.com")

	w := s.do(http.MethodPost, "/api/reports", gin.H{
		"name":       "scan1",
		"prediction": gin.H{"label": "stone", "confidence": 0.91},
		"createdAt":  "2026-01-01T10:00:00Z",
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	added := decode[struct {
		Message string `json:"message"`
		ID      string `json:"id"`
	}](t, w)
	assert.Equal(t, "Report added", added.Message)
	require.NotEmpty(t, added.ID)

	w = s.do(http.MethodGet, "/api/reports", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	list := decode[[]struct {
		ID         string          `json:"id"`
		Name       string          `json:"name"`
		Prediction json.RawMessage `json:"prediction"`
		CreatedAt  string          `json:"createdAt"`
	}](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, added.ID, list[0].ID)
	assert.Equal(t, "scan1", list[0].Name)
	assert.JSONEq(t, `{"label":"stone","confidence":0.91}`, string(list[0].Prediction))

	// Export
	w = s.do(http.MethodGet, "/api/reports/"+added.ID+"/export", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "report.json", zr.File[0].Name)

	w = s.do(http.MethodGet, "/api/reports/missing/export", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Report not found", decode[detailBody](t, w).Detail)

	// Delete twice, both succeed
	for range 2 {
		w = s.do(http.MethodDelete, "/api/reports/"+added.ID, nil, token)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"Report deleted"}`, w.Body.String())
	}

	w = s.do(http.MethodGet, "/api/reports", nil, token)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestPasswordResetOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "t@ex.com")

	w := s.do(http.MethodPost, "/api/forgot-password", gin.H{"email": "ghost@ex.com"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User not found", decode[detailBody](t, w).Detail)

	w = s.do(http.MethodPost, "/api/forgot-password", gin.H{"email": "t@ex.com"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"OTP sent to email"}`, w.Body.String())

	// The log notifier keeps the code to itself, plant a known one
	require.NoError(t, s.deps.Codes.Put("t@ex.com", "123456"))

	w = s.do(http.MethodPost, "/api/verify-otp", gin.H{"email": "t@ex.com", "otp": "000000"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid OTP", decode[detailBody](t, w).Detail)

	w = s.do(http.MethodPost, "/api/verify-otp", gin.H{"email": "t@ex.com", "otp": "123456"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"OTP verified"}`, w.Body.String())

	w = s.do(http.MethodPost, "/api/reset-password", gin.H{"email": "t@ex.com", "new_password": "newpass123"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Password reset successful"}`, w.Body.String())

	w = s.do(http.MethodPost, "/api/login", gin.H{"email": "t@ex.com", "password": "newpass123"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestResetRequiresProofWhenEnabled(t *testing.T) {
	s := newTestServer(t, map[string]any{"auth.require_reset_proof": true})
	s.register(t, "t@ex.com")

	w := s.do(http.MethodPost, "/api/reset-password", gin.H{"email": "t@ex.com", "new_password": "newpass123"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	require.NoError(t, s.deps.Codes.Put("t@ex.com", "123456"))
	w = s.do(http.MethodPost, "/api/verify-otp", gin.H{"email": "t@ex.com", "otp": "123456"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	proof := decode[struct {
		ResetToken string `json:"reset_token"`
	}](t, w).ResetToken
	require.NotEmpty(t, proof)

	w = s.do(http.MethodPost, "/api/reset-password", gin.H{"email": "t@ex.com", "new_password": "newpass123", "reset_token": proof}, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func multipartRequest(t *testing.T, contentType string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="scan.png"`)
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/predict", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPredict(t *testing.T) {
	s := newTestServer(t, nil)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, multipartRequest(t, "image/png", pngBytes(t)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[struct {
		Filename   string `json:"filename"`
		Prediction struct {
			Label      string  `json:"label"`
			Confidence float64 `json:"confidence"`
		} `json:"prediction"`
	}](t, w)

	assert.Regexp(t, `\.png$`, res.Filename)
	assert.Contains(t, []string{"stone", "non-stone"}, res.Prediction.Label)
	assert.GreaterOrEqual(t, res.Prediction.Confidence, 0.7)
	assert.LessOrEqual(t, res.Prediction.Confidence, 1.0)
	assert.FileExists(t, filepath.Join(s.deps.Keeper.Dir(), res.Filename))
}

func TestPredictRejects(t *testing.T) {
	s := newTestServer(t, map[string]any{"upload.max_bytes": int64(64)})

	// No file at all
	w := s.do(http.MethodPost, "/api/predict", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No file uploaded", decode[detailBody](t, w).Detail)

	// Text posing as an image
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, multipartRequest(t, "image/png", []byte("definitely not an image")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Only image files are allowed!", decode[detailBody](t, w).Detail)

	// Declared as text
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, multipartRequest(t, "text/plain", pngBytes(t)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Only image files are allowed!", decode[detailBody](t, w).Detail)

	// Over the configured size
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, multipartRequest(t, "image/png", append(pngBytes(t), make([]byte, 128)...)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "File too large", decode[detailBody](t, w).Detail)
}

func TestStorageFailureIsInternalError(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.register(t, "t@ex.com")

	// Corrupt the reports document behind the store's back
	require.NoError(t, s.deps.Media.Reports.Write(context.Background(), []byte("{not json")))

	w := s.do(http.MethodGet, "/api/reports", nil, token)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail":"Internal server error"}`, w.Body.String())
}
