package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/event-registration-api/internal/dto"
	"github.com/noah-isme/event-registration-api/internal/middleware"
	"github.com/noah-isme/event-registration-api/internal/models"
	appErrors "github.com/noah-isme/event-registration-api/pkg/errors"
)

type responseEnvelope struct {
	Data       map[string]interface{} `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type fakeRegistrationSrv struct {
	lastReq dto.RegistrationRequest
	resp    *dto.RegistrationResponse
	err     error
}

func (f *fakeRegistrationSrv) Register(_ context.Context, req dto.RegistrationRequest) (*dto.RegistrationResponse, error) {
	f.lastReq = req
	return f.resp, f.err
}

func (f *fakeRegistrationSrv) CreateManual(_ context.Context, req dto.RegistrationRequest) (*dto.RegistrationResponse, error) {
	f.lastReq = req
	return f.resp, f.err
}

type fakeVerificationSrv struct {
	verifyResp  *dto.VerificationResponse
	verifyErr   error
	summary     *dto.RegistrationSummary
	validateErr error
	lastKen     string
}

func (f *fakeVerificationSrv) Verify(context.Context, dto.VerifyRequest) (*dto.VerificationResponse, error) {
	return f.verifyResp, f.verifyErr
}

func (f *fakeVerificationSrv) ValidateByKen(_ context.Context, ken string) (*dto.RegistrationSummary, error) {
	f.lastKen = ken
	return f.summary, f.validateErr
}

func TestRegistrationHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeRegistrationSrv{resp: &dto.RegistrationResponse{RegistrationNumber: "1234567", FullName: "ASHA RAO"}}
	h := NewRegistrationHandler(srv, &fakeVerificationSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(t, http.MethodPost, "/api/registration/create", map[string]string{"fullName": "Asha Rao", "ken": "K1"})

	h.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "1234567", env.Data["registrationNumber"])
	assert.Equal(t, "Registration successful!", env.Meta["message"])
	assert.Equal(t, "Asha Rao", srv.lastReq.FullName)
}

func TestRegistrationHandlerCreateDuplicate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewRegistrationHandler(&fakeRegistrationSrv{err: appErrors.Clone(appErrors.ErrDuplicateKen, "")}, &fakeVerificationSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(t, http.MethodPost, "/api/registration/create", map[string]string{"ken": "K1"})

	h.Create(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DUPLICATE_KEN", env.Error.Code)
	assert.Equal(t, "KEN already registered. Please use a different KEN.", env.Error.Message)
}

func TestRegistrationHandlerRejectsMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewRegistrationHandler(&fakeRegistrationSrv{}, &fakeVerificationSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/registration/create", bytes.NewBufferString("{"))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegistrationHandlerVerifyMessages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		already bool
		message string
	}{
		{false, "Registration verified successfully!"},
		{true, "Registration already verified!"},
	}
	for _, tc := range cases {
		srv := &fakeVerificationSrv{verifyResp: &dto.VerificationResponse{VerifiedNumber: "7654321", AlreadyVerified: tc.already}}
		h := NewRegistrationHandler(&fakeRegistrationSrv{}, srv)

		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = jsonRequest(t, http.MethodPost, "/api/registration/verify", dto.VerifyRequest{RegistrationNumber: "1234567", ContactNumber: "98"})
		h.Verify(c)

		assert.Equal(t, http.StatusOK, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.Equal(t, tc.message, env.Meta["message"])
		assert.Equal(t, "7654321", env.Data["verifiedNumber"])
	}
}

func TestRegistrationHandlerVerifyNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeVerificationSrv{verifyErr: appErrors.Clone(appErrors.ErrNotFound, "No matching registration found with provided details.")}
	h := NewRegistrationHandler(&fakeRegistrationSrv{}, srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(t, http.MethodPost, "/api/registration/verify", dto.VerifyRequest{RegistrationNumber: "1234567", ContactNumber: "00"})
	h.Verify(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegistrationHandlerValidate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeVerificationSrv{summary: &dto.RegistrationSummary{RegistrationNumber: "1234567"}}
	h := NewRegistrationHandler(&fakeRegistrationSrv{}, srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(t, http.MethodPost, "/api/registration/validate", map[string]string{"ken": "k1"})
	h.Validate(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "k1", srv.lastKen)
	assert.Equal(t, "Registration found!", decodeEnvelope(t, rec).Meta["message"])
}

type fakeAdminSrv struct {
	lastQuery dto.RegistrationListQuery
	list      *dto.RegistrationListResponse
	stats     *dto.StatisticsResponse
	hit       bool
	err       error
}

func (f *fakeAdminSrv) List(_ context.Context, q dto.RegistrationListQuery) (*dto.RegistrationListResponse, error) {
	f.lastQuery = q
	return f.list, f.err
}

func (f *fakeAdminSrv) Statistics(context.Context) (*dto.StatisticsResponse, bool, error) {
	return f.stats, f.hit, f.err
}

type fakeExportSrv struct {
	lastFormat string
	file       *dto.ExportFile
	err        error
}

func (f *fakeExportSrv) Export(_ context.Context, format string) (*dto.ExportFile, error) {
	f.lastFormat = format
	return f.file, f.err
}

func TestAdminHandlerRegistrationsBindsQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAdminSrv{list: &dto.RegistrationListResponse{
		TotalCount: 3,
		Pagination: &models.Pagination{Page: 2, PageSize: 1, TotalCount: 3},
	}}
	h := NewAdminHandler(srv, &fakeExportSrv{}, &fakeRegistrationSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/admin/registrations?search=asha&department=cse&verified=false&page=2&pageSize=1", nil)
	h.Registrations(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "asha", srv.lastQuery.Search)
	assert.Equal(t, "cse", srv.lastQuery.Department)
	require.NotNil(t, srv.lastQuery.Verified)
	assert.False(t, *srv.lastQuery.Verified)
	assert.Equal(t, 1, srv.lastQuery.PageSize)

	env := decodeEnvelope(t, rec)
	assert.EqualValues(t, 3, env.Data["totalCount"])
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 2, env.Pagination.Page)
}

func TestAdminHandlerExportWritesAttachment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeExportSrv{file: &dto.ExportFile{Filename: "registrations.csv", ContentType: "text/csv", Content: []byte("a,b\n")}}
	h := NewAdminHandler(&fakeAdminSrv{}, srv, &fakeRegistrationSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/admin/export?format=csv", nil)
	h.Export(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", srv.lastFormat)
	assert.Equal(t, `attachment; filename="registrations.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "a,b\n", rec.Body.String())
}

func TestAdminHandlerExportError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAdminHandler(&fakeAdminSrv{}, &fakeExportSrv{err: appErrors.Clone(appErrors.ErrValidation, "format must be one of: xlsx, csv, pdf.")}, &fakeRegistrationSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/admin/export?format=doc", nil)
	h.Export(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminHandlerManualRegistration(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeRegistrationSrv{resp: &dto.RegistrationResponse{RegistrationNumber: "1234567", CreatedBy: models.CreatedByAdmin}}
	h := NewAdminHandler(&fakeAdminSrv{}, &fakeExportSrv{}, srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(t, http.MethodPost, "/api/admin/manual-registration", map[string]string{"fullName": "Asha"})
	h.ManualRegistration(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Manual registration created successfully!", env.Meta["message"])
	assert.Equal(t, "admin", env.Data["createdBy"])
}

func TestAdminHandlerStatisticsCacheMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAdminSrv{stats: &dto.StatisticsResponse{TotalRegistrations: 5}, hit: true}
	h := NewAdminHandler(srv, &fakeExportSrv{}, &fakeRegistrationSrv{})

	r := gin.New()
	r.GET("/stats", middleware.WithResponseMeta(), h.Statistics)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.EqualValues(t, 5, env.Data["totalRegistrations"])
}

type fakeAuthSrv struct {
	lastReq models.LoginRequest
	err     error
}

func (f *fakeAuthSrv) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.LoginResponse{AccessToken: "token", TokenType: "Bearer", Role: models.RoleAdmin}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAuthSrv{}
	h := NewAuthHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(t, http.MethodPost, "/api/admin/login", models.LoginRequest{Username: "admin", Password: "pw"})
	c.Request.Header.Set("User-Agent", "test-agent")
	h.Login(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test-agent", srv.lastReq.UserAgent)
	assert.Equal(t, "token", decodeEnvelope(t, rec).Data["accessToken"])
}

func TestAuthHandlerLoginInvalid(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(&fakeAuthSrv{err: appErrors.ErrInvalidCredentials})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(t, http.MethodPost, "/api/admin/login", models.LoginRequest{Username: "admin", Password: "bad"})
	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)

	ok := NewMetricsHandler(nil, map[string]Pinger{"store": pingerFunc(func(context.Context) error { return nil })})
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	ok.Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	down := NewMetricsHandler(nil, map[string]Pinger{"store": pingerFunc(func(context.Context) error { return errors.New("down") })})
	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	down.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}
