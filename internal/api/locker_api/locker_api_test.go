package locker_api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/BearBump/LockerTrack/internal/auth"
	"github.com/BearBump/LockerTrack/internal/cache/rediscache"
	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/BearBump/LockerTrack/internal/services/groups"
	"github.com/BearBump/LockerTrack/internal/services/importer"
	"github.com/BearBump/LockerTrack/internal/services/ledger"
	"github.com/BearBump/LockerTrack/internal/services/lockers"
	"github.com/BearBump/LockerTrack/internal/services/packages"
	"github.com/BearBump/LockerTrack/internal/services/statuses"
	"github.com/BearBump/LockerTrack/internal/storage/memlocker"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const testSecret = "api-secret"

type denyAfter struct {
	n     int64
	calls int64
}

func (d *denyAfter) Allow(_ context.Context, _ string, limit int64, _ time.Duration) (bool, int64, error) {
	d.calls++
	return d.calls <= d.n && d.calls <= limit, d.calls, nil
}

type APISuite struct {
	suite.Suite
	store   *memlocker.Store
	srv     *httptest.Server
	limiter *denyAfter
	svc     Services
	admin   string
	client  string
	locker  *models.Locker
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	log := zap.NewNop()
	s.store = memlocker.New()
	s.locker = s.store.AddLocker(models.Locker{UserID: 42, Code: "LK-42", Active: true})

	eng := ledger.New(s.store, nil, log)
	pkgs := packages.New(s.store, nil, 0, nil, log)
	s.svc = Services{
		Statuses: statuses.New(s.store),
		Groups:   groups.New(s.store, nil, log),
		Packages: pkgs,
		Ledger:   eng,
		Lockers:  lockers.New(s.store, log),
		Importer: importer.New(pkgs, log),
	}
	s.limiter = &denyAfter{n: 100}
	api := New(s.svc, auth.NewVerifier(testSecret), s.limiter, Options{LookupLimitPerMinute: 3}, log)

	r := chi.NewRouter()
	api.Routes(r)
	s.srv = httptest.NewServer(r)
	s.T().Cleanup(s.srv.Close)

	s.admin = s.token(1, auth.RoleAdmin)
	s.client = s.token(42, auth.RoleClient)
}

func (s *APISuite) token(userID int64, role int) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: userID,
		RoleID: role,
		Email:  "ops@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	s.Require().NoError(err)
	return tok
}

func (s *APISuite) do(method, path, token string, body any, out any) int {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *APISuite) seedStatuses() (uint64, uint64) {
	var a, b models.Status
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/statuses", s.admin,
		map[string]any{"name": "Received", "display_order": 1, "color": "#111111"}, &a))
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/statuses", s.admin,
		map[string]any{"name": "In transit", "display_order": 2, "color": "#222222"}, &b))
	return a.ID, b.ID
}

func (s *APISuite) TestAuthBoundaries() {
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/healthz", "", nil, nil))
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/statuses", "", nil, nil))
	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/statuses", s.client, nil, nil))
	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/me/locker", s.admin, nil, nil))
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/statuses", s.admin, nil, nil))
}

func (s *APISuite) TestCreatePackage_BackfillsAndTransitions() {
	_, transit := s.seedStatuses()

	var p models.Package
	code := s.do(http.MethodPost, "/packages", s.admin, map[string]any{
		"tracking_number": "LT-100",
		"sender":          "ACME",
		"status_id":       transit,
	}, &p)
	s.Require().Equal(http.StatusCreated, code)
	s.Require().NotNil(p.CurrentStatus)
	s.Equal("In transit", *p.CurrentStatus)

	var hist []models.HistoryEntry
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/packages/1/history", s.admin, nil, &hist))
	s.Len(hist, 2)

	var body errorBody
	code = s.do(http.MethodPost, "/packages/1/status", s.admin, map[string]any{
		"status_id": transit, "change_date": "2026-03-01", "change_time": "10:00:00",
	}, &body)
	s.Equal(http.StatusBadRequest, code)
	s.Equal("no_op_transition", body.Reason)

	code = s.do(http.MethodPost, "/packages", s.admin, map[string]any{"tracking_number": "LT-100"}, &body)
	s.Equal(http.StatusBadRequest, code)
	s.Equal("duplicate_tracking_number", body.Reason)

	code = s.do(http.MethodGet, "/packages/999", s.admin, nil, &body)
	s.Equal(http.StatusNotFound, code)
	s.Equal("package_not_found", body.Reason)

	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/packages/abc", s.admin, nil, nil))
}

func (s *APISuite) TestBatchTransitionAndReversal() {
	received, transit := s.seedStatuses()
	for _, tn := range []string{"LT-1", "LT-2"} {
		s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/packages", s.admin,
			map[string]any{"tracking_number": tn, "status_id": received}, nil))
	}

	var res models.BatchResult
	code := s.do(http.MethodPost, "/packages/status", s.admin, map[string]any{
		"ids": []uint64{1, 2, 77}, "status_id": transit,
		"change_date": "2026-03-02", "change_time": "08:30:00",
	}, &res)
	s.Require().Equal(http.StatusOK, code)
	s.Equal(2, res.UpdatedCount)
	s.Len(res.Errors, 1)

	var hist []models.HistoryEntry
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/packages/1/history", s.admin, nil, &hist))
	s.Require().NotEmpty(hist)
	newest := hist[0]

	s.Require().Equal(http.StatusOK, s.do(http.MethodDelete, "/history/"+itoa(newest.ID), s.admin, nil, nil))

	var p models.Package
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/packages/1", s.admin, nil, &p))
	s.Require().NotNil(p.CurrentStatus)
	s.Equal("Received", *p.CurrentStatus)
}

func (s *APISuite) TestGroupCascade() {
	var g models.Group
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/groups", s.admin, map[string]any{"name": "March"}, &g))
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/packages", s.admin,
		map[string]any{"tracking_number": "LT-9", "group_id": g.ID}, nil))

	var res groups.DeactivateResult
	s.Require().Equal(http.StatusOK, s.do(http.MethodDelete, "/groups/"+itoa(g.ID), s.admin, nil, &res))
	s.Equal(1, res.PackagesDeactivated)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/packages/1", s.admin, nil, nil))
}

func (s *APISuite) TestClientRoutes() {
	received, _ := s.seedStatuses()
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/packages", s.admin,
		map[string]any{"tracking_number": "LT-7", "status_id": received}, nil))
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/packages", s.admin,
		map[string]any{"tracking_number": "LT-8"}, nil))
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/assignments", s.admin,
		map[string]any{"package_id": 1, "locker_id": s.locker.ID}, nil))

	var l models.Locker
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/me/locker", s.client, nil, &l))
	s.Equal("LK-42", l.Code)

	var mine []models.Assignment
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/me/packages", s.client, nil, &mine))
	s.Require().Len(mine, 1)
	s.Equal("LT-7", mine[0].TrackingNumber)

	s.Equal(http.StatusOK, s.do(http.MethodGet, "/me/packages/1/history", s.client, nil, nil))
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/me/packages/2/history", s.client, nil, nil))
}

func (s *APISuite) TestPublicTrackingLookup_RateLimited() {
	received, _ := s.seedStatuses()
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/packages", s.admin,
		map[string]any{"tracking_number": "LT-55", "status_id": received}, nil))

	var v models.TrackingView
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/tracking/LT-55", "", nil, &v))
	s.Equal("LT-55", v.TrackingNumber)
	s.Len(v.History, 1)

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/tracking/NOPE", "", nil, nil))
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/tracking/LT-55", "", nil, nil))
	s.Equal(http.StatusTooManyRequests, s.do(http.MethodGet, "/tracking/LT-55", "", nil, nil))
}

func (s *APISuite) TestImport() {
	received, _ := s.seedStatuses()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"SERVICIO", "GUIA", "Fecha salida", "Remitente", "PESO LB", "Courier"},
		{"Air", "IMP-1", "2026-02-10", "ACME", 2.5, "DHL"},
		{"Air", "", "2026-02-10", "ACME", 1, "DHL"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		s.Require().NoError(err)
		s.Require().NoError(f.SetSheetRow(sheet, cell, &row))
	}
	xlsx, err := f.WriteToBuffer()
	s.Require().NoError(err)

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	fw, err := mw.CreateFormFile("file", "batch.xlsx")
	s.Require().NoError(err)
	_, err = fw.Write(xlsx.Bytes())
	s.Require().NoError(err)
	s.Require().NoError(mw.WriteField("status_id", itoa(received)))
	s.Require().NoError(mw.Close())

	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/packages/import", &form)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.admin)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var sum importer.Summary
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&sum))
	s.Equal(1, sum.Inserted)
	s.Equal(1, sum.Errors)

	var p models.Package
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/packages/by-tracking/IMP-1", s.admin, nil, &p))
	s.Require().NotNil(p.CurrentStatus)
	s.Equal("Received", *p.CurrentStatus)
}

func (s *APISuite) TestLookupLimit_IgnoresForwardedHeaders() {
	mr := miniredis.RunT(s.T())
	rl := rediscache.NewRateLimiter(mr.Addr(), "test:")
	s.T().Cleanup(func() { _ = rl.Close() })

	r := chi.NewRouter()
	New(s.svc, auth.NewVerifier(testSecret), rl, Options{LookupLimitPerMinute: 1}, zap.NewNop()).Routes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	lookup := func(forwardedFor string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/tracking/NOPE", nil)
		s.Require().NoError(err)
		req.Header.Set("X-Forwarded-For", forwardedFor)
		req.Header.Set("X-Real-IP", forwardedFor)
		resp, err := http.DefaultClient.Do(req)
		s.Require().NoError(err)
		_ = resp.Body.Close()
		return resp
	}

	first := lookup("10.0.0.1")
	s.Equal(http.StatusNotFound, first.StatusCode)
	s.NotEmpty(first.Header.Get("X-Request-Id"))
	for _, ip := range []string{"10.0.0.2", "10.0.0.3", "203.0.113.9"} {
		s.Equal(http.StatusTooManyRequests, lookup(ip).StatusCode, ip)
	}
}

func itoa(v uint64) string { return strconv.FormatUint(v, 10) }
