package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"royalty-admin/internal/app"
	"royalty-admin/internal/model"
	"royalty-admin/internal/permission"
	"royalty-admin/internal/service"
	"royalty-admin/internal/testutil"
	"royalty-admin/pkg/pagination"

	gorillaws "github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	app         *app.App
	db          *gorm.DB
	adminToken  string
	artistToken string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	a, db := testutil.SetupTestApp(t, nil)
	admin := testutil.CreateTestUser(t, db, "admin@example.com", "password123", permission.RoleSuperAdmin)
	artist := testutil.CreateTestUser(t, db, "artist@example.com", "password123", permission.RoleArtist)
	return &fixture{
		app:         a,
		db:          db,
		adminToken:  testutil.GetAuthToken(t, a, admin),
		artistToken: testutil.GetAuthToken(t, a, artist),
	}
}

func (f *fixture) roleID(t *testing.T, name string) string {
	t.Helper()
	var r model.Role
	require.NoError(t, f.db.Where("name = ?", name).First(&r).Error)
	return r.ID.String()
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := testutil.MakeRequest(f.app.Router, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	f := newFixture(t)

	rec := testutil.MakeRequest(f.app.Router, http.MethodPost, "/api/auth/login",
		service.LoginRequest{Email: "artist@example.com", Password: "password123"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tok service.TokenResponse
	testutil.DecodeData(t, rec, &tok)
	assert.NotEmpty(t, tok.AccessToken)

	rec = testutil.MakeRequest(f.app.Router, http.MethodGet, "/api/auth/me", nil, tok.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var me service.MeResponse
	testutil.DecodeData(t, rec, &me)
	assert.Len(t, me.Permissions, 13)
	assert.False(t, me.HasWildcard)

	rec = testutil.MakeRequest(f.app.Router, http.MethodPost, "/api/auth/login",
		service.LoginRequest{Email: "artist@example.com", Password: "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := testutil.ParseResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "invalid email or password", resp.Error)

	rec = testutil.MakeRequest(f.app.Router, http.MethodPost, "/api/auth/login", map[string]string{"email": "not-an-email"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginRateLimit(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.LoginRateRPS = 0.001
	cfg.LoginRateBurst = 2
	a, _ := testutil.SetupTestApp(t, cfg)

	body := service.LoginRequest{Email: "x@example.com", Password: "password123"}
	for i := 0; i < 2; i++ {
		rec := testutil.MakeRequest(a.Router, http.MethodPost, "/api/auth/login", body, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := testutil.MakeRequest(a.Router, http.MethodPost, "/api/auth/login", body, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestPermissionGate(t *testing.T) {
	f := newFixture(t)

	rec := testutil.MakeRequest(f.app.Router, http.MethodGet, "/api/admin/roles/list", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = testutil.MakeRequest(f.app.Router, http.MethodGet, "/api/admin/roles/list", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = testutil.MakeRequest(f.app.Router, http.MethodGet, "/api/admin/roles/list", nil, f.artistToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, testutil.ParseResponse(t, rec).Error, permission.RoleRead)

	var denied int64
	f.db.Model(&model.AuditLog{}).Where("action = ?", model.ActionPermissionDenied).Count(&denied)
	assert.EqualValues(t, 1, denied)

	rec = testutil.MakeRequest(f.app.Router, http.MethodGet, "/api/admin/roles/list", nil, f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var roles []service.RoleResponse
	testutil.DecodeData(t, rec, &roles)
	assert.Len(t, roles, len(permission.SystemRoles()))
}

func TestResetDefaultEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := testutil.MakeRequest(f.app.Router, http.MethodPost,
		"/api/admin/roles/"+f.roleID(t, permission.RoleArtist)+"/reset-default", nil, f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Success            bool     `json:"success"`
		Message            string   `json:"message"`
		PermissionsSet     int      `json:"permissions_set"`
		MissingPermissions []string `json:"missing_permissions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 13, body.PermissionsSet)
	assert.NotNil(t, body.MissingPermissions)
	assert.Empty(t, body.MissingPermissions)

	rec = testutil.MakeRequest(f.app.Router, http.MethodPost, "/api/admin/roles/create",
		service.CreateRoleRequest{Name: "Custom QA Tester"}, f.adminToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var role service.RoleResponse
	testutil.DecodeData(t, rec, &role)
	assert.Equal(t, "custom_qa_tester", role.Name)

	rec = testutil.MakeRequest(f.app.Router, http.MethodPost, "/api/admin/roles/"+role.ID+"/reset-default", nil, f.adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := testutil.ParseResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "only system roles can be reset", resp.Error)

	rec = testutil.MakeRequest(f.app.Router, http.MethodPost, "/api/admin/roles/not-a-uuid/reset-default", nil, f.adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = testutil.MakeRequest(f.app.Router, http.MethodPost,
		"/api/admin/roles/"+f.roleID(t, permission.RoleArtist)+"/reset-default", nil, f.artistToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRolePermissionEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := testutil.MakeRequest(f.app.Router, http.MethodPost, "/api/admin/roles/create",
		service.CreateRoleRequest{Name: "auditor"}, f.adminToken)
	require.Equal(t, http.StatusCreated, rec.Code)
	var role service.RoleResponse
	testutil.DecodeData(t, rec, &role)

	var perm model.Permission
	require.NoError(t, f.db.Where("name = ?", permission.AuditRead).First(&perm).Error)
	path := "/api/admin/roles/" + role.ID + "/permissions/" + perm.ID.String()

	rec = testutil.MakeRequest(f.app.Router, http.MethodPost, path, nil, f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var toggled service.ToggleResult
	testutil.DecodeData(t, rec, &toggled)
	assert.True(t, toggled.Changed)
	assert.Equal(t, 2, toggled.Version)

	rec = testutil.MakeRequest(f.app.Router, http.MethodDelete, path+"?expected_version=1", nil, f.adminToken)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = testutil.MakeRequest(f.app.Router, http.MethodGet, path, nil, f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var check service.CheckPermissionResponse
	testutil.DecodeData(t, rec, &check)
	assert.True(t, check.Granted)
	assert.True(t, check.Direct)

	rec = testutil.MakeRequest(f.app.Router, http.MethodGet, "/api/admin/roles/"+role.ID+"/permissions", nil, f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed service.RolePermissionsResponse
	testutil.DecodeData(t, rec, &listed)
	require.Len(t, listed.Permissions, 1)
	assert.Equal(t, permission.AuditRead, listed.Permissions[0].Name)

	rec = testutil.MakeRequest(f.app.Router, http.MethodDelete, path, map[string]int{"expected_version": 2}, f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = testutil.MakeRequest(f.app.Router, http.MethodGet, "/api/admin/permissions/list", nil, f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var catalog []service.PermissionResponse
	testutil.DecodeData(t, rec, &catalog)
	assert.Len(t, catalog, len(permission.Catalog()))
}

func TestDeleteRoleEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := testutil.MakeRequest(f.app.Router, http.MethodPost, "/api/admin/roles/create",
		service.CreateRoleRequest{Name: "temp"}, f.adminToken)
	require.Equal(t, http.StatusCreated, rec.Code)
	var role service.RoleResponse
	testutil.DecodeData(t, rec, &role)
	testutil.CreateTestUser(t, f.db, "temp@example.com", "password123", "temp")

	rec = testutil.MakeRequest(f.app.Router, http.MethodDelete, "/api/admin/roles/"+role.ID+"/delete", nil, f.adminToken)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = testutil.MakeRequest(f.app.Router, http.MethodDelete,
		"/api/admin/roles/"+role.ID+"/delete?reassign_to="+permission.RoleArtist, nil, f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res service.DeleteRoleResult
	testutil.DecodeData(t, rec, &res)
	assert.EqualValues(t, 1, res.ReassignedUsers)

	rec = testutil.MakeRequest(f.app.Router, http.MethodGet, "/api/admin/roles/"+role.ID, nil, f.adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := testutil.MakeRequest(f.app.Router, http.MethodGet, "/api/admin/users/list?limit=1", nil, f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := testutil.ParseResponse(t, rec)
	var meta pagination.Meta
	require.NoError(t, json.Unmarshal(resp.Meta, &meta))
	assert.EqualValues(t, 2, meta.Total)
	assert.Equal(t, 2, meta.TotalPages)

	var users []service.UserResponse
	rec = testutil.MakeRequest(f.app.Router, http.MethodGet, "/api/admin/users/list?role="+permission.RoleArtist, nil, f.adminToken)
	testutil.DecodeData(t, rec, &users)
	require.Len(t, users, 1)
	id := users[0].ID

	rec = testutil.MakeRequest(f.app.Router, http.MethodPost, "/api/admin/users/"+id+"/update-role",
		service.UpdateUserRoleRequest{Role: permission.RoleLabelAdmin}, f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = testutil.MakeRequest(f.app.Router, http.MethodPost, "/api/admin/users/"+id+"/update-status",
		map[string]string{"status": "banned"}, f.adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = testutil.MakeRequest(f.app.Router, http.MethodPost, "/api/admin/users/"+id+"/update-status",
		service.UpdateUserStatusRequest{Status: model.UserStatusSuspended}, f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var u service.UserResponse
	testutil.DecodeData(t, rec, &u)
	assert.Equal(t, model.UserStatusSuspended, u.Status)
	assert.Equal(t, permission.RoleLabelAdmin, u.Role)
}

func TestSplitAndEarningsEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := testutil.MakeRequest(f.app.Router, http.MethodGet, "/api/admin/split-config", nil, f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg service.SplitConfigResponse
	testutil.DecodeData(t, rec, &cfg)
	assert.True(t, cfg.IsDefault)

	rec = testutil.MakeRequest(f.app.Router, http.MethodPut, "/api/admin/split-config", map[string]string{
		"distribution_partner_pct": "15",
		"company_admin_pct":        "10",
		"super_admin_reserve_pct":  "2",
	}, f.adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = testutil.MakeRequest(f.app.Router, http.MethodPut, "/api/admin/split-config", service.UpdateSplitConfigRequest{
		DistributionPartnerPct: "15",
		CompanyAdminPct:        "10",
		SuperAdminReservePct:   "2",
		PlatformMaintenancePct: "1",
		LabelAdminPcts:         map[string]string{"major-label": "50", "indie-collective": "50"},
	}, f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	testutil.DecodeData(t, rec, &cfg)
	assert.Equal(t, 1, cfg.Version)
	assert.Empty(t, cfg.Warnings)

	rec = testutil.MakeRequest(f.app.Router, http.MethodPost, "/api/admin/split-config/preview",
		service.PreviewSplitRequest{Gross: "8547293.50"}, f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var preview service.PreviewResponse
	testutil.DecodeData(t, rec, &preview)
	assert.True(t, decimal.RequireFromString("1282094.025").Equal(preview.Breakdown.DistributionPartner), preview.Breakdown.DistributionPartner.String())
	assert.Equal(t, 1, preview.Version)

	rec = testutil.MakeRequest(f.app.Router, http.MethodPost, "/api/admin/earnings", service.RecordEarningRequest{
		AssetID: "a1", LabelKey: "major-label", GrossAmount: "1000", ReportedAt: "2026-05-01",
	}, f.adminToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = testutil.MakeRequest(f.app.Router, http.MethodPost, "/api/admin/earnings", service.RecordEarningRequest{
		AssetID: "a1", LabelKey: "major-label", GrossAmount: "1000",
	}, f.artistToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = testutil.MakeRequest(f.app.Router, http.MethodGet, "/api/admin/earnings/summary?start_date=2026-05-01&end_date=2026-05-31", nil, f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sum service.EarningsSummary
	testutil.DecodeData(t, rec, &sum)
	require.Len(t, sum.Labels, 1)
	// 1000 less 28% leaves a 720 pool, half of which is the label's.
	assert.True(t, decimal.NewFromInt(360).Equal(sum.Labels[0].LabelShare), sum.Labels[0].LabelShare.String())

	rec = testutil.MakeRequest(f.app.Router, http.MethodGet, "/api/admin/earnings/summary?start_date=yesterday", nil, f.adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = testutil.MakeRequest(f.app.Router, http.MethodGet, "/api/admin/audit-logs?action="+model.ActionRecordEarning, nil, f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []service.AuditLogResponse
	testutil.DecodeData(t, rec, &logs)
	assert.Len(t, logs, 1)
}

func TestStaleTokenFollowsStoredAccount(t *testing.T) {
	f := newFixture(t)
	manager := testutil.CreateTestUser(t, f.db, "manager@example.com", "password123", permission.RoleCompanyAdmin)
	managerToken := testutil.GetAuthToken(t, f.app, manager)
	id := manager.ID.String()

	rec := testutil.MakeRequest(f.app.Router, http.MethodGet, "/api/admin/users/list", nil, managerToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = testutil.MakeRequest(f.app.Router, http.MethodPost, "/api/admin/users/"+id+"/update-status",
		service.UpdateUserStatusRequest{Status: model.UserStatusSuspended}, f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = testutil.MakeRequest(f.app.Router, http.MethodGet, "/api/admin/users/list", nil, managerToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "account is suspended", testutil.ParseResponse(t, rec).Error)
	rec = testutil.MakeRequest(f.app.Router, http.MethodGet, "/api/auth/me", nil, managerToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = testutil.MakeRequest(f.app.Router, http.MethodPost, "/api/admin/users/"+id+"/update-status",
		service.UpdateUserStatusRequest{Status: model.UserStatusActive}, f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = testutil.MakeRequest(f.app.Router, http.MethodGet, "/api/admin/users/list", nil, managerToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = testutil.MakeRequest(f.app.Router, http.MethodPost, "/api/admin/users/"+id+"/update-role",
		service.UpdateUserRoleRequest{Role: permission.RoleArtist}, f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code)

	// The token still claims company_admin.
	rec = testutil.MakeRequest(f.app.Router, http.MethodGet, "/api/admin/users/list", nil, managerToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, testutil.ParseResponse(t, rec).Error, permission.UserRead)
}

func TestEventStreamRequiresPermission(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.app.Router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token="

	_, resp, err := gorillaws.DefaultDialer.Dial(url+f.artistToken, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := gorillaws.DefaultDialer.Dial(url+f.adminToken, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.app.Hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.app.Hub.Publish(service.EventUserRoleUpdated, map[string]string{"email": "someone-else@example.com"})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), service.EventUserRoleUpdated)
}
