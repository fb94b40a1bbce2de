package access

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwpdesign/PP2-sub001/pkg/access"
	"github.com/mwpdesign/PP2-sub001/pkg/config"
	"github.com/mwpdesign/PP2-sub001/pkg/interfaces"
	"github.com/mwpdesign/PP2-sub001/pkg/logger"
	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

const testJWTSecret = "handler-test-secret"

// fakeRecordRepo serves a fixed record set
type fakeRecordRepo struct {
	records []*types.WorkflowRecord
	err     error
}

func (f *fakeRecordRepo) List(ctx context.Context, criteria *types.RecordSearchCriteria, limit int) ([]*types.WorkflowRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeRecordRepo) GetByID(ctx context.Context, id string) (*types.WorkflowRecord, error) {
	for _, record := range f.records {
		if record.ID == id {
			return record, nil
		}
	}
	return nil, types.NewNotFoundError(types.ErrCodeNotFound, "record not found")
}

func newTestService(source *fakeActorSource, records interfaces.RecordRepository, sink access.AuditSink) *Service {
	log := logger.New("debug")
	directory := NewOrgDirectory(source, nil, time.Minute, time.Second, log, nil)
	filter := NewFilter(directory, log, nil)
	enforcer := NewEnforcer(&fakeRecorder{}, log, nil)

	cfg := &config.Config{}
	cfg.Server.ShutdownTimeout = 5
	cfg.JWT.SecretKey = testJWTSecret

	service := &Service{
		config:         cfg,
		router:         mux.NewRouter(),
		logger:         log,
		tokenValidator: NewTokenValidator(testJWTSecret),
		actors:         source,
		records:        records,
		engine:         NewEngine(directory, filter, enforcer, sink, log),
		directory:      directory,
	}
	service.setupMiddleware()
	service.setupRoutes()
	return service
}

func bearerToken(t *testing.T, actorID string, role types.Role) string {
	t.Helper()
	return "Bearer " + signTestToken(t, testJWTSecret, &JWTClaims{
		ActorID: actorID,
		Role:    string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
}

func doRequest(service *Service, method, target, auth string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	recorder := httptest.NewRecorder()
	service.router.ServeHTTP(recorder, req)
	return recorder
}

func standardHierarchy() *fakeActorSource {
	return newFakeActorSource(
		testActor("admin-1", types.RoleAdmin, ""),
		testActor("dist-1", types.RoleDistributor, ""),
		testActor("dist-2", types.RoleDistributor, ""),
		testActor("doc-a", types.RoleDoctor, "dist-1"),
		testActor("doc-b", types.RoleDoctor, "dist-2"),
	)
}

func TestHandlers_ListRecords_FiltersByBranch(t *testing.T) {
	source := standardHierarchy()
	records := &fakeRecordRepo{records: []*types.WorkflowRecord{
		ownedRecord("rec-1", "doc-a"),
		ownedRecord("rec-2", "doc-b"),
	}}
	service := newTestService(source, records, &fakeSink{})

	recorder := doRequest(service, http.MethodGet, "/api/v1/records", bearerToken(t, "dist-1", types.RoleDistributor), nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Records    []*types.WorkflowRecord `json:"records"`
		Pagination *types.PaginationMeta   `json:"pagination"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))

	require.Len(t, response.Records, 1)
	assert.Equal(t, "rec-1", response.Records[0].ID)
	assert.Equal(t, 1, response.Pagination.Total)
	assert.False(t, response.Pagination.HasMore)
}

func TestHandlers_ListRecords_AdminSeesAll(t *testing.T) {
	source := standardHierarchy()
	records := &fakeRecordRepo{records: []*types.WorkflowRecord{
		ownedRecord("rec-1", "doc-a"),
		ownedRecord("rec-2", "doc-b"),
	}}
	service := newTestService(source, records, &fakeSink{})

	recorder := doRequest(service, http.MethodGet, "/api/v1/records", bearerToken(t, "admin-1", types.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Records []*types.WorkflowRecord `json:"records"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Len(t, response.Records, 2)
}

func TestHandlers_ListRecords_RequiresAuth(t *testing.T) {
	service := newTestService(standardHierarchy(), &fakeRecordRepo{}, &fakeSink{})

	recorder := doRequest(service, http.MethodGet, "/api/v1/records", "", nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = doRequest(service, http.MethodGet, "/api/v1/records", "Bearer garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = doRequest(service, http.MethodGet, "/api/v1/records", "Basic dXNlcjpwYXNz", nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestHandlers_ListRecords_UnknownActorFailsClosed(t *testing.T) {
	source := standardHierarchy()
	records := &fakeRecordRepo{records: []*types.WorkflowRecord{
		ownedRecord("rec-1", "doc-a"),
	}}
	service := newTestService(source, records, &fakeSink{})

	// Valid token for an actor the directory has never heard of
	recorder := doRequest(service, http.MethodGet, "/api/v1/records", bearerToken(t, "ghost-9", types.RoleDistributor), nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Records    []*types.WorkflowRecord `json:"records"`
		Pagination *types.PaginationMeta   `json:"pagination"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Empty(t, response.Records)
	assert.Zero(t, response.Pagination.Total)
}

func TestHandlers_ListRecords_DeactivatedActorFailsClosed(t *testing.T) {
	source := standardHierarchy()
	source.actors["dist-1"].IsActive = false
	records := &fakeRecordRepo{records: []*types.WorkflowRecord{
		ownedRecord("rec-1", "doc-a"),
	}}
	service := newTestService(source, records, &fakeSink{})

	recorder := doRequest(service, http.MethodGet, "/api/v1/records", bearerToken(t, "dist-1", types.RoleDistributor), nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Records []*types.WorkflowRecord `json:"records"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Empty(t, response.Records)
}

func TestHandlers_FilterRecords(t *testing.T) {
	service := newTestService(standardHierarchy(), &fakeRecordRepo{}, &fakeSink{})

	payload := map[string]interface{}{
		"records": []*types.WorkflowRecord{
			ownedRecord("rec-1", "doc-a"),
			ownedRecord("rec-2", "doc-b"),
		},
	}

	recorder := doRequest(service, http.MethodPost, "/api/v1/access/filter", bearerToken(t, "dist-1", types.RoleDistributor), payload)
	require.Equal(t, http.StatusOK, recorder.Code)

	var result access.FilterResult
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&result))
	require.Len(t, result.Visible, 1)
	assert.Equal(t, "rec-1", result.Visible[0].ID)
	assert.Equal(t, 1, result.Dropped)
}

func TestHandlers_ActivateView_ReadOnly(t *testing.T) {
	service := newTestService(standardHierarchy(), &fakeRecordRepo{}, &fakeSink{})

	payload := &access.GrantRequest{
		Resource:   "/doctor/orders",
		TargetRole: types.RoleDoctor,
		Controls: []access.Control{
			{ID: "send-message", Category: access.ControlCommunication},
			{ID: "save-order"},
		},
	}

	recorder := doRequest(service, http.MethodPost, "/api/v1/access/grants", bearerToken(t, "dist-1", types.RoleDistributor), payload)
	require.Equal(t, http.StatusOK, recorder.Code)

	var grant access.ViewGrant
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&grant))
	assert.Equal(t, access.ModeReadOnly, grant.Mode)
	assert.Equal(t, "healthcare providers", grant.OnBehalfOf)
	assert.True(t, grant.Controls["send-message"])
	assert.False(t, grant.Controls["save-order"])
}

func TestHandlers_ActivateView_ValidatesPayload(t *testing.T) {
	service := newTestService(standardHierarchy(), &fakeRecordRepo{}, &fakeSink{})
	auth := bearerToken(t, "dist-1", types.RoleDistributor)

	recorder := doRequest(service, http.MethodPost, "/api/v1/access/grants", auth, &access.GrantRequest{TargetRole: types.RoleDoctor})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doRequest(service, http.MethodPost, "/api/v1/access/grants", auth, &access.GrantRequest{Resource: "/doctor/orders"})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandlers_EvaluateMode(t *testing.T) {
	service := newTestService(standardHierarchy(), &fakeRecordRepo{}, &fakeSink{})

	recorder := doRequest(service, http.MethodGet, "/api/v1/access/mode?target_role=doctor", bearerToken(t, "admin-1", types.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Mode access.ViewPermissionMode `json:"mode"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, access.ModeReadOnly, response.Mode)

	recorder = doRequest(service, http.MethodGet, "/api/v1/access/mode", bearerToken(t, "admin-1", types.RoleAdmin), nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandlers_GetDownline(t *testing.T) {
	service := newTestService(standardHierarchy(), &fakeRecordRepo{}, &fakeSink{})

	// Actors may always inspect their own downline
	recorder := doRequest(service, http.MethodGet, "/api/v1/access/downline", bearerToken(t, "dist-1", types.RoleDistributor), nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		ActorID   string   `json:"actor_id"`
		DoctorIDs []string `json:"doctor_ids"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "dist-1", response.ActorID)
	assert.Equal(t, []string{"doc-a"}, response.DoctorIDs)

	// Inspecting someone else's downline needs a global role
	recorder = doRequest(service, http.MethodGet, "/api/v1/access/downline?actor_id=dist-2", bearerToken(t, "dist-1", types.RoleDistributor), nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = doRequest(service, http.MethodGet, "/api/v1/access/downline?actor_id=dist-2", bearerToken(t, "admin-1", types.RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestHandlers_InvalidateDirectory_AdminOnly(t *testing.T) {
	service := newTestService(standardHierarchy(), &fakeRecordRepo{}, &fakeSink{})

	recorder := doRequest(service, http.MethodPost, "/api/v1/access/directory/invalidate", bearerToken(t, "dist-1", types.RoleDistributor), nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = doRequest(service, http.MethodPost, "/api/v1/access/directory/invalidate", bearerToken(t, "admin-1", types.RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestHandlers_DirectoryStats_AdminOnly(t *testing.T) {
	service := newTestService(standardHierarchy(), &fakeRecordRepo{}, &fakeSink{})

	recorder := doRequest(service, http.MethodGet, "/api/v1/access/directory/stats", bearerToken(t, "doc-a", types.RoleDoctor), nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = doRequest(service, http.MethodGet, "/api/v1/access/directory/stats", bearerToken(t, "admin-1", types.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var stats access.CacheStatistics
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&stats))
}

func TestHandlers_QueryAudit_AdminOnly(t *testing.T) {
	sink := &fakeSink{}
	require.NoError(t, sink.WriteEntry(context.Background(), &access.AuditEntry{
		ID:      "entry-1",
		ActorID: "dist-1",
		Action:  access.ActionReadOnlyView,
	}))
	service := newTestService(standardHierarchy(), &fakeRecordRepo{}, sink)

	recorder := doRequest(service, http.MethodGet, "/api/v1/audit", bearerToken(t, "dist-1", types.RoleDistributor), nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = doRequest(service, http.MethodGet, "/api/v1/audit", bearerToken(t, "admin-1", types.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Entries []*access.AuditEntry `json:"entries"`
		Count   int                  `json:"count"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, 1, response.Count)
	require.Len(t, response.Entries, 1)
	assert.Equal(t, "entry-1", response.Entries[0].ID)
}

func TestHandlers_SecurityHeadersPresent(t *testing.T) {
	service := newTestService(standardHierarchy(), &fakeRecordRepo{}, &fakeSink{})

	recorder := doRequest(service, http.MethodGet, "/api/v1/records", bearerToken(t, "dist-1", types.RoleDistributor), nil)
	assert.Equal(t, "nosniff", recorder.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", recorder.Header().Get("X-Frame-Options"))
}

func TestHandlers_ListRecords_Pagination(t *testing.T) {
	source := standardHierarchy()
	var fixture []*types.WorkflowRecord
	for i := 0; i < 7; i++ {
		fixture = append(fixture, ownedRecord(string(rune('a'+i)), "doc-a"))
	}
	service := newTestService(source, &fakeRecordRepo{records: fixture}, &fakeSink{})

	recorder := doRequest(service, http.MethodGet, "/api/v1/records?limit=3&offset=3", bearerToken(t, "dist-1", types.RoleDistributor), nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Records    []*types.WorkflowRecord `json:"records"`
		Pagination *types.PaginationMeta   `json:"pagination"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Len(t, response.Records, 3)
	assert.Equal(t, 7, response.Pagination.Total)
	assert.Equal(t, 3, response.Pagination.Offset)
	assert.True(t, response.Pagination.HasMore)
}
