package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appcommission "github.com/marketplace/backend/internal/application/commission"
	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/marketplace/backend/tests/testutil"
)

func newAuditTestRouter(t *testing.T) (*gin.Engine, *MockAuditRepository) {
	t.Helper()
	audits := new(MockAuditRepository)
	service := appcommission.NewAuditService(audits, nil)
	h := NewAuditHandler(service)

	engine := gin.New()
	api := engine.Group("/api/v1")
	h.RegisterRoutes(api)
	return engine, audits
}

func TestAuditHandler_Query(t *testing.T) {
	engine, audits := newAuditTestRouter(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	record := auditRecordForTest(t, "line-001", at)

	audits.On("Query", mock.Anything, mock.MatchedBy(func(q commission.AuditQuery) bool {
		return q.LineItemRef == "line-001" && q.Filter.Page == 1 && q.Filter.PageSize == 20
	})).Return([]*commission.CommissionAuditRecord{record}, int64(1), nil)

	w := testutil.DoJSON(t, engine, http.MethodGet, "/api/v1/commission/audits?line_item_ref=line-001", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                                `json:"success"`
		Data    []appcommission.AuditRecordResponse `json:"data"`
		Meta    struct {
			Total int64 `json:"total"`
			Page  int   `json:"page"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "line-001", resp.Data[0].Resolution.LineItemRef)
	assert.Equal(t, int64(1), resp.Meta.Total)
	assert.Equal(t, 1, resp.Meta.Page)
}

func TestAuditHandler_Query_VendorWindow(t *testing.T) {
	engine, audits := newAuditTestRouter(t)
	vendorID := uuid.New()

	audits.On("Query", mock.Anything, mock.MatchedBy(func(q commission.AuditQuery) bool {
		return q.VendorID != nil && *q.VendorID == vendorID && q.From != nil && q.To != nil
	})).Return([]*commission.CommissionAuditRecord{}, int64(0), nil)

	path := "/api/v1/commission/audits?vendor_id=" + vendorID.String() +
		"&from=2026-03-01T00:00:00Z&to=2026-04-01T00:00:00Z"
	w := testutil.DoJSON(t, engine, http.MethodGet, path, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	audits.AssertExpectations(t)
}

func TestAuditHandler_Get(t *testing.T) {
	engine, audits := newAuditTestRouter(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	record := auditRecordForTest(t, "line-002", at)

	audits.On("FindByID", mock.Anything, record.ID).Return(record, nil)

	w := testutil.DoJSON(t, engine, http.MethodGet, "/api/v1/commission/audits/"+record.ID.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data appcommission.AuditRecordResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, record.ID, resp.Data.ID)
	assert.Equal(t, record.Checksum, resp.Data.Checksum)
}

func TestAuditHandler_Get_NotFound(t *testing.T) {
	engine, audits := newAuditTestRouter(t)
	id := uuid.New()

	audits.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

	w := testutil.DoJSON(t, engine, http.MethodGet, "/api/v1/commission/audits/"+id.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_NOT_FOUND")
}

func TestAuditHandler_Get_BadID(t *testing.T) {
	engine, _ := newAuditTestRouter(t)

	w := testutil.DoJSON(t, engine, http.MethodGet, "/api/v1/commission/audits/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuditHandler_Verify(t *testing.T) {
	engine, audits := newAuditTestRouter(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	record := auditRecordForTest(t, "line-003", at)

	audits.On("FindByID", mock.Anything, record.ID).Return(record, nil)

	w := testutil.DoJSON(t, engine, http.MethodGet, "/api/v1/commission/audits/"+record.ID.String()+"/verify", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data appcommission.AuditVerifyResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, record.Checksum, resp.Data.Checksum)
}

func TestAuditHandler_Verify_Tampered(t *testing.T) {
	engine, audits := newAuditTestRouter(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	record := auditRecordForTest(t, "line-004", at)
	// Simulate after-the-fact mutation of the stored payload
	record.Resolution.LineItemRef = "line-004-altered"

	audits.On("FindByID", mock.Anything, record.ID).Return(record, nil)

	w := testutil.DoJSON(t, engine, http.MethodGet, "/api/v1/commission/audits/"+record.ID.String()+"/verify", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data appcommission.AuditVerifyResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Valid)
}
