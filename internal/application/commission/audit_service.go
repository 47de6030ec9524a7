package commission

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/domain/shared"
)

// AuditService exposes read access to the resolution audit trail. Records
// are append-only; the service offers no mutation surface at all.
type AuditService struct {
	audits commission.AuditRepository
	logger *zap.Logger
}

// NewAuditService creates an AuditService
func NewAuditService(audits commission.AuditRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{audits: audits, logger: logger}
}

// Query returns a page of audit records matching the request filters,
// together with the total count for pagination
func (s *AuditService) Query(ctx context.Context, req AuditQueryRequest) ([]AuditRecordResponse, int64, error) {
	filter := shared.DefaultFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	filter.OrderBy = "recorded_at"

	query := commission.AuditQuery{
		LineItemRef: req.LineItemRef,
		VendorID:    req.VendorID,
		ProductID:   req.ProductID,
		From:        req.From,
		To:          req.To,
		Filter:      filter,
	}

	records, total, err := s.audits.Query(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]AuditRecordResponse, 0, len(records))
	for _, r := range records {
		responses = append(responses, ToAuditRecordResponse(r))
	}
	return responses, total, nil
}

// Get returns a single audit record by its identifier
func (s *AuditService) Get(ctx context.Context, id uuid.UUID) (*AuditRecordResponse, error) {
	record, err := s.audits.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToAuditRecordResponse(record)
	return &resp, nil
}

// Verify recomputes the checksum of a stored record and reports whether
// it still matches. A mismatch means the row was altered after the fact.
func (s *AuditService) Verify(ctx context.Context, id uuid.UUID) (*AuditVerifyResponse, error) {
	record, err := s.audits.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	valid := record.Verify()
	if !valid {
		s.logger.Warn("audit record failed checksum verification",
			zap.String("record_id", record.ID.String()),
			zap.String("line_item_ref", record.Resolution.LineItemRef))
	}
	return &AuditVerifyResponse{
		ID:          record.ID,
		LineItemRef: record.Resolution.LineItemRef,
		Checksum:    record.Checksum,
		Valid:       valid,
	}, nil
}
