package commission

import (
	"encoding/base64"
	"encoding/json"

	"github.com/marketplace/backend/internal/domain/shared"
)

// checkpointToken is the wire shape of an opaque resume token
type checkpointToken struct {
	BatchID string `json:"batch_id"`
	Offset  int64  `json:"offset"`
}

// EncodeCheckpointToken packs a batch position into an opaque token the
// caller can hand back to resume a bulk run
func EncodeCheckpointToken(batchID string, offset int64) string {
	payload, _ := json.Marshal(checkpointToken{BatchID: batchID, Offset: offset})
	return base64.RawURLEncoding.EncodeToString(payload)
}

// DecodeCheckpointToken unpacks a resume token
func DecodeCheckpointToken(token string) (batchID string, offset int64, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", 0, shared.NewDomainError("INVALID_CHECKPOINT_TOKEN", "Checkpoint token is not valid base64")
	}
	var payload checkpointToken
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", 0, shared.NewDomainError("INVALID_CHECKPOINT_TOKEN", "Checkpoint token payload is malformed")
	}
	if payload.BatchID == "" || payload.Offset < 0 {
		return "", 0, shared.NewDomainError("INVALID_CHECKPOINT_TOKEN", "Checkpoint token payload is incomplete")
	}
	return payload.BatchID, payload.Offset, nil
}
