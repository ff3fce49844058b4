package bunstore

import (
	"time"

	"github.com/uptrace/bun"
)

// uploadRow is a ledger entry keyed by content hash.
type uploadRow struct {
	bun.BaseModel `bun:"table:uploads,alias:u"`

	SHA256     string    `bun:"sha256,pk"`
	FileName   string    `bun:",notnull"`
	Size       int64     `bun:",notnull"`
	BatchID    int64     `bun:",notnull"`
	UploadedAt time.Time `bun:",notnull"`
}

type watermarkRow struct {
	bun.BaseModel `bun:"table:watermarks,alias:w"`

	Source    string    `bun:",pk"`
	ScannedAt time.Time `bun:",notnull"`
}

// splitDraftRow stores an editor draft as JSON.
type splitDraftRow struct {
	bun.BaseModel `bun:"table:split_drafts,alias:sd"`

	BatchID   int64     `bun:",pk"`
	Payload   string    `bun:",notnull"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}
