package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Batch struct {
	bun.BaseModel `bun:"table:smr.batches,alias:b"`

	ID        uuid.UUID `bun:"type:uuid,pk"`
	Label     string    `bun:",notnull"`
	Gene      string    `bun:",notnull"`
	BFile     string    `bun:"bfile,notnull"`
	Probe     string    `bun:",nullzero"`
	EQTL      string    `bun:"eqtl,notnull"`
	SNPs      []string  `bun:"snps,array"`
	Backend   string    `bun:",notnull"`
	Policy    string    `bun:",notnull"`
	OutputDir string    `bun:",notnull"`
	Error     string    `bun:",nullzero"`

	StartedAt  time.Time `bun:",notnull"`
	FinishedAt time.Time `bun:",nullzero"`
	CreatedAt  time.Time `bun:",nullzero,notnull,default:current_timestamp"`

	Invocations []*Invocation `bun:"rel:has-many,join:id=batch_id"`
}

type Invocation struct {
	bun.BaseModel `bun:"table:smr.invocations,alias:i"`

	BatchID    uuid.UUID `bun:"type:uuid,pk"`
	Seq        int       `bun:",pk"`
	SNP        string    `bun:"snp,notnull"`
	Outcome    string    `bun:",notnull"`
	OutPrefix  string    `bun:",notnull"`
	Command    []string  `bun:",array"`
	Status     string    `bun:",notnull"`
	ExitCode   int       `bun:",notnull"`
	Attempts   int       `bun:",notnull"`
	StartedAt  time.Time `bun:",nullzero"`
	DurationMs int64     `bun:",notnull"`
	Error      string    `bun:",nullzero"`
	Stderr     string    `bun:",nullzero"`
}
