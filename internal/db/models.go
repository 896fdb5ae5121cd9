package db

import (
	"encoding/json"
	"time"
)

// Cemetery maps kerkhof.cemeteries. Document holds the full canonical record,
// including keys the service does not model.
type Cemetery struct {
	CemeteryID   int64           `gorm:"column:cemetery_id;primaryKey;autoIncrement"`
	CemeteryUUID string          `gorm:"column:cemetery_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Slug         string          `gorm:"column:slug;type:text;not null;unique"`
	Name         string          `gorm:"column:name;type:text;not null"`
	Municipality string          `gorm:"column:municipality;type:text;not null"`
	Province     *string         `gorm:"column:province;type:text"`
	Place        *string         `gorm:"column:place;type:text"`
	Document     json.RawMessage `gorm:"column:document;type:jsonb;not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Cemetery) TableName() string { return "kerkhof.cemeteries" }

// Redirect maps kerkhof.redirects.
type Redirect struct {
	Source      string    `gorm:"column:source;type:text;primaryKey"`
	Destination string    `gorm:"column:destination;type:text;not null"`
	Permanent   bool      `gorm:"column:permanent;type:boolean;not null;default:true"`
	BuildID     string    `gorm:"column:build_id;type:uuid;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Redirect) TableName() string { return "kerkhof.redirects" }

// ReconcileRun maps kerkhof.reconcile_runs.
type ReconcileRun struct {
	RunID           int64           `gorm:"column:run_id;primaryKey;autoIncrement"`
	RunUUID         string          `gorm:"column:run_uuid;type:uuid;not null;unique"`
	StartedAt       time.Time       `gorm:"column:started_at;type:timestamptz;not null"`
	FinishedAt      time.Time       `gorm:"column:finished_at;type:timestamptz;not null"`
	TotalCanonical  int             `gorm:"column:total_canonical;type:integer;not null;default:0"`
	TotalDiscovered int             `gorm:"column:total_discovered;type:integer;not null;default:0"`
	Matched         int             `gorm:"column:matched;type:integer;not null;default:0"`
	Unmatched       int             `gorm:"column:unmatched;type:integer;not null;default:0"`
	Quarantined     int             `gorm:"column:quarantined;type:integer;not null;default:0"`
	TieBreaks       int             `gorm:"column:tie_breaks;type:integer;not null;default:0"`
	RecordsUpdated  int             `gorm:"column:records_updated;type:integer;not null;default:0"`
	Stats           json.RawMessage `gorm:"column:stats;type:jsonb;not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ReconcileRun) TableName() string { return "kerkhof.reconcile_runs" }

// MatchEvent maps kerkhof.match_events.
type MatchEvent struct {
	MatchEventID    int64           `gorm:"column:match_event_id;primaryKey;autoIncrement"`
	RunID           int64           `gorm:"column:run_id;type:bigint;not null;index"`
	CanonicalSlug   string          `gorm:"column:canonical_slug;type:text;not null"`
	DiscoveredID    *string         `gorm:"column:discovered_id;type:text"`
	MatchType       string          `gorm:"column:match_type;type:text;not null"`
	Confidence      float64         `gorm:"column:confidence;type:double precision;not null"`
	TieBreak        bool            `gorm:"column:tie_break;type:boolean;not null;default:false"`
	FieldsFilled    json.RawMessage `gorm:"column:fields_filled;type:jsonb;not null;default:'[]'"`
	FieldsRefreshed json.RawMessage `gorm:"column:fields_refreshed;type:jsonb;not null;default:'[]'"`
	CreatedAt       time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (MatchEvent) TableName() string { return "kerkhof.match_events" }

func autoMigrateModels() []any {
	return []any{
		&Cemetery{},
		&Redirect{},
		&ReconcileRun{},
		&MatchEvent{},
	}
}
