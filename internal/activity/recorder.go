package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/cmsauthz/internal/auditctx"
	"github.com/charlesng35/cmsauthz/internal/models"
	"github.com/charlesng35/cmsauthz/pkg/logger"
	"github.com/charlesng35/cmsauthz/pkg/metrics"
)

// Entry is one activity event to persist.
type Entry struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]any
	IPAddress    string
	UserAgent    string
}

// Sink accepts activity entries without reporting failures.
type Sink interface {
	Record(ctx context.Context, entry Entry)
}

// Recorder persists activity entries and serves the activity log queries.
type Recorder struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger
}

// Option customises a Recorder.
type Option func(*Recorder)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger overrides the logger used for suppressed failures.
func WithLogger(log *zap.Logger) Option {
	return func(r *Recorder) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRecorder constructs a Recorder using the provided database handle.
func NewRecorder(db *gorm.DB, opts ...Option) (*Recorder, error) {
	if db == nil {
		return nil, errors.New("activity recorder: db is required")
	}
	r := &Recorder{
		db:  db,
		now: time.Now,
		log: logger.WithModule("activity"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Log inserts a single activity row and reports any failure.
func (r *Recorder) Log(ctx context.Context, entry Entry) error {
	ctx = ensureContext(ctx)

	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return errors.New("activity recorder: action is required")
	}

	row := models.ActivityLog{
		ID:           uuid.NewString(),
		UserID:       strings.TrimSpace(entry.UserID),
		Action:       action,
		ResourceType: strings.TrimSpace(entry.ResourceType),
		ResourceID:   strings.TrimSpace(entry.ResourceID),
		IPAddress:    strings.TrimSpace(entry.IPAddress),
		UserAgent:    strings.TrimSpace(entry.UserAgent),
		CreatedAt:    r.now().UTC(),
	}
	if entry.Details != nil {
		encoded, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("activity recorder: marshal details: %w", err)
		}
		row.Details = datatypes.JSON(encoded)
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("activity recorder: insert %s: %w", action, err)
	}
	return nil
}

// Record persists entry on a best-effort basis. Failures are logged and counted
// here and nowhere else; the caller's operation always proceeds.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if err := r.Log(ctx, entry); err != nil {
		metrics.ActivityRecordFailures.Inc()
		r.log.Error("activity record dropped",
			zap.String("action", entry.Action),
			zap.String("user_id", entry.UserID),
			zap.Error(err),
		)
	}
}

// EntryFromContext builds an entry whose actor, IP and user agent come from the
// request actor stored in ctx.
func EntryFromContext(ctx context.Context, action, resourceType, resourceID string, details map[string]any) Entry {
	entry := Entry{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
	}
	if actor, ok := auditctx.FromContext(ctx); ok {
		entry.UserID = actor.UserID
		entry.IPAddress = actor.IPAddress
		entry.UserAgent = actor.UserAgent
	}
	return entry
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
