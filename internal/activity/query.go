package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/cmsauthz/internal/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	maxPage         = 1_000_000

	// MaxExportRows caps a single export.
	MaxExportRows = 10000
)

// Filters narrows activity queries. Zero values match everything.
type Filters struct {
	UserID       string
	Action       string
	ResourceType string
	From         *time.Time
	To           *time.Time
}

// ListOptions controls pagination and filtering for List.
type ListOptions struct {
	Page     int
	PageSize int
	Filters  Filters
}

// View is an activity row joined with the acting user's identity.
type View struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	UserEmail    string         `json:"user_email"`
	UserName     string         `json:"user_name"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Details      datatypes.JSON `json:"details,omitempty"`
	IPAddress    string         `json:"ip_address"`
	UserAgent    string         `json:"user_agent"`
	CreatedAt    time.Time      `json:"created_at"`
}

const viewColumns = "al.id, al.user_id, COALESCE(u.email, '') AS user_email, " +
	"COALESCE(u.username, '') AS user_name, al.action, al.resource_type, al.resource_id, " +
	"al.details, al.ip_address, al.user_agent, al.created_at"

// Page is one page of List results.
type Page struct {
	Items    []View
	Total    int64
	Page     int
	PageSize int
}

// List returns a page of activity ordered newest first, plus the total match count.
func (r *Recorder) List(ctx context.Context, opts ListOptions) (Page, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	perPage := opts.PageSize
	if perPage <= 0 {
		perPage = defaultPageSize
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}

	var total int64
	if err := r.filtered(ctx, opts.Filters).Count(&total).Error; err != nil {
		return Page{}, fmt.Errorf("activity recorder: count logs: %w", err)
	}

	views := make([]View, 0, perPage)
	if err := r.filtered(ctx, opts.Filters).
		Joins("LEFT JOIN users u ON u.id = al.user_id").
		Select(viewColumns).
		Order("al.created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Scan(&views).Error; err != nil {
		return Page{}, fmt.Errorf("activity recorder: list logs: %w", err)
	}

	return Page{Items: views, Total: total, Page: page, PageSize: perPage}, nil
}

// Export returns up to MaxExportRows matching rows, newest first.
func (r *Recorder) Export(ctx context.Context, filters Filters) ([]View, error) {
	ctx = ensureContext(ctx)

	var views []View
	if err := r.filtered(ctx, filters).
		Joins("LEFT JOIN users u ON u.id = al.user_id").
		Select(viewColumns).
		Order("al.created_at DESC").
		Limit(MaxExportRows).
		Scan(&views).Error; err != nil {
		return nil, fmt.Errorf("activity recorder: export logs: %w", err)
	}
	return views, nil
}

// CleanupOlderThan deletes entries older than retentionDays and returns the number removed.
func (r *Recorder) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)

	if retentionDays <= 0 {
		return 0, errors.New("activity recorder: retentionDays must be positive")
	}

	cutoff := r.now().UTC().AddDate(0, 0, -retentionDays)
	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.ActivityLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("activity recorder: cleanup logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *Recorder) filtered(ctx context.Context, filters Filters) *gorm.DB {
	query := r.db.WithContext(ctx).Table("activity_logs AS al")
	if filters.UserID != "" {
		query = query.Where("al.user_id = ?", filters.UserID)
	}
	if filters.Action != "" {
		query = query.Where("al.action = ?", filters.Action)
	}
	if filters.ResourceType != "" {
		query = query.Where("al.resource_type = ?", filters.ResourceType)
	}
	if filters.From != nil {
		query = query.Where("al.created_at >= ?", filters.From.UTC())
	}
	if filters.To != nil {
		query = query.Where("al.created_at <= ?", filters.To.UTC())
	}
	return query
}
