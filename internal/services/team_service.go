package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/cmsauthz/internal/activity"
	"github.com/charlesng35/cmsauthz/internal/models"
	"github.com/charlesng35/cmsauthz/internal/permissions"
	apperrors "github.com/charlesng35/cmsauthz/pkg/errors"
	"github.com/charlesng35/cmsauthz/pkg/validator"
)

var (
	// ErrTeamNotFound indicates the requested team does not exist.
	ErrTeamNotFound = apperrors.New("TEAM_NOT_FOUND", "Team not found", http.StatusNotFound)
	// ErrTeamMemberNotFound indicates the requested membership does not exist.
	ErrTeamMemberNotFound = apperrors.New("TEAM_MEMBER_NOT_FOUND", "User is not a member of the team", http.StatusNotFound)
)

// MemberInput is the team-scoped role plus any extra permission names granted
// to one member on top of that role.
type MemberInput struct {
	Role        string   `json:"role" validate:"required,role_name"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,permission_name"`
}

// Member is a membership row with its decoded custom permissions.
type Member struct {
	TeamID      string    `json:"team_id"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
	JoinedAt    time.Time `json:"joined_at"`
}

// TeamService manages team membership, the source of team-scoped grants.
type TeamService struct {
	db          *gorm.DB
	invalidator permissions.Invalidator
	activity    activity.Sink
}

// NewTeamService constructs a TeamService instance.
func NewTeamService(db *gorm.DB, invalidator permissions.Invalidator, sink activity.Sink) (*TeamService, error) {
	if db == nil {
		return nil, errors.New("team service: db is required")
	}
	return &TeamService{
		db:          db,
		invalidator: invalidator,
		activity:    sink,
	}, nil
}

// ListMembers returns the members of a team ordered by join time.
func (s *TeamService) ListMembers(ctx context.Context, teamID string) ([]Member, error) {
	ctx = ensureContext(ctx)

	if _, err := s.loadTeam(ctx, teamID); err != nil {
		return nil, err
	}

	var rows []models.TeamMembership
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("team_id = ?", strings.TrimSpace(teamID)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("team service: list members: %w", err)
	}

	members := make([]Member, 0, len(rows))
	for _, row := range rows {
		member, err := toMember(row)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, nil
}

// UpsertMember adds a user to a team or replaces their team role and custom
// permissions.
func (s *TeamService) UpsertMember(ctx context.Context, teamID, userID string, input MemberInput) (*Member, error) {
	ctx = ensureContext(ctx)

	input.Role = strings.TrimSpace(input.Role)
	input.Permissions = normaliseNames(input.Permissions)
	if err := validator.ValidateStruct(input); err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	team, err := s.loadTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	var user models.User
	err = s.db.WithContext(ctx).First(&user, "id = ?", strings.TrimSpace(userID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("team service: load user: %w", err)
	}

	var custom datatypes.JSON
	if len(input.Permissions) > 0 {
		raw, err := json.Marshal(input.Permissions)
		if err != nil {
			return nil, fmt.Errorf("team service: encode permissions: %w", err)
		}
		custom = datatypes.JSON(raw)
	}

	membership := models.TeamMembership{
		TeamID:      team.ID,
		UserID:      user.ID,
		Role:        input.Role,
		Permissions: custom,
	}

	created := false
	var stored models.TeamMembership
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.TeamMembership{}).
			Where("team_id = ? AND user_id = ?", team.ID, user.ID).
			Count(&existing).Error; err != nil {
			return err
		}
		created = existing == 0

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "team_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "permissions", "updated_at"}),
		}).Create(&membership).Error; err != nil {
			return err
		}

		// Reload so an update reports the original join time.
		return tx.Where("team_id = ? AND user_id = ?", team.ID, user.ID).First(&stored).Error
	})
	if err != nil {
		return nil, fmt.Errorf("team service: upsert member: %w", err)
	}

	action := "team.member_updated"
	if created {
		action = "team.member_added"
	}

	invalidateUser(s.invalidator, ctx, user.ID)
	recordActivity(s.activity, ctx, action, "team", team.ID, map[string]any{
		"user_id":     user.ID,
		"role":        input.Role,
		"permissions": input.Permissions,
	})

	stored.User = &user
	member, err := toMember(stored)
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// RemoveMember deletes a membership, revoking every team-scoped grant it carried.
func (s *TeamService) RemoveMember(ctx context.Context, teamID, userID string) error {
	ctx = ensureContext(ctx)

	teamID = strings.TrimSpace(teamID)
	userID = strings.TrimSpace(userID)

	res := s.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Delete(&models.TeamMembership{})
	if res.Error != nil {
		return fmt.Errorf("team service: remove member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTeamMemberNotFound
	}

	invalidateUser(s.invalidator, ctx, userID)
	recordActivity(s.activity, ctx, "team.member_removed", "team", teamID, map[string]any{
		"user_id": userID,
	})
	return nil
}

func (s *TeamService) loadTeam(ctx context.Context, teamID string) (*models.Team, error) {
	var team models.Team
	err := s.db.WithContext(ctx).First(&team, "id = ?", strings.TrimSpace(teamID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("team service: load team: %w", err)
	}
	return &team, nil
}

func toMember(row models.TeamMembership) (Member, error) {
	member := Member{
		TeamID:      row.TeamID,
		UserID:      row.UserID,
		Role:        row.Role,
		Permissions: []string{},
		JoinedAt:    row.CreatedAt,
	}
	if row.User != nil {
		member.Email = row.User.Email
		member.Username = row.User.Username
	}
	raw := strings.TrimSpace(string(row.Permissions))
	if raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &member.Permissions); err != nil {
			return Member{}, fmt.Errorf("team service: decode permissions for team %s: %w", row.TeamID, err)
		}
	}
	return member, nil
}
