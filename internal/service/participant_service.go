package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/f2freport-api/internal/dto"
	"github.com/noah-isme/f2freport-api/internal/models"
	"github.com/noah-isme/f2freport-api/internal/report"
	appErrors "github.com/noah-isme/f2freport-api/pkg/errors"
)

type participantRepository interface {
	ListBySession(ctx context.Context, sessionID int64) ([]models.Participant, error)
	Counts(ctx context.Context, sessionID int64) (models.ParticipantCounts, error)
	SessionInfo(ctx context.Context, sessionID int64, shape report.SchemaShape) (*models.SessionInfo, error)
}

// ParticipantService builds the participant list of a session.
type ParticipantService struct {
	participants participantRepository
	fields       fieldResolver
	logger       *zap.Logger
}

// NewParticipantService constructs a ParticipantService.
func NewParticipantService(participants participantRepository, fields fieldResolver, logger *zap.Logger) *ParticipantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParticipantService{participants: participants, fields: fields, logger: logger}
}

// Report returns the session header with its participants grouped by status, highest priority first.
func (s *ParticipantService) Report(ctx context.Context, sessionID int64) (*dto.ParticipantReport, error) {
	if sessionID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid session id")
	}

	resolution, err := s.fields.Resolution(ctx)
	if err != nil {
		return nil, err
	}

	info, err := s.participants.SessionInfo(ctx, sessionID, resolution.Shape)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	participants, err := s.participants.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list participants")
	}

	counts, err := s.participants.Counts(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count participants")
	}

	groups := GroupParticipants(participants)
	s.logger.Debug("participant report built",
		zap.Int64("session_id", sessionID),
		zap.Int("groups", len(groups)),
		zap.Int("total", counts.Total),
	)
	return &dto.ParticipantReport{Session: *info, Groups: groups, Counts: counts}, nil
}

// GroupParticipants buckets participants by status in priority order. Empty
// groups are omitted and unknown codes are dropped.
func GroupParticipants(participants []models.Participant) []dto.ParticipantGroup {
	byStatus := make(map[models.StatusCode][]models.Participant)
	for _, p := range participants {
		if !p.StatusCode.Valid() {
			continue
		}
		byStatus[p.StatusCode] = append(byStatus[p.StatusCode], p)
	}

	groups := make([]dto.ParticipantGroup, 0, len(byStatus))
	for _, status := range models.StatusPriority {
		members, ok := byStatus[status]
		if !ok {
			continue
		}
		groups = append(groups, dto.ParticipantGroup{
			Status:       status.String(),
			StatusCode:   status,
			Label:        status.Label(),
			Participants: members,
		})
	}
	return groups
}
