package service

import (
	"context"
	"fmt"
	"math"

	"github.com/jengzang/records-explorer-go/internal/models"
	"github.com/jengzang/records-explorer-go/internal/repository"
)

// ActivityService handles business logic for stored activities
type ActivityService struct {
	activityRepo *repository.ActivityRepository
}

// NewActivityService creates a new activity service
func NewActivityService(activityRepo *repository.ActivityRepository) *ActivityService {
	return &ActivityService{
		activityRepo: activityRepo,
	}
}

// CreateActivity stores an activity with its point rows
func (s *ActivityService) CreateActivity(ctx context.Context, req *models.CreateActivityRequest) (*models.Activity, error) {
	activity := &models.Activity{
		Name:                      req.Name,
		Kind:                      req.Kind,
		ConsideredForAchievements: req.Considered(),
	}
	if _, err := s.activityRepo.CreateActivity(ctx, activity, req.ToPoints()); err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}
	return activity, nil
}

// GetActivity retrieves a single activity by ID
func (s *ActivityService) GetActivity(ctx context.Context, id int64) (*models.Activity, error) {
	activity, err := s.activityRepo.GetActivity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return activity, nil
}

// DeleteActivity removes an activity. The explorer notices on its next compute run.
func (s *ActivityService) DeleteActivity(ctx context.Context, id int64) error {
	if err := s.activityRepo.DeleteActivity(ctx, id); err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	return nil
}

// ListActivities retrieves activities with filtering and pagination
func (s *ActivityService) ListActivities(ctx context.Context, filter models.ActivityFilter) (*models.ActivitiesResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 50
	}
	if filter.PageSize > 500 {
		filter.PageSize = 500
	}

	activities, total, err := s.activityRepo.ListActivities(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	return &models.ActivitiesResponse{
		Data:       activities,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.PageSize))),
	}, nil
}
