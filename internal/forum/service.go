package forum

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

type Service interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, in CreateCategoryInput) (*Category, error)
	ListTopics(ctx context.Context) ([]Topic, error)
	CreateTopic(ctx context.Context, in CreateTopicInput) (*Post, error)
	SetTopicPinned(ctx context.Context, in PinInput) error
	SetTopicLocked(ctx context.Context, in LockInput) error
	ArchiveTopic(ctx context.Context, in ArchiveInput) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list categories")
		return nil, fmt.Errorf("service: failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *service) CreateCategory(ctx context.Context, in CreateCategoryInput) (*Category, error) {
	icon := DefaultCategoryIcon
	if in.Icon != nil {
		icon = *in.Icon
	}
	color := DefaultCategoryColor
	if in.Color != nil {
		color = *in.Color
	}

	created, err := s.repo.CreateCategory(ctx, in.Name, in.Description, icon, color)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to create category")
		return nil, fmt.Errorf("service: failed to create category: %w", err)
	}

	log.Info().Int64("category_id", created.ID).Str("name", created.Name).Msg("service: category created")
	return created, nil
}

func (s *service) ListTopics(ctx context.Context) ([]Topic, error) {
	topics, err := s.repo.ListTopics(ctx, TopicListLimit)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list topics")
		return nil, fmt.Errorf("service: failed to list topics: %w", err)
	}
	return topics, nil
}

func (s *service) CreateTopic(ctx context.Context, in CreateTopicInput) (*Post, error) {
	first, err := s.repo.CreateTopic(ctx, in)
	if err != nil {
		log.Error().Err(err).Interface("author_id", in.AuthorID).Interface("category_id", in.CategoryID).Msg("service: failed to create topic")
		return nil, fmt.Errorf("service: failed to create topic: %w", err)
	}

	log.Info().Int64("topic_id", first.TopicID).Int64("post_id", first.ID).Int64("author_id", first.AuthorID).Msg("service: topic created")
	return first, nil
}

func (s *service) SetTopicPinned(ctx context.Context, in PinInput) error {
	if err := s.repo.SetPinned(ctx, in.TopicID, in.IsPinned); err != nil {
		log.Error().Err(err).Interface("topic_id", in.TopicID).Msg("service: failed to update pin status")
		return fmt.Errorf("service: failed to update pin status: %w", err)
	}
	return nil
}

func (s *service) SetTopicLocked(ctx context.Context, in LockInput) error {
	if err := s.repo.SetLocked(ctx, in.TopicID, in.IsLocked); err != nil {
		log.Error().Err(err).Interface("topic_id", in.TopicID).Msg("service: failed to update lock status")
		return fmt.Errorf("service: failed to update lock status: %w", err)
	}
	return nil
}

func (s *service) ArchiveTopic(ctx context.Context, in ArchiveInput) error {
	if err := s.repo.Archive(ctx, in.TopicID); err != nil {
		log.Error().Err(err).Interface("topic_id", in.TopicID).Msg("service: failed to archive topic")
		return fmt.Errorf("service: failed to archive topic: %w", err)
	}
	log.Info().Interface("topic_id", in.TopicID).Msg("service: topic archived")
	return nil
}
