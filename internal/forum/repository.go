package forum

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/forum-service/internal/db"
)

// ErrInvalidReference means a topic or post pointed at a category, user or
// topic that does not exist.
var ErrInvalidReference = errors.New("referenced row does not exist")

type Repository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, name, description *string, icon, color string) (*Category, error)
	ListTopics(ctx context.Context, limit int) ([]Topic, error)
	CreateTopic(ctx context.Context, in CreateTopicInput) (*Post, error)
	SetPinned(ctx context.Context, topicID *int64, pinned *bool) error
	SetLocked(ctx context.Context, topicID *int64, locked *bool) error
	Archive(ctx context.Context, topicID *int64) error
}

type postgresRepository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &postgresRepository{db: q}
}

func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
		return fmt.Errorf("%w: %s", ErrInvalidReference, pgErr.ConstraintName)
	}
	return err
}

func (r *postgresRepository) ListCategories(ctx context.Context) ([]Category, error) {
	query := `
		SELECT c.id, c.name, c.description, c.icon, c.color, c.created_at,
		       (SELECT COUNT(*) FROM topics t WHERE t.category_id = c.id AND t.is_archived = FALSE) AS topics_count
		FROM categories c
		ORDER BY c.id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Description,
			&c.Icon,
			&c.Color,
			&c.CreatedAt,
			&c.TopicsCount,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating categories: %w", err)
	}

	return categories, nil
}

func (r *postgresRepository) CreateCategory(ctx context.Context, name, description *string, icon, color string) (*Category, error) {
	query := `
		INSERT INTO categories (name, description, icon, color)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, description, icon, color, created_at
	`

	var c Category
	err := r.db.QueryRow(ctx, query, name, description, icon, color).Scan(
		&c.ID,
		&c.Name,
		&c.Description,
		&c.Icon,
		&c.Color,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to insert category: %w", err)
	}

	return &c, nil
}

func (r *postgresRepository) ListTopics(ctx context.Context, limit int) ([]Topic, error) {
	query := `
		SELECT t.id, t.title, t.category_id, t.author_id,
		       t.is_pinned, t.is_locked, t.is_archived,
		       t.replies_count, t.views_count, t.created_at, t.updated_at,
		       u.username, u.role, u.rank, u.posts_count, u.reputation,
		       c.name,
		       EXTRACT(EPOCH FROM (NOW() - t.updated_at))::float8 AS seconds_ago
		FROM topics t
		LEFT JOIN users u ON t.author_id = u.id
		LEFT JOIN categories c ON t.category_id = c.id
		WHERE t.is_archived = FALSE
		ORDER BY t.is_pinned DESC, t.updated_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query topics: %w", err)
	}
	defer rows.Close()

	topics := make([]Topic, 0)
	for rows.Next() {
		var t Topic
		err := rows.Scan(
			&t.ID,
			&t.Title,
			&t.CategoryID,
			&t.AuthorID,
			&t.IsPinned,
			&t.IsLocked,
			&t.IsArchived,
			&t.RepliesCount,
			&t.ViewsCount,
			&t.CreatedAt,
			&t.UpdatedAt,
			&t.AuthorUsername,
			&t.AuthorRole,
			&t.AuthorRank,
			&t.AuthorPosts,
			&t.AuthorReputation,
			&t.CategoryName,
			&t.SecondsAgo,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan topic: %w", err)
		}
		topics = append(topics, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating topics: %w", err)
	}

	return topics, nil
}

// CreateTopic inserts the topic, its first post and bumps the author's
// posts_count in one transaction. It returns the first post.
func (r *postgresRepository) CreateTopic(ctx context.Context, in CreateTopicInput) (post *Post, err error) {
	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Msg("Panic recovered during CreateTopic, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			log.Warn().Err(err).Interface("author_id", in.AuthorID).Msg("Transaction for CreateTopic failed, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("Failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				log.Error().Err(commitErr).Int64("topic_id", post.TopicID).Msg("Failed to commit transaction")
				post = nil
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	var topicID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO topics (title, category_id, author_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`, in.Title, in.CategoryID, in.AuthorID).Scan(&topicID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to insert topic: %w", mapConstraintError(err))
	}

	var first Post
	err = tx.QueryRow(ctx, `
		INSERT INTO posts (topic_id, author_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, topic_id, author_id, content, created_at
	`, topicID, in.AuthorID, in.Content).Scan(
		&first.ID,
		&first.TopicID,
		&first.AuthorID,
		&first.Content,
		&first.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to insert first post for topic %d: %w", topicID, mapConstraintError(err))
	}

	_, err = tx.Exec(ctx, `UPDATE users SET posts_count = posts_count + 1 WHERE id = $1`, in.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to bump posts_count: %w", err)
	}

	return &first, nil
}

func (r *postgresRepository) updateTopic(ctx context.Context, query string, args ...any) error {
	cmdTag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("repository: failed to update topic: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		log.Warn().Interface("topic_id", args[len(args)-1]).Msg("repository: no topic matched update")
	}

	return nil
}

func (r *postgresRepository) SetPinned(ctx context.Context, topicID *int64, pinned *bool) error {
	return r.updateTopic(ctx, `UPDATE topics SET is_pinned = $1 WHERE id = $2`, pinned, topicID)
}

func (r *postgresRepository) SetLocked(ctx context.Context, topicID *int64, locked *bool) error {
	return r.updateTopic(ctx, `UPDATE topics SET is_locked = $1 WHERE id = $2`, locked, topicID)
}

func (r *postgresRepository) Archive(ctx context.Context, topicID *int64) error {
	return r.updateTopic(ctx, `UPDATE topics SET is_archived = TRUE WHERE id = $1`, topicID)
}
