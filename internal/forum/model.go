package forum

import "time"

const (
	// TopicListLimit caps GET topics.
	TopicListLimit = 50

	DefaultCategoryIcon  = "Folder"
	DefaultCategoryColor = "from-gray-500 to-gray-600"
)

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
	TopicsCount int64     `json:"topics_count"` // non-archived topics only
}

// Topic is a topics row joined with its author and category. The author and
// category fields are nil when the referenced row is missing.
type Topic struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	CategoryID       int64     `json:"category_id"`
	AuthorID         int64     `json:"author_id"`
	IsPinned         bool      `json:"is_pinned"`
	IsLocked         bool      `json:"is_locked"`
	IsArchived       bool      `json:"is_archived"`
	RepliesCount     int       `json:"replies_count"`
	ViewsCount       int       `json:"views_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	AuthorUsername   *string   `json:"author_username"`
	AuthorRole       *string   `json:"author_role"`
	AuthorRank       *string   `json:"author_rank"`
	AuthorPosts      *int      `json:"author_posts"`
	AuthorReputation *int      `json:"author_reputation"`
	CategoryName     *string   `json:"category_name"`
	SecondsAgo       float64   `json:"seconds_ago"`
}

type Post struct {
	ID        int64     `json:"id"`
	TopicID   int64     `json:"topic_id"`
	AuthorID  int64     `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Request bodies. Nil fields reach the database as NULL.

type CreateCategoryInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	Color       *string `json:"color"`
}

type CreateTopicInput struct {
	Title      *string `json:"title"`
	CategoryID *int64  `json:"category_id"`
	AuthorID   *int64  `json:"author_id"`
	Content    *string `json:"content"`
}

type PinInput struct {
	TopicID  *int64 `json:"topic_id"`
	IsPinned *bool  `json:"is_pinned"`
}

type LockInput struct {
	TopicID  *int64 `json:"topic_id"`
	IsLocked *bool  `json:"is_locked"`
}

type ArchiveInput struct {
	TopicID *int64 `json:"topic_id"`
}
