package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/civicsafe/api/internal/model"
	"gorm.io/gorm"
)

// PostView is a post with its author's display name.
type PostView struct {
	model.Post
	AuthorName string `json:"authorName"`
}

type PostStore interface {
	// ListPublished returns published posts, newest first.
	ListPublished(ctx context.Context) ([]PostView, error)
	Create(ctx context.Context, p *model.Post) error
}

type GormPostStore struct {
	db *gorm.DB
}

func NewGormPostStore(db *gorm.DB) *GormPostStore {
	return &GormPostStore{db: db}
}

func (s *GormPostStore) ListPublished(ctx context.Context) ([]PostView, error) {
	var posts []PostView
	err := s.db.WithContext(ctx).
		Table("posts").
		Select("posts.*, users.name AS author_name").
		Joins("LEFT JOIN users ON users.id = posts.author_id").
		Where("posts.published = ?", true).
		Order("posts.created_at DESC").
		Scan(&posts).Error
	if err != nil {
		return nil, unavailable("list posts", err)
	}
	return posts, nil
}

func (s *GormPostStore) Create(ctx context.Context, p *model.Post) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return unavailable("create post", err)
	}
	return nil
}

// MemoryPostStore keeps posts in process memory.
type MemoryPostStore struct {
	mu      sync.RWMutex
	posts   []model.Post
	nextID  int64
	Authors map[int64]string
}

func NewMemoryPostStore() *MemoryPostStore {
	return &MemoryPostStore{Authors: map[int64]string{}}
}

func (s *MemoryPostStore) ListPublished(ctx context.Context) ([]PostView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []PostView{}
	for _, p := range s.posts {
		if p.Published {
			out = append(out, PostView{Post: p, AuthorName: s.Authors[p.AuthorID]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryPostStore) Create(ctx context.Context, p *model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	p.ID = s.nextID
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.posts = append(s.posts, *p)
	return nil
}
