package project

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("project not found")

type Repository interface {
	Create(ctx context.Context, name, description string) (Project, error)
	Get(ctx context.Context, id string) (Project, bool, error)
	List(ctx context.Context) ([]Project, error)
	Update(ctx context.Context, p Project) (Project, error)
	Delete(ctx context.Context, id string) error
}

type MemoryRepo struct {
	mu sync.RWMutex
	m  map[string]Project
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		m: make(map[string]Project),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, name, description string) (Project, error) {
	_ = ctx
	if strings.TrimSpace(name) == "" {
		return Project{}, errors.New("project name must not be empty")
	}
	p := NewProject(name, description)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.m[p.ID] = p
	return p, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Project, bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.m[id]
	return p, ok, nil
}

// List returns unarchived projects, alphabetically.
func (r *MemoryRepo) List(ctx context.Context) ([]Project, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	projects := make([]Project, 0, len(r.m))
	for _, p := range r.m {
		if !p.Archived {
			projects = append(projects, p)
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects, nil
}

func (r *MemoryRepo) Update(ctx context.Context, p Project) (Project, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.m[p.ID]; !exists {
		return Project{}, ErrNotFound
	}
	p.touch()
	r.m[p.ID] = p
	return p, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.m[id]; !exists {
		return ErrNotFound
	}
	delete(r.m, id)
	return nil
}
