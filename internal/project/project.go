// Package project holds the projects tasks can reference. A task stores only
// the project id; deleting a project never cascades into tasks.
package project

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color,omitempty"` // hex color for UI
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newProjectID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return "proj_" + hex.EncodeToString(b[:])
}

func NewProject(name, description string) Project {
	now := time.Now()
	return Project{
		ID:          newProjectID(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (p *Project) touch() {
	p.UpdatedAt = time.Now()
}

func (p *Project) Archive() {
	p.Archived = true
	p.touch()
}

func (p *Project) Unarchive() {
	p.Archived = false
	p.touch()
}
