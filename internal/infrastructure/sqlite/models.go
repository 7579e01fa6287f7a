package sqlite

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no render is stored under a digest.
var ErrNotFound = errors.New("render not found")

// Render is one stored highlight result.
type Render struct {
	Digest      string
	Scope       string
	HTML        string
	SourceBytes int
	CreatedAt   time.Time
	LastUsedAt  time.Time
}

// RenderModel represents the database row for the renders table.
type RenderModel struct {
	Digest      string
	Scope       string
	HTML        string
	SourceBytes int64
	CreatedAt   int64 // Unix timestamp
	LastUsedAt  int64 // Unix timestamp
}

func toRenderModel(r *Render) *RenderModel {
	return &RenderModel{
		Digest:      r.Digest,
		Scope:       r.Scope,
		HTML:        r.HTML,
		SourceBytes: int64(r.SourceBytes),
		CreatedAt:   r.CreatedAt.Unix(),
		LastUsedAt:  r.LastUsedAt.Unix(),
	}
}

func (m *RenderModel) toRender() *Render {
	return &Render{
		Digest:      m.Digest,
		Scope:       m.Scope,
		HTML:        m.HTML,
		SourceBytes: int(m.SourceBytes),
		CreatedAt:   time.Unix(m.CreatedAt, 0),
		LastUsedAt:  time.Unix(m.LastUsedAt, 0),
	}
}
