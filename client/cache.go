package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// API is the server surface the cache drives. *Client satisfies it;
// tests substitute fakes.
type API interface {
	ListApplications(ctx context.Context, query Query) ([]Application, error)
	CreateApplication(ctx context.Context, fields Fields) (Application, error)
	UpdateApplication(ctx context.Context, id string, patch Patch) (Application, error)
	DeleteApplication(ctx context.Context, id string) error
}

// Cache mirrors the server's application list for the active session.
// Mutations apply locally first and reconcile against the server
// afterwards; each operation has its own rollback on failure:
//
//   - create: the provisional entry is removed, restoring the prior list
//   - update: the local merge is discarded by re-fetching server truth
//   - delete: the exact pre-delete snapshot is restored
type Cache struct {
	api API

	mu         sync.Mutex
	apps       []Application
	query      Query
	refreshSeq uint64
}

func NewCache(api API) *Cache {
	return &Cache{api: api}
}

// Applications returns a copy of the mirrored list.
func (c *Cache) Applications() []Application {
	c.mu.Lock()
	defer c.mu.Unlock()
	apps := make([]Application, len(c.apps))
	copy(apps, c.apps)
	return apps
}

func (c *Cache) Query() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// SetFilter changes the active search text and status filter and
// re-fetches the list under the new filter.
func (c *Cache) SetFilter(ctx context.Context, query Query) error {
	c.mu.Lock()
	c.query = query
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// Refresh replaces the mirrored list with the server's current result
// for the active filter. A response is applied only if no newer refresh
// has been issued since, so a slow early request can never overwrite
// the result of a later filter change.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.refreshSeq++
	seq := c.refreshSeq
	query := c.query
	c.mu.Unlock()

	apps, err := c.api.ListApplications(ctx, query)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.refreshSeq {
		// superseded by a newer refresh; drop this response
		return nil
	}
	c.apps = apps
	return nil
}

// Create appends a provisional entry under a temporary id, then issues
// the create. On success the provisional entry is replaced by the
// server's record and the list is reconciled; on failure the entry is
// removed, leaving the list exactly as it was.
func (c *Cache) Create(ctx context.Context, fields Fields) (Application, error) {
	now := time.Now().UTC()
	provisional := Application{
		ID:          "tmp-" + uuid.NewString(),
		Company:     fields.Company,
		Role:        fields.Role,
		Location:    fields.Location,
		Link:        fields.Link,
		Status:      fields.Status,
		Notes:       fields.Notes,
		DateApplied: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if provisional.Status == "" {
		provisional.Status = StatusApplied
	}
	if fields.DateApplied != nil {
		provisional.DateApplied = *fields.DateApplied
	}

	c.mu.Lock()
	c.apps = append(c.apps, provisional)
	c.mu.Unlock()

	created, err := c.api.CreateApplication(ctx, fields)
	if err != nil {
		c.removeByID(provisional.ID)
		return Application{}, err
	}

	c.mu.Lock()
	for i := range c.apps {
		if c.apps[i].ID == provisional.ID {
			c.apps[i] = created
			break
		}
	}
	c.mu.Unlock()

	return created, c.Refresh(ctx)
}

// Update merges the patch into the local copy, then issues the update.
// The server stays the source of truth for computed fields, so both the
// success and the failure path reconcile by re-fetching.
func (c *Cache) Update(ctx context.Context, id string, patch Patch) error {
	c.mu.Lock()
	for i := range c.apps {
		if c.apps[i].ID == id {
			applyPatch(&c.apps[i], patch)
			break
		}
	}
	c.mu.Unlock()

	if _, err := c.api.UpdateApplication(ctx, id, patch); err != nil {
		_ = c.Refresh(ctx)
		return err
	}
	return c.Refresh(ctx)
}

// Delete removes the record locally while retaining a snapshot of the
// prior list; a failed delete restores that snapshot verbatim.
func (c *Cache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	snapshot := make([]Application, len(c.apps))
	copy(snapshot, c.apps)
	kept := c.apps[:0:0]
	for _, app := range c.apps {
		if app.ID != id {
			kept = append(kept, app)
		}
	}
	c.apps = kept
	c.mu.Unlock()

	if err := c.api.DeleteApplication(ctx, id); err != nil {
		c.mu.Lock()
		c.apps = snapshot
		c.mu.Unlock()
		return err
	}
	return c.Refresh(ctx)
}

func (c *Cache) removeByID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.apps[:0:0]
	for _, app := range c.apps {
		if app.ID != id {
			kept = append(kept, app)
		}
	}
	c.apps = kept
}

func applyPatch(app *Application, patch Patch) {
	if patch.Company != nil {
		app.Company = *patch.Company
	}
	if patch.Role != nil {
		app.Role = *patch.Role
	}
	if patch.Location != nil {
		app.Location = *patch.Location
	}
	if patch.Link != nil {
		app.Link = *patch.Link
	}
	if patch.Status != nil {
		app.Status = *patch.Status
	}
	if patch.DateApplied != nil {
		app.DateApplied = *patch.DateApplied
	}
	if patch.Notes != nil {
		app.Notes = *patch.Notes
	}
}
