// Package store is the cached entity store. It keeps every collection in
// memory and rewrites the collection's snapshot in the durable backing after
// each mutation.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mikepea/stockpile/pkg/stockpile/backing"
	"github.com/mikepea/stockpile/pkg/stockpile/models"
)

var (
	// ErrNotFound is returned by operations that require an existing record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateID is returned when a create supplies an id already in use.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrConflict is returned when a unique field collides with another record.
	ErrConflict = errors.New("unique constraint violated")
)

// Options configures a Store.
type Options struct {
	Backing backing.Backing
	Logger  zerolog.Logger
	Metrics *Metrics
}

// Store is the entity store. The zero value is not usable; call New.
type Store struct {
	backing backing.Backing
	log     zerolog.Logger
	metrics *Metrics

	once sync.Once

	components *collection[models.Component, *models.Component]
	users      *collection[models.User, *models.User]
	groups     *collection[models.Group, *models.Group]
	warehouses *collection[models.Warehouse, *models.Warehouse]
}

// New creates a store over opts.Backing. Nothing is loaded until first use.
func New(opts Options) *Store {
	s := &Store{
		backing: opts.Backing,
		log:     opts.Logger.With().Str("component", "store").Logger(),
		metrics: opts.Metrics,
	}
	s.components = newCollection[models.Component](models.CollectionComponents, s.metrics, s.persist)
	s.users = newCollection[models.User](models.CollectionUsers, s.metrics, s.persist)
	s.users.conflicts = func(a, b *models.User) bool { return a.Username == b.Username }
	s.groups = newCollection[models.Group](models.CollectionGroups, s.metrics, s.persist)
	s.warehouses = newCollection[models.Warehouse](models.CollectionWarehouses, s.metrics, s.persist)
	return s
}

// Init loads every collection. It runs once; later calls and concurrent
// callers wait for the first to finish. Cancellation of ctx is ignored so a
// dropped request cannot leave the store half-loaded.
func (s *Store) Init(ctx context.Context) {
	s.once.Do(func() {
		s.initialize(context.WithoutCancel(ctx))
	})
}

// Close closes the backing.
func (s *Store) Close() error {
	if s.backing == nil {
		return nil
	}
	return s.backing.Close()
}

type loadOutcome int

const (
	loaded loadOutcome = iota
	missing
	corrupt
	unreadable
)

func (s *Store) initialize(ctx context.Context) {
	decoders := map[string]func([]byte) (loadStats, error){
		models.CollectionUsers:      s.users.decode,
		models.CollectionGroups:     s.groups.decode,
		models.CollectionWarehouses: s.warehouses.decode,
		models.CollectionComponents: s.components.decode,
	}
	outcome := missing
	for _, name := range models.AllCollections() {
		result := s.load(ctx, name, decoders[name])
		if name == models.CollectionComponents {
			outcome = result
		}
	}

	if outcome == loaded {
		return
	}
	// A read error leaves the durable copy alone; the seed lives in memory
	// until the first mutation rewrites the snapshot.
	write := outcome != unreadable
	if _, ok := s.warehouses.get(models.DefaultWarehouseID); !ok {
		s.warehouses.seed(ctx, []models.Warehouse{defaultWarehouse()}, write)
	}
	seeds := sampleComponents()
	for i := range seeds {
		seeds[i].ID = uuid.NewString()
	}
	s.components.seed(ctx, seeds, write)
	s.log.Info().Int("components", len(seeds)).Bool("persisted", write).Msg("seeded sample components")
}

func (s *Store) load(ctx context.Context, name string, decode func([]byte) (loadStats, error)) loadOutcome {
	if s.backing == nil {
		return missing
	}
	payload, err := s.backing.Load(ctx, name)
	if errors.Is(err, backing.ErrNotFound) {
		s.log.Debug().Str("collection", name).Msg("no snapshot, starting empty")
		return missing
	}
	if err != nil {
		s.log.Error().Err(err).Str("collection", name).Msg("failed to load snapshot, starting empty")
		return unreadable
	}
	stats, err := decode(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("collection", name).Msg("corrupt snapshot, starting empty")
		return corrupt
	}
	if stats.dropped > 0 {
		s.log.Warn().Str("collection", name).Int("dropped", stats.dropped).Msg("skipped records without a unique id")
	}
	if len(stats.conflicting) > 0 {
		s.log.Warn().Str("collection", name).Strs("ids", stats.conflicting).Msg("records share a unique field")
	}
	return loaded
}

// persist writes a snapshot. Failures are logged and counted, never returned.
func (s *Store) persist(ctx context.Context, name string, records any) {
	if s.backing == nil {
		return
	}
	payload, err := json.MarshalIndent(records, "", "  ")
	if err == nil {
		err = s.backing.Save(context.WithoutCancel(ctx), name, payload)
	}
	if err != nil {
		s.metrics.persistFailed(name)
		s.log.Error().Err(err).Str("collection", name).Msg("failed to persist snapshot")
	}
}

// Components

// GetComponent returns the component with id.
func (s *Store) GetComponent(ctx context.Context, id string) (models.Component, bool) {
	s.Init(ctx)
	return s.components.get(id)
}

// ListComponents returns every component in insertion order.
func (s *Store) ListComponents(ctx context.Context) []models.Component {
	s.Init(ctx)
	return s.components.list(nil)
}

// CreateComponent builds a component from in, with defaults, and stores it.
func (s *Store) CreateComponent(ctx context.Context, in models.ComponentInput) (models.Component, error) {
	s.Init(ctx)
	return s.components.create(ctx, in.Build())
}

// UpdateComponent merges patch into the component with id.
func (s *Store) UpdateComponent(ctx context.Context, id string, patch models.ComponentPatch) (models.Component, bool) {
	s.Init(ctx)
	c, ok, _ := s.components.update(ctx, id, patch.Apply)
	return c, ok
}

// DeleteComponent removes the component with id and reports whether it existed.
func (s *Store) DeleteComponent(ctx context.Context, id string) bool {
	s.Init(ctx)
	return s.components.delete(ctx, id)
}

// SearchComponents returns components whose name, description, category or
// location contains query, ignoring case.
func (s *Store) SearchComponents(ctx context.Context, query string) []models.Component {
	s.Init(ctx)
	return s.components.list(func(c *models.Component) bool { return c.Matches(query) })
}

// ComponentsByCategory returns components in exactly category.
func (s *Store) ComponentsByCategory(ctx context.Context, category string) []models.Component {
	s.Init(ctx)
	return s.components.list(func(c *models.Component) bool { return c.Category == category })
}

// LowStockComponents returns components at or below their minimum stock level.
func (s *Store) LowStockComponents(ctx context.Context) []models.Component {
	s.Init(ctx)
	return s.components.list(func(c *models.Component) bool { return c.IsLowStock() })
}

// ComponentsInWarehouse returns the components stored in warehouseID.
func (s *Store) ComponentsInWarehouse(ctx context.Context, warehouseID string) []models.Component {
	s.Init(ctx)
	return s.components.list(func(c *models.Component) bool { return c.InWarehouse(warehouseID) })
}

// Users

// GetUser returns the user with id.
func (s *Store) GetUser(ctx context.Context, id string) (models.User, bool) {
	s.Init(ctx)
	return s.users.get(id)
}

// UserByUsername looks a user up by exact username.
func (s *Store) UserByUsername(ctx context.Context, username string) (models.User, bool) {
	s.Init(ctx)
	return s.users.find(func(u *models.User) bool { return u.Username == username })
}

// ListUsers returns every user in insertion order.
func (s *Store) ListUsers(ctx context.Context) []models.User {
	s.Init(ctx)
	return s.users.list(nil)
}

// CreateUser stores u. The username must be unique.
func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	s.Init(ctx)
	u.Username = strings.TrimSpace(u.Username)
	return s.users.create(ctx, u)
}

// UpdateUser merges patch into the user with id. It returns ErrConflict when
// the new username is taken.
func (s *Store) UpdateUser(ctx context.Context, id string, patch models.UserPatch) (models.User, bool, error) {
	s.Init(ctx)
	return s.users.update(ctx, id, patch.Apply)
}

// SetUserGroups overwrites the derived group list of a user.
func (s *Store) SetUserGroups(ctx context.Context, id string, groups []string) error {
	s.Init(ctx)
	_, ok, err := s.users.update(ctx, id, func(u *models.User) {
		u.Groups = append([]string{}, groups...)
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes the user with id.
func (s *Store) DeleteUser(ctx context.Context, id string) bool {
	s.Init(ctx)
	return s.users.delete(ctx, id)
}

// Groups

// GetGroup returns the group with id.
func (s *Store) GetGroup(ctx context.Context, id string) (models.Group, bool) {
	s.Init(ctx)
	return s.groups.get(id)
}

// ListGroups returns every group in insertion order.
func (s *Store) ListGroups(ctx context.Context) []models.Group {
	s.Init(ctx)
	return s.groups.list(nil)
}

// CreateGroup stores g.
func (s *Store) CreateGroup(ctx context.Context, g models.Group) (models.Group, error) {
	s.Init(ctx)
	return s.groups.create(ctx, g)
}

// UpdateGroup merges patch into the group with id.
func (s *Store) UpdateGroup(ctx context.Context, id string, patch models.GroupPatch) (models.Group, bool) {
	s.Init(ctx)
	g, ok, _ := s.groups.update(ctx, id, patch.Apply)
	return g, ok
}

// DeleteGroup removes the group with id.
func (s *Store) DeleteGroup(ctx context.Context, id string) bool {
	s.Init(ctx)
	return s.groups.delete(ctx, id)
}

// Warehouses

// GetWarehouse returns the warehouse with id.
func (s *Store) GetWarehouse(ctx context.Context, id string) (models.Warehouse, bool) {
	s.Init(ctx)
	return s.warehouses.get(id)
}

// ListWarehouses returns every warehouse in insertion order.
func (s *Store) ListWarehouses(ctx context.Context) []models.Warehouse {
	s.Init(ctx)
	return s.warehouses.list(nil)
}

// CreateWarehouse stores w.
func (s *Store) CreateWarehouse(ctx context.Context, w models.Warehouse) (models.Warehouse, error) {
	s.Init(ctx)
	return s.warehouses.create(ctx, w)
}

// UpdateWarehouse merges patch into the warehouse with id.
func (s *Store) UpdateWarehouse(ctx context.Context, id string, patch models.WarehousePatch) (models.Warehouse, bool) {
	s.Init(ctx)
	w, ok, _ := s.warehouses.update(ctx, id, patch.Apply)
	return w, ok
}

// DeleteWarehouse removes the warehouse with id. Components that referenced
// it are left as they are; orphaning them is the caller's job.
func (s *Store) DeleteWarehouse(ctx context.Context, id string) bool {
	s.Init(ctx)
	return s.warehouses.delete(ctx, id)
}
