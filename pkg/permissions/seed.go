package permissions

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/schuttebj/linc-backend/pkg/observability"
)

// RoleUpserter is the registry write used by the seed bootstrap. An existing
// role keeps its current permission set so administrative edits survive
// re-seeding; only catalog metadata is refreshed.
type RoleUpserter interface {
	UpsertRole(ctx context.Context, role *Role) error
}

// SeedRole is one role definition in the seed file.
type SeedRole struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

// SeedFile is the bootstrap role catalog: the deployment-time definitions of
// the system types and the region/office role sets.
type SeedFile struct {
	SystemTypes []SeedRole `yaml:"system_types"`
	RegionRoles []SeedRole `yaml:"region_roles"`
	OfficeRoles []SeedRole `yaml:"office_roles"`
}

// LoadSeedFile parses a YAML role catalog.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return &seed, nil
}

// Seeder applies a seed catalog to the role registry.
type Seeder struct {
	upserter RoleUpserter
	logger   *observability.Logger
}

// NewSeeder creates a seeder writing through the given upserter.
func NewSeeder(upserter RoleUpserter, logger *observability.Logger) *Seeder {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Seeder{upserter: upserter, logger: logger}
}

// Apply upserts every role in the catalog. The first failure aborts.
func (s *Seeder) Apply(ctx context.Context, seed *SeedFile) error {
	apply := func(scope Scope, roles []SeedRole) error {
		for _, sr := range roles {
			role := &Role{
				Scope:       scope,
				Name:        sr.Name,
				DisplayName: sr.DisplayName,
				Description: sr.Description,
				Permissions: NewSet(sr.Permissions...),
				IsActive:    true,
				UpdatedBy:   "seed",
			}
			if err := s.upserter.UpsertRole(ctx, role); err != nil {
				return fmt.Errorf("seed %s role %q: %w", scope, sr.Name, err)
			}
		}
		return nil
	}

	if err := apply(ScopeSystem, seed.SystemTypes); err != nil {
		return err
	}
	if err := apply(ScopeRegion, seed.RegionRoles); err != nil {
		return err
	}
	if err := apply(ScopeOffice, seed.OfficeRoles); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"system_types": len(seed.SystemTypes),
		"region_roles": len(seed.RegionRoles),
		"office_roles": len(seed.OfficeRoles),
	}).Info("role catalog seeded")
	return nil
}

// ApplyFile loads and applies a seed file in one step.
func (s *Seeder) ApplyFile(ctx context.Context, path string) error {
	seed, err := LoadSeedFile(path)
	if err != nil {
		return err
	}
	return s.Apply(ctx, seed)
}

// Watch re-applies the seed file whenever it changes on disk. Intended for
// development; blocks until the context is cancelled. Editors replace files
// rather than write in place, so rename/create events re-arm the watch.
func (s *Seeder) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create seed watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch seed file %s: %w", path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Give the writer a moment to finish the replace.
			time.Sleep(100 * time.Millisecond)
			if err := s.ApplyFile(ctx, path); err != nil {
				s.logger.WithError(err).Warn("seed file reload failed")
			}
			if event.Op&fsnotify.Rename != 0 {
				if err := watcher.Add(path); err != nil {
					s.logger.WithError(err).Warn("failed to re-arm seed watch")
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.WithError(err).Warn("seed watcher error")
		}
	}
}
