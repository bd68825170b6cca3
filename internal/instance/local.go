package instance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-platform/pkg/config"
)

// Instance is the substrate's view of one hosted instance.
type Instance struct {
	ID          string
	Controllers []string
	Budget      uint64
	Package     *CodePackage
	Args        *InitArgs
	CreatedAt   time.Time
}

// Installed reports whether code has been installed.
func (i Instance) Installed() bool {
	return i.Package != nil
}

// LocalSubstrate hosts instances in memory. It backs single-node deployments
// and tests, and lets callers inject failures per operation.
type LocalSubstrate struct {
	mu        sync.Mutex
	instances map[string]*Instance
	clock     clock.Clock
	logger    *zap.Logger

	createErr  error
	installErr error
	deleteErr  error

	creates, installs, deletes int
}

// NewLocalSubstrate returns an empty substrate.
func NewLocalSubstrate(clk clock.Clock, logger *zap.Logger) *LocalSubstrate {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalSubstrate{
		instances: make(map[string]*Instance),
		clock:     clk,
		logger:    logger,
	}
}

// SeedTemplate creates an installed instance that can serve as a code template.
func (s *LocalSubstrate) SeedTemplate(version string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := newInstanceID()
	s.instances[id] = &Instance{
		ID:        id,
		Package:   &CodePackage{SourceInstanceID: id, Version: version},
		CreatedAt: s.clock.Now(),
	}
	return id
}

// FailCreate makes every CreateInstance call return err until cleared with nil.
func (s *LocalSubstrate) FailCreate(err error) {
	s.mu.Lock()
	s.createErr = err
	s.mu.Unlock()
}

// FailInstall makes every InstallCode call return err until cleared with nil.
func (s *LocalSubstrate) FailInstall(err error) {
	s.mu.Lock()
	s.installErr = err
	s.mu.Unlock()
}

// FailDelete makes every DeleteInstance call return err until cleared with nil.
func (s *LocalSubstrate) FailDelete(err error) {
	s.mu.Lock()
	s.deleteErr = err
	s.mu.Unlock()
}

// CreateInstance allocates an empty instance owned by controllers.
func (s *LocalSubstrate) CreateInstance(ctx context.Context, controllers []string, budget uint64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.creates++
	if s.createErr != nil {
		return "", s.createErr
	}
	if budget < config.MinInstanceBudget {
		return "", fmt.Errorf("%w: %d < %d", ErrBudgetTooLow, budget, config.MinInstanceBudget)
	}

	id := newInstanceID()
	s.instances[id] = &Instance{
		ID:          id,
		Controllers: append([]string(nil), controllers...),
		Budget:      budget,
		CreatedAt:   s.clock.Now(),
	}
	s.logger.Debug("instance created", zap.String("instance_id", id), zap.Uint64("budget", budget))
	return id, nil
}

// DeleteInstance removes an instance.
func (s *LocalSubstrate) DeleteInstance(ctx context.Context, instanceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.deletes++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.instances[instanceID]; !ok {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}
	delete(s.instances, instanceID)
	s.logger.Debug("instance deleted", zap.String("instance_id", instanceID))
	return nil
}

// InstallCode copies the template's package onto an instance.
func (s *LocalSubstrate) InstallCode(ctx context.Context, instanceID string, pkg CodePackage, args InitArgs) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.installs++
	if s.installErr != nil {
		return s.installErr
	}
	target, ok := s.instances[instanceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}
	source, ok := s.instances[pkg.SourceInstanceID]
	if !ok || !source.Installed() {
		return fmt.Errorf("template %s has no installable code: %w", pkg.SourceInstanceID, ErrInstanceNotFound)
	}

	installed := *source.Package
	if pkg.Version != "" {
		installed.Version = pkg.Version
	}
	target.Package = &installed
	target.Args = &args
	return nil
}

// Instance returns a copy of the instance with id.
func (s *LocalSubstrate) Instance(id string) (Instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[id]
	if !ok {
		return Instance{}, false
	}
	return *inst, true
}

// InstanceIDs lists hosted instances in id order.
func (s *LocalSubstrate) InstanceIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.instances))
	for id := range s.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Calls returns how many create, install and delete calls were made.
func (s *LocalSubstrate) Calls() (creates, installs, deletes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates, s.installs, s.deletes
}

func newInstanceID() string {
	return "inst-" + uuid.NewString()[:13]
}
