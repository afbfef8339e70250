package seed

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/platinummonkey/storygate/pkg/observability"
	"github.com/platinummonkey/storygate/pkg/rbac"
	"github.com/robfig/cron/v3"
)

// Reconcile triggers
const (
	TriggerStartup  = "startup"
	TriggerWatch    = "watch"
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Reconciler keeps the role table in line with the built-in roles and an
// optional seed file
type Reconciler struct {
	store    RoleStore
	source   Source
	logger   *observability.Logger
	metrics  *observability.Metrics
	onChange func()

	mu sync.Mutex
}

// NewReconciler creates a reconciler for a local seed file. An empty path
// reconciles the built-in roles only. metrics may be nil.
func NewReconciler(store RoleStore, path string, logger *observability.Logger, metrics *observability.Metrics) *Reconciler {
	var source Source
	if path != "" {
		source = FileSource(path)
	}
	return NewReconcilerFromSource(store, source, logger, metrics)
}

// NewReconcilerFromSource creates a reconciler reading roles from source,
// which may be nil.
func NewReconcilerFromSource(store RoleStore, source Source, logger *observability.Logger, metrics *observability.Metrics) *Reconciler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Reconciler{
		store:   store,
		source:  source,
		logger:  logger.WithField("component", "seed"),
		metrics: metrics,
	}
}

// OnChange registers a callback run after a reconciliation that wrote roles
func (r *Reconciler) OnChange(fn func()) {
	r.onChange = fn
}

// Run loads the seed file and reconciles once. Concurrent calls are
// serialized.
func (r *Reconciler) Run(ctx context.Context, trigger string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, err := r.run(ctx)
	r.metrics.RecordReconcile(trigger, err)

	log := r.logger.WithField("trigger", trigger)
	if err != nil {
		log.WithError(err).Error("role reconciliation failed")
		return result, err
	}

	log.WithFields(map[string]interface{}{
		"created":   len(result.Created),
		"updated":   len(result.Updated),
		"unchanged": len(result.Unchanged),
	}).Info("roles reconciled")

	if result.Changed() && r.onChange != nil {
		r.onChange()
	}
	return result, nil
}

func (r *Reconciler) run(ctx context.Context) (*Result, error) {
	var roles []rbac.Role
	if r.source != nil {
		loaded, err := r.source.Load(ctx)
		if err != nil {
			return nil, err
		}
		roles = loaded
	}
	return Reconcile(ctx, r.store, roles)
}

// Watch reconciles whenever the seed file is written, created or replaced.
// It blocks until ctx is cancelled. Only local files can be watched.
func (r *Reconciler) Watch(ctx context.Context) error {
	file, ok := r.source.(FileSource)
	if !ok {
		return fmt.Errorf("no seed file to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// editors replace files, so watch the directory
	target := filepath.Clean(string(file))
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	r.logger.WithField("path", target).Info("watching seed file")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			r.runSafely(ctx, TriggerWatch)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.WithError(err).Warn("seed watcher error")
		}
	}
}

// Schedule starts a cron scheduler that reconciles on spec. The caller stops
// the returned scheduler.
func (r *Reconciler) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		r.runSafely(context.Background(), TriggerSchedule)
	}); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	c.Start()

	r.logger.WithField("schedule", spec).Info("scheduled role reconciliation")
	return c, nil
}

// runSafely runs a background reconciliation; failures are already logged
func (r *Reconciler) runSafely(ctx context.Context, trigger string) {
	defer observability.RecoverPanic(r.logger, "seed "+trigger)
	_, _ = r.Run(ctx, trigger)
}
