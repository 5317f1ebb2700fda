// Package app is the composition root: configuration in, wired
// application out. Bootstrap stays orchestration-only; behavior lives
// in the packages it composes.
package app

import (
	"fmt"
	"time"

	"nc-warden.io/warden/internal/bulk"
	"nc-warden.io/warden/internal/config"
	"nc-warden.io/warden/internal/controller"
	"nc-warden.io/warden/internal/group"
	"nc-warden.io/warden/internal/pkg/worker"
	"nc-warden.io/warden/internal/storage"
)

// Application holds composed application dependencies. The CLI and
// serve mode both run on top of one of these.
type Application struct {
	Config   *config.Config
	Blobs    *storage.BlobStore
	Manager  *controller.Manager
	Ctrl     controller.Controller
	Groups   *group.Store
	Resolver *group.Resolver
	Executor *bulk.Executor
	Pool     *worker.Pool
}

// Bootstrap initializes all dependencies using manual DI.
func Bootstrap(cfg *config.Config) (*Application, error) {
	blobs := storage.New(cfg.ConfigDir)

	manager := controller.NewManager(controller.Config{
		URL:                cfg.Controller.URL,
		Site:               cfg.Controller.Site,
		Username:           cfg.Controller.Username,
		Password:           cfg.Controller.Password,
		Timeout:            cfg.Controller.Timeout,
		InsecureSkipVerify: cfg.Controller.InsecureSkipVerify,
	}, blobs)

	ctrl := controller.NewUniFi(manager)

	pool, err := worker.New("bulk", cfg.Bulk.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("init worker pool: %w", err)
	}

	groups := group.NewStore(blobs)

	return &Application{
		Config:   cfg,
		Blobs:    blobs,
		Manager:  manager,
		Ctrl:     ctrl,
		Groups:   groups,
		Resolver: group.NewResolver(groups),
		Executor: bulk.NewExecutor(ctrl, pool),
		Pool:     pool,
	}, nil
}

// Shutdown releases pooled resources. In-flight member actions get a
// short grace period.
func (a *Application) Shutdown() {
	if a.Pool != nil {
		a.Pool.Shutdown(5 * time.Second)
	}
}
