package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/modrun/system/framework/hub"
)

// ModuleContext is the immutable, per-module handle passed to Init. It is
// constructed once per module by the lifecycle orchestrator and carries
// everything a module needs to read its configuration, publish and consume
// capability implementations, and observe the shared cancellation signal.
type ModuleContext struct {
	name       string
	instanceID uuid.UUID
	configView yaml.Node
	hasConfig  bool
	client     *hub.Hub
	ctx        context.Context
	db         *sqlx.DB
}

// NewModuleContext constructs the context passed to a single module's Init.
// configView is the raw YAML node for this module's section of the modules
// config map (the zero value if the module has no configuration section);
// db may be nil for modules that do not declare CapabilityDb.
func NewModuleContext(ctx context.Context, name string, instanceID uuid.UUID, configView yaml.Node, hasConfig bool, client *hub.Hub, db *sqlx.DB) *ModuleContext {
	return &ModuleContext{
		name:       name,
		instanceID: instanceID,
		configView: configView,
		hasConfig:  hasConfig,
		client:     client,
		ctx:        ctx,
		db:         db,
	}
}

// Name returns the owning module's declared name.
func (mc *ModuleContext) Name() string { return mc.name }

// InstanceID is a process-lifetime-unique identifier minted for this
// module's context.
func (mc *ModuleContext) InstanceID() uuid.UUID { return mc.instanceID }

// Context returns the shared cancellation context. Modules must observe its
// cancellation at every suspension point they own.
func (mc *ModuleContext) Context() context.Context { return mc.ctx }

// Hub returns the Client Hub used to publish and resolve capability
// implementations. It is the sole inter-module wiring primitive; modules
// must never import one another directly.
func (mc *ModuleContext) Hub() *hub.Hub { return mc.client }

// Config decodes this module's configuration section into into, which must
// be a pointer. A module with no configuration section leaves into
// untouched and returns nil.
func (mc *ModuleContext) Config(into any) error {
	if !mc.hasConfig {
		return nil
	}
	return mc.configView.Decode(into)
}

// DB returns the shared database handle and whether one was provisioned for
// this runtime. Only modules declaring CapabilityDb should rely on a
// non-nil handle being present.
func (mc *ModuleContext) DB() (*sqlx.DB, bool) {
	if mc.db == nil {
		return nil, false
	}
	return mc.db, true
}
