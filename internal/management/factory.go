package management

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"gatekeeper/internal/blocklist"
	"gatekeeper/internal/bruteforce"
	"gatekeeper/internal/config"
	"gatekeeper/internal/csrf"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/pkg/factory"
)

// ComponentName is the name used to register this component
const ComponentName = "management-api"

// Component implements factory.Component for the management API
type Component struct {
	config config.Management
	api    *API
	logger *slog.Logger

	blocks   *blocklist.Blocklist
	brute    *bruteforce.Guard
	limits   *ratelimit.Set
	tokens   *csrf.Store
	gatherer prometheus.Gatherer
}

// NewComponent creates a new management API component. The store references
// must be set before Init via SetStores.
func NewComponent(logger *slog.Logger) *Component {
	return &Component{
		logger: logger,
	}
}

// SetStores wires the admission stores the API manages
func (c *Component) SetStores(
	blocks *blocklist.Blocklist,
	brute *bruteforce.Guard,
	limits *ratelimit.Set,
	tokens *csrf.Store,
	gatherer prometheus.Gatherer,
) {
	c.blocks = blocks
	c.brute = brute
	c.limits = limits
	c.tokens = tokens
	c.gatherer = gatherer
}

// Name returns the component name
func (c *Component) Name() string {
	return ComponentName
}

// Init initializes the component with configuration
func (c *Component) Init(parser factory.ConfigParser) error {
	var mgmtConfig config.Management
	if err := parser(&mgmtConfig); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	c.config = mgmtConfig

	if c.config.Enabled {
		c.api = NewAPI(c.config, c.blocks, c.brute, c.limits, c.tokens, c.gatherer, c.logger)
	}
	return nil
}

// Validate validates the component state
func (c *Component) Validate() error {
	if !c.config.Enabled {
		return nil
	}
	if c.api == nil {
		return fmt.Errorf("management enabled but API not created")
	}
	if c.config.Port == 0 {
		return fmt.Errorf("management port not specified")
	}
	if c.blocks == nil || c.limits == nil {
		return fmt.Errorf("management API requires the admission stores")
	}
	return nil
}

// Build returns the management API; nil when disabled
func (c *Component) Build() *API {
	return c.api
}

// Start starts the management API server
func (c *Component) Start() error {
	if c.api != nil {
		return c.api.Start(context.Background())
	}
	return nil
}

// Stop stops the management API server
func (c *Component) Stop() error {
	if c.api != nil {
		return c.api.Stop(context.Background())
	}
	return nil
}

// Ensure Component implements factory.Component and factory.Lifecycle
var (
	_ factory.Component = (*Component)(nil)
	_ factory.Lifecycle = (*Component)(nil)
)
