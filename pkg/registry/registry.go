// Package registry implements the plugin-agnostic namespace for tool and
// resource descriptors: uniqueness enforcement across plugins, atomic
// collision-checked registration, and ownership-scoped unregistration.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	daemonerrors "github.com/archmcp/mcpd/pkg/errors"
	"github.com/archmcp/mcpd/pkg/logging"
	"github.com/archmcp/mcpd/pkg/protocol"
)

// ToolHandler executes a tool call and returns its wire-facing result.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// ResourceHandler reads a resource and returns its content.
type ResourceHandler func(ctx context.Context, uri string) (interface{}, error)

// ToolDescriptor is a plugin-supplied tool, keyed globally by Name.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema interface{}
	Handler     ToolHandler
}

// ResourceDescriptor is a plugin-supplied resource, keyed globally by URI.
type ResourceDescriptor struct {
	URI         string
	Name        string
	Description string
	MimeType    string
	Handler     ResourceHandler
}

// Plugin is the capability interface collaborators implement: a name,
// optional lifecycle hooks, and the descriptors it contributes to the
// registry.
type Plugin interface {
	Name() string
	GetTools() []ToolDescriptor
	GetResources() []ResourceDescriptor
}

// Initializer is implemented by plugins with setup work to run before
// their descriptors are registered.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Cleaner is implemented by plugins with teardown work to run when
// unregistered.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}

type toolEntry struct {
	descriptor ToolDescriptor
	owner      string
}

type resourceEntry struct {
	descriptor ResourceDescriptor
	owner      string
}

// Registry is the mutex-protected store of tool/resource descriptors and
// the plugins that own them. The zero value is not usable; use New.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]toolEntry
	resources map[string]resourceEntry
	plugins   map[string]Plugin
	logger    logging.Logger
}

// New builds an empty Registry.
func New(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.New(nil, nil)
	}
	return &Registry{
		tools:     make(map[string]toolEntry),
		resources: make(map[string]resourceEntry),
		plugins:   make(map[string]Plugin),
		logger:    logger,
	}
}

// Register runs the plugin's init hook (if any), collects its descriptors,
// and atomically inserts them. If any tool name or resource URI collides
// with an existing entry, the whole registration is aborted and the
// registry's state is left exactly as it was beforehand.
func (r *Registry) Register(ctx context.Context, plugin Plugin) error {
	if init, ok := plugin.(Initializer); ok {
		if err := init.Initialize(ctx); err != nil {
			return daemonerrors.New(daemonerrors.CodeInternalError, "plugin initialization failed", daemonerrors.CategoryRegistry, daemonerrors.SeverityError).WithDetail(err.Error())
		}
	}

	name := plugin.Name()
	tools := plugin.GetTools()
	resources := plugin.GetResources()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[name]; exists {
		return daemonerrors.New(daemonerrors.CodeInternalError, "plugin already registered", daemonerrors.CategoryRegistry, daemonerrors.SeverityError).WithDetail(name)
	}

	for _, t := range tools {
		if _, exists := r.tools[t.Name]; exists {
			return daemonerrors.New(daemonerrors.CodeInternalError, "tool name collision", daemonerrors.CategoryRegistry, daemonerrors.SeverityError).
				WithDetail(fmt.Sprintf("tool %q already registered by another plugin", t.Name))
		}
	}
	for _, res := range resources {
		if _, exists := r.resources[res.URI]; exists {
			return daemonerrors.New(daemonerrors.CodeInternalError, "resource URI collision", daemonerrors.CategoryRegistry, daemonerrors.SeverityError).
				WithDetail(fmt.Sprintf("resource %q already registered by another plugin", res.URI))
		}
	}

	for _, t := range tools {
		r.tools[t.Name] = toolEntry{descriptor: t, owner: name}
	}
	for _, res := range resources {
		r.resources[res.URI] = resourceEntry{descriptor: res, owner: name}
	}
	r.plugins[name] = plugin

	r.logger.Info("plugin registered", logging.String("plugin", name), logging.Int("tools", len(tools)), logging.Int("resources", len(resources)))
	return nil
}

// Unregister removes every tool/resource entry owned by name, runs its
// cleanup hook, and removes the plugin entry. It is a no-op if name is not
// registered.
func (r *Registry) Unregister(ctx context.Context, name string) error {
	r.mu.Lock()
	plugin, exists := r.plugins[name]
	if !exists {
		r.mu.Unlock()
		return nil
	}
	for toolName, entry := range r.tools {
		if entry.owner == name {
			delete(r.tools, toolName)
		}
	}
	for uri, entry := range r.resources {
		if entry.owner == name {
			delete(r.resources, uri)
		}
	}
	delete(r.plugins, name)
	r.mu.Unlock()

	if cleaner, ok := plugin.(Cleaner); ok {
		if err := cleaner.Cleanup(ctx); err != nil {
			r.logger.Warn("plugin cleanup failed", logging.String("plugin", name), logging.ErrorField(err))
			return err
		}
	}
	r.logger.Info("plugin unregistered", logging.String("plugin", name))
	return nil
}

// ListTools returns every registered tool, sorted by name for a stable
// wire order.
func (r *Registry) ListTools() []protocol.ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.ToolInfo, 0, len(r.tools))
	for _, entry := range r.tools {
		out = append(out, protocol.ToolInfo{
			Name:        entry.descriptor.Name,
			Description: entry.descriptor.Description,
			InputSchema: entry.descriptor.InputSchema,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListResources returns every registered resource, sorted by URI.
func (r *Registry) ListResources() []protocol.ResourceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.ResourceInfo, 0, len(r.resources))
	for _, entry := range r.resources {
		out = append(out, protocol.ResourceInfo{
			URI:         entry.descriptor.URI,
			Name:        entry.descriptor.Name,
			Description: entry.descriptor.Description,
			MimeType:    entry.descriptor.MimeType,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}

// LookupTool returns the named tool's protocol-facing info.
func (r *Registry) LookupTool(name string) (protocol.ToolInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tools[name]
	if !ok {
		return protocol.ToolInfo{}, false
	}
	return protocol.ToolInfo{Name: entry.descriptor.Name, Description: entry.descriptor.Description, InputSchema: entry.descriptor.InputSchema}, true
}

// LookupResource returns the named resource's protocol-facing info.
func (r *Registry) LookupResource(uri string) (protocol.ResourceInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.resources[uri]
	if !ok {
		return protocol.ResourceInfo{}, false
	}
	return protocol.ResourceInfo{URI: entry.descriptor.URI, Name: entry.descriptor.Name, Description: entry.descriptor.Description, MimeType: entry.descriptor.MimeType}, true
}

// ExecuteTool invokes the named tool's handler. The caller (the Security/
// Audit Kernel, via the protocol dispatcher) is responsible for admission
// control and audit emission; this method only resolves and calls.
func (r *Registry) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	r.mu.RLock()
	entry, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, daemonerrors.ToolNotFound(name)
	}
	return entry.descriptor.Handler(ctx, args)
}

// ReadResource invokes the named resource's handler.
func (r *Registry) ReadResource(ctx context.Context, uri string) (interface{}, error) {
	r.mu.RLock()
	entry, ok := r.resources[uri]
	r.mu.RUnlock()
	if !ok {
		return nil, daemonerrors.ResourceNotFound(uri)
	}
	return entry.descriptor.Handler(ctx, uri)
}

// ListPlugins returns the names of every registered plugin.
func (r *Registry) ListPlugins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cleanup unregisters every plugin, running each one's cleanup hook. Errors
// are logged rather than aborting the sweep — shutdown must
// make a best effort through every plugin.
func (r *Registry) Cleanup(ctx context.Context) {
	for _, name := range r.ListPlugins() {
		if err := r.Unregister(ctx, name); err != nil {
			r.logger.Warn("cleanup failed for plugin", logging.String("plugin", name), logging.ErrorField(err))
		}
	}
}
