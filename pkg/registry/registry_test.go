package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlugin struct {
	name         string
	tools        []ToolDescriptor
	resources    []ResourceDescriptor
	cleanupCalls int
}

func (p *stubPlugin) Name() string                       { return p.name }
func (p *stubPlugin) GetTools() []ToolDescriptor          { return p.tools }
func (p *stubPlugin) GetResources() []ResourceDescriptor  { return p.resources }
func (p *stubPlugin) Cleanup(ctx context.Context) error  { p.cleanupCalls++; return nil }

func echoTool(name string) ToolDescriptor {
	return ToolDescriptor{
		Name: name,
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return args, nil
		},
	}
}

func TestRegisterAndListTools(t *testing.T) {
	r := New(nil)
	plugin := &stubPlugin{name: "pkgman", tools: []ToolDescriptor{echoTool("echo")}}

	require.NoError(t, r.Register(context.Background(), plugin))

	tools := r.ListTools()
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)
}

func TestRegisterCollisionLeavesRegistryUnchanged(t *testing.T) {
	r := New(nil)
	first := &stubPlugin{name: "pkgman", tools: []ToolDescriptor{echoTool("echo")}}
	require.NoError(t, r.Register(context.Background(), first))

	before := r.ListTools()

	second := &stubPlugin{name: "installer", tools: []ToolDescriptor{echoTool("echo"), echoTool("install")}}
	err := r.Register(context.Background(), second)
	require.Error(t, err)

	after := r.ListTools()
	assert.Equal(t, before, after)
	assert.NotContains(t, r.ListPlugins(), "installer")

	_, ok := r.LookupTool("install")
	assert.False(t, ok, "no descriptor from the colliding plugin should be retained")
}

func TestUnregisterRemovesOnlyOwnedEntries(t *testing.T) {
	r := New(nil)
	pkgman := &stubPlugin{name: "pkgman", tools: []ToolDescriptor{echoTool("echo")}}
	installer := &stubPlugin{name: "installer", tools: []ToolDescriptor{echoTool("install")}}
	require.NoError(t, r.Register(context.Background(), pkgman))
	require.NoError(t, r.Register(context.Background(), installer))

	require.NoError(t, r.Unregister(context.Background(), "pkgman"))

	_, ok := r.LookupTool("echo")
	assert.False(t, ok)
	_, ok = r.LookupTool("install")
	assert.True(t, ok)
	assert.Equal(t, 1, pkgman.cleanupCalls)
}

func TestRegisterUnregisterRoundTripRestoresPriorState(t *testing.T) {
	r := New(nil)
	before := r.ListTools()

	plugin := &stubPlugin{name: "pkgman", tools: []ToolDescriptor{echoTool("echo")}}
	require.NoError(t, r.Register(context.Background(), plugin))
	require.NoError(t, r.Unregister(context.Background(), "pkgman"))

	after := r.ListTools()
	assert.Equal(t, before, after)
	assert.Empty(t, r.ListPlugins())
}

func TestExecuteToolInvokesHandler(t *testing.T) {
	r := New(nil)
	plugin := &stubPlugin{name: "pkgman", tools: []ToolDescriptor{echoTool("echo")}}
	require.NoError(t, r.Register(context.Background(), plugin))

	result, err := r.ExecuteTool(context.Background(), "echo", map[string]interface{}{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"text": "hi"}, result)
}

func TestExecuteToolUnknownNameReturnsError(t *testing.T) {
	r := New(nil)
	_, err := r.ExecuteTool(context.Background(), "missing", nil)
	assert.Error(t, err)
}
