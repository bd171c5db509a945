package protocol

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	daemonerrors "github.com/archmcp/mcpd/pkg/errors"
)

type fakeRegistry struct {
	tools     map[string]ToolInfo
	resources map[string]ResourceInfo
	execErr   error
	execOut   interface{}
	readOut   interface{}
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{tools: map[string]ToolInfo{}, resources: map[string]ResourceInfo{}}
}

func (f *fakeRegistry) ListTools() []ToolInfo {
	out := make([]ToolInfo, 0, len(f.tools))
	for _, t := range f.tools {
		out = append(out, t)
	}
	return out
}

func (f *fakeRegistry) ListResources() []ResourceInfo {
	out := make([]ResourceInfo, 0, len(f.resources))
	for _, r := range f.resources {
		out = append(out, r)
	}
	return out
}

func (f *fakeRegistry) LookupTool(name string) (ToolInfo, bool) {
	t, ok := f.tools[name]
	return t, ok
}

func (f *fakeRegistry) LookupResource(uri string) (ResourceInfo, bool) {
	r, ok := f.resources[uri]
	return r, ok
}

func (f *fakeRegistry) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	return f.execOut, nil
}

func (f *fakeRegistry) ReadResource(ctx context.Context, uri string) (interface{}, error) {
	return f.readOut, nil
}

type fakeValidator struct {
	err error
}

func (f *fakeValidator) Validate(schema interface{}, args map[string]interface{}) error {
	return f.err
}

type passthroughKernel struct{}

func (passthroughKernel) ExecuteWithAudit(ctx context.Context, operationType string, auditContext map[string]interface{}, operation func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	return operation(ctx)
}

type rejectingKernel struct{ err error }

func (r rejectingKernel) ExecuteWithAudit(ctx context.Context, operationType string, auditContext map[string]interface{}, operation func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	return nil, r.err
}

func newDispatcher(reg Registry, val Validator, k Kernel) *Dispatcher {
	return NewDispatcher(reg, val, k, "mcpd", "0.1.0")
}

func TestDispatchBeforeHandshakeFails(t *testing.T) {
	d := newDispatcher(newFakeRegistry(), &fakeValidator{}, passthroughKernel{})
	session := NewSession()

	req, err := NewRequest(float64(1), MethodToolsList, nil)
	require.NoError(t, err)

	resp := d.Dispatch(context.Background(), session, req)
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, daemonerrors.CodeNotInitialized, resp.Error.Code)
	assert.EqualValues(t, float64(1), resp.ID)
}

func TestHandshakeThenToolsList(t *testing.T) {
	reg := newFakeRegistry()
	reg.tools["echo"] = ToolInfo{Name: "echo", Description: "echoes input"}
	d := newDispatcher(reg, &fakeValidator{}, passthroughKernel{})
	session := NewSession()

	initReq, err := NewRequest(float64(1), MethodInitialize, InitializeParams{ProtocolVersion: ProtocolVersion})
	require.NoError(t, err)
	initResp := d.Dispatch(context.Background(), session, initReq)
	require.NotNil(t, initResp)
	require.Nil(t, initResp.Error)

	var result InitializeResult
	require.NoError(t, json.Unmarshal(initResp.Result, &result))
	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
	assert.True(t, result.Capabilities.Tools.ListChanged)

	initializedReq, err := NewRequest(float64(2), MethodInitialized, nil)
	require.NoError(t, err)
	initializedResp := d.Dispatch(context.Background(), session, initializedReq)
	require.NotNil(t, initializedResp)
	require.Nil(t, initializedResp.Error)

	listReq, err := NewRequest(float64(3), MethodToolsList, nil)
	require.NoError(t, err)
	listResp := d.Dispatch(context.Background(), session, listReq)
	require.NotNil(t, listResp)
	require.Nil(t, listResp.Error)

	var toolsResult ToolsListResult
	require.NoError(t, json.Unmarshal(listResp.Result, &toolsResult))
	require.Len(t, toolsResult.Tools, 1)
	assert.Equal(t, "echo", toolsResult.Tools[0].Name)
}

func TestToolsCallSchemaViolationReturnsInvalidParams(t *testing.T) {
	reg := newFakeRegistry()
	reg.tools["echo"] = ToolInfo{Name: "echo"}
	d := newDispatcher(reg, &fakeValidator{err: daemonerrors.InvalidParams("text must be a string")}, passthroughKernel{})
	session := NewSession()
	session.MarkInitialized()

	req, err := NewRequest(float64(1), MethodToolsCall, ToolsCallParams{Name: "echo", Arguments: map[string]interface{}{"text": 42}})
	require.NoError(t, err)

	resp := d.Dispatch(context.Background(), session, req)
	require.NotNil(t, resp.Error)
	assert.Equal(t, daemonerrors.CodeInvalidParams, resp.Error.Code)
}

func TestToolsCallUnknownToolReturnsInternalError(t *testing.T) {
	d := newDispatcher(newFakeRegistry(), &fakeValidator{}, passthroughKernel{})
	session := NewSession()
	session.MarkInitialized()

	req, err := NewRequest(float64(1), MethodToolsCall, ToolsCallParams{Name: "missing"})
	require.NoError(t, err)

	resp := d.Dispatch(context.Background(), session, req)
	require.NotNil(t, resp.Error)
	assert.Equal(t, daemonerrors.CodeInternalError, resp.Error.Code)
	assert.Equal(t, "Tool not found", resp.Error.Message)
}

func TestToolsCallMissingNameReturnsInvalidParams(t *testing.T) {
	d := newDispatcher(newFakeRegistry(), &fakeValidator{}, passthroughKernel{})
	session := NewSession()
	session.MarkInitialized()

	req, err := NewRequest(float64(1), MethodToolsCall, ToolsCallParams{})
	require.NoError(t, err)

	resp := d.Dispatch(context.Background(), session, req)
	require.NotNil(t, resp.Error)
	assert.Equal(t, daemonerrors.CodeInvalidParams, resp.Error.Code)
}

func TestToolsCallAdmissionSaturationPropagatesResourceLocked(t *testing.T) {
	reg := newFakeRegistry()
	reg.tools["slow"] = ToolInfo{Name: "slow"}
	d := newDispatcher(reg, &fakeValidator{}, rejectingKernel{err: daemonerrors.ResourceLocked()})
	session := NewSession()
	session.MarkInitialized()

	req, err := NewRequest(float64(1), MethodToolsCall, ToolsCallParams{Name: "slow"})
	require.NoError(t, err)

	resp := d.Dispatch(context.Background(), session, req)
	require.NotNil(t, resp.Error)
	assert.Equal(t, daemonerrors.CodeResourceLocked, resp.Error.Code)
}

func TestMalformedEnvelopeRejected(t *testing.T) {
	d := newDispatcher(newFakeRegistry(), &fakeValidator{}, passthroughKernel{})
	session := NewSession()

	req := &Request{JSONRPCMessage: JSONRPCMessage{JSONRPC: "1.0"}, ID: float64(9), Method: MethodInitialize}
	resp := d.Dispatch(context.Background(), session, req)
	require.NotNil(t, resp.Error)
	assert.Equal(t, daemonerrors.CodeInvalidRequest, resp.Error.Code)
	assert.EqualValues(t, float64(9), resp.ID)
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	d := newDispatcher(newFakeRegistry(), &fakeValidator{}, passthroughKernel{})
	session := NewSession()
	session.MarkInitialized()

	req, err := NewRequest(float64(1), "nonexistent/method", nil)
	require.NoError(t, err)

	resp := d.Dispatch(context.Background(), session, req)
	require.NotNil(t, resp.Error)
	assert.Equal(t, daemonerrors.CodeMethodNotFound, resp.Error.Code)
}

func TestResourcesReadMissingURIReturnsInvalidParams(t *testing.T) {
	d := newDispatcher(newFakeRegistry(), &fakeValidator{}, passthroughKernel{})
	session := NewSession()
	session.MarkInitialized()

	req, err := NewRequest(float64(1), MethodResourcesRead, ResourcesReadParams{})
	require.NoError(t, err)

	resp := d.Dispatch(context.Background(), session, req)
	require.NotNil(t, resp.Error)
	assert.Equal(t, daemonerrors.CodeInvalidParams, resp.Error.Code)
}
