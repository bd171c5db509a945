package protocol

import (
	"context"
	"encoding/json"

	daemonerrors "github.com/archmcp/mcpd/pkg/errors"
)

// ToolInfo is the registry's view of a tool descriptor, shorn of its
// handler reference — exactly what crosses the protocol boundary.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema interface{}
}

// ResourceInfo is the registry's view of a resource descriptor.
type ResourceInfo struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// Registry is the subset of the Plugin Registry's surface the protocol
// state machine depends on. pkg/registry.Registry implements it.
type Registry interface {
	ListTools() []ToolInfo
	ListResources() []ResourceInfo
	LookupTool(name string) (ToolInfo, bool)
	LookupResource(uri string) (ResourceInfo, bool)
	ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error)
	ReadResource(ctx context.Context, uri string) (interface{}, error)
}

// Validator is the subset of the Tool/Resource Validator the protocol
// state machine depends on. pkg/validator.Validator implements it.
type Validator interface {
	Validate(schema interface{}, args map[string]interface{}) error
}

// Kernel is the subset of the Security/Audit Kernel the protocol state
// machine depends on. pkg/security.Kernel implements it.
type Kernel interface {
	ExecuteWithAudit(ctx context.Context, operationType string, auditContext map[string]interface{}, operation func(ctx context.Context) (interface{}, error)) (interface{}, error)
}

// Dispatcher is the Protocol State Machine: a purely functional mapping
// from (session, request) to response, over the Registry/Validator/Kernel
// collaborators it is constructed with. It holds no mutable state of its
// own — Session carries the only state that survives between calls.
type Dispatcher struct {
	Registry  Registry
	Validator Validator
	Kernel    Kernel
	ServerID  string
	Version   string
}

// NewDispatcher builds a Dispatcher over the given collaborators.
func NewDispatcher(registry Registry, validator Validator, kernel Kernel, serverID, version string) *Dispatcher {
	return &Dispatcher{Registry: registry, Validator: validator, Kernel: kernel, ServerID: serverID, Version: version}
}

// Dispatch handles a single decoded request against session and returns the
// response to send, or nil if no response should be sent (a notification).
func (d *Dispatcher) Dispatch(ctx context.Context, session *Session, req *Request) *Response {
	if !IsWellFormedEnvelope(req) {
		id := requestID(req)
		return NewErrorResponseFromDaemonError(id, daemonerrors.InvalidRequest("malformed envelope: missing or wrong jsonrpc tag, or empty method"))
	}

	switch req.Method {
	case MethodInitialize:
		return d.handleInitialize(session, req)
	case MethodInitialized:
		return d.handleInitialized(session, req)
	case MethodToolsList:
		return d.guardInitialized(session, req, d.handleToolsList)
	case MethodToolsCall:
		return d.guardInitialized(session, req, func(r *Request) *Response { return d.handleToolsCall(ctx, r) })
	case MethodResourcesList:
		return d.guardInitialized(session, req, d.handleResourcesList)
	case MethodResourcesRead:
		return d.guardInitialized(session, req, func(r *Request) *Response { return d.handleResourcesRead(ctx, r) })
	case MethodCompletionComplete:
		return d.handleCompletion(req)
	default:
		if IsNotificationRequest(req) {
			return nil
		}
		return NewErrorResponseFromDaemonError(req.ID, daemonerrors.MethodNotFound(req.Method))
	}
}

// guardInitialized implements the pre-state check shared by every method
// except the handshake pair and completion/complete: dispatching before
// `initialized` fails with -32002, unless the caller sent no id, in which
// case there is nothing to reply to.
func (d *Dispatcher) guardInitialized(session *Session, req *Request, handle func(*Request) *Response) *Response {
	if !session.Initialized() {
		if IsNotificationRequest(req) {
			return nil
		}
		return NewErrorResponseFromDaemonError(req.ID, daemonerrors.NotInitialized())
	}
	return handle(req)
}

func (d *Dispatcher) handleInitialize(session *Session, req *Request) *Response {
	var params InitializeParams
	if len(req.Params) > 0 {
		_ = json.Unmarshal(req.Params, &params)
	}
	session.CompleteHandshake(params.ClientInfo)
	// initialize never fails on an unrecognized protocol version in this
	// daemon: a single supported version is advertised back regardless of
	// what the client requested.
	id := requestID(req)
	result := InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    DefaultCapabilities(),
		ServerInfo:      ServerInfo{Name: d.ServerID, Version: d.Version},
	}
	resp, err := NewResponse(id, result)
	if err != nil {
		return NewErrorResponseFromDaemonError(id, daemonerrors.Internal(err))
	}
	return resp
}

func (d *Dispatcher) handleInitialized(session *Session, req *Request) *Response {
	session.MarkInitialized()
	if IsNotificationRequest(req) {
		return nil
	}
	resp, err := NewResponse(req.ID, struct{}{})
	if err != nil {
		return NewErrorResponseFromDaemonError(req.ID, daemonerrors.Internal(err))
	}
	return resp
}

func (d *Dispatcher) handleToolsList(req *Request) *Response {
	infos := d.Registry.ListTools()
	views := make([]ToolDescriptorView, 0, len(infos))
	for _, info := range infos {
		views = append(views, ToolDescriptorView{Name: info.Name, Description: info.Description, InputSchema: info.InputSchema})
	}
	resp, err := NewResponse(req.ID, ToolsListResult{Tools: views})
	if err != nil {
		return NewErrorResponseFromDaemonError(req.ID, daemonerrors.Internal(err))
	}
	return resp
}

func (d *Dispatcher) handleResourcesList(req *Request) *Response {
	infos := d.Registry.ListResources()
	views := make([]ResourceDescriptorView, 0, len(infos))
	for _, info := range infos {
		views = append(views, ResourceDescriptorView{URI: info.URI, Name: info.Name, Description: info.Description, MimeType: info.MimeType})
	}
	resp, err := NewResponse(req.ID, ResourcesListResult{Resources: views})
	if err != nil {
		return NewErrorResponseFromDaemonError(req.ID, daemonerrors.Internal(err))
	}
	return resp
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolsCallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return NewErrorResponseFromDaemonError(req.ID, daemonerrors.InvalidParams("malformed tools/call params: "+err.Error()))
		}
	}
	if params.Name == "" {
		return NewErrorResponseFromDaemonError(req.ID, daemonerrors.InvalidParams("missing required field: name"))
	}

	tool, ok := d.Registry.LookupTool(params.Name)
	if !ok {
		return NewErrorResponseFromDaemonError(req.ID, daemonerrors.ToolNotFound(params.Name))
	}

	if err := d.Validator.Validate(tool.InputSchema, params.Arguments); err != nil {
		return NewErrorResponseFromDaemonError(req.ID, daemonerrors.InvalidParams(err.Error()))
	}

	result, err := d.Kernel.ExecuteWithAudit(ctx, "tools/call", map[string]interface{}{
		"tool": params.Name,
		"args": params.Arguments,
	}, func(ctx context.Context) (interface{}, error) {
		return d.Registry.ExecuteTool(ctx, params.Name, params.Arguments)
	})
	if err != nil {
		return d.errorResponse(req.ID, err)
	}

	resp, err := NewResponse(req.ID, result)
	if err != nil {
		return NewErrorResponseFromDaemonError(req.ID, daemonerrors.Internal(err))
	}
	return resp
}

func (d *Dispatcher) handleResourcesRead(ctx context.Context, req *Request) *Response {
	var params ResourcesReadParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return NewErrorResponseFromDaemonError(req.ID, daemonerrors.InvalidParams("malformed resources/read params: "+err.Error()))
		}
	}
	if params.URI == "" {
		return NewErrorResponseFromDaemonError(req.ID, daemonerrors.InvalidParams("missing required field: uri"))
	}

	if _, ok := d.Registry.LookupResource(params.URI); !ok {
		return NewErrorResponseFromDaemonError(req.ID, daemonerrors.ResourceNotFound(params.URI))
	}

	content, err := d.Kernel.ExecuteWithAudit(ctx, "resources/read", map[string]interface{}{
		"uri": params.URI,
	}, func(ctx context.Context) (interface{}, error) {
		return d.Registry.ReadResource(ctx, params.URI)
	})
	if err != nil {
		return d.errorResponse(req.ID, err)
	}

	resp, err := NewResponse(req.ID, ResourcesReadResult{Content: content})
	if err != nil {
		return NewErrorResponseFromDaemonError(req.ID, daemonerrors.Internal(err))
	}
	return resp
}

func (d *Dispatcher) handleCompletion(req *Request) *Response {
	if IsNotificationRequest(req) {
		return nil
	}
	resp, err := NewResponse(req.ID, EmptyCompletionResult())
	if err != nil {
		return NewErrorResponseFromDaemonError(req.ID, daemonerrors.Internal(err))
	}
	return resp
}

// errorResponse maps an error returned by the kernel back onto the wire,
// preserving its code unchanged (the kernel never swallows or recodes).
// An error that does not already carry a DaemonError code is treated as an
// unhandled exception and surfaced as -32603.
func (d *Dispatcher) errorResponse(id interface{}, err error) *Response {
	if de, ok := daemonerrors.As(err); ok {
		return NewErrorResponseFromDaemonError(id, de)
	}
	return NewErrorResponseFromDaemonError(id, daemonerrors.Internal(err))
}

// requestID returns req's id, or nil if req is nil or carries none —
// used when replying to a request that failed before method dispatch.
func requestID(req *Request) interface{} {
	if req == nil {
		return nil
	}
	return req.ID
}
