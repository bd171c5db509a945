package protocol

import "encoding/json"

// ProtocolVersion is the MCP protocol version this daemon speaks.
const ProtocolVersion = "2024-11-05"

// Method names recognized by the dispatch table in dispatch.go.
const (
	MethodInitialize          = "initialize"
	MethodInitialized         = "initialized"
	MethodToolsList           = "tools/list"
	MethodToolsCall           = "tools/call"
	MethodResourcesList       = "resources/list"
	MethodResourcesRead       = "resources/read"
	MethodCompletionComplete  = "completion/complete"
)

// ClientInfo identifies the connecting client, sent once at handshake.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerInfo identifies this daemon in the handshake result.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams is the payload of an `initialize` request.
type InitializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ClientInfo      ClientInfo `json:"clientInfo"`
}

// ToolsCapability advertises listChanged support for tools.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ResourcesCapability advertises subscribe/listChanged support for resources.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe"`
	ListChanged bool `json:"listChanged"`
}

// PromptsCapability advertises listChanged support for prompts.
type PromptsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// Capabilities is the fixed capability set this daemon advertises. The
// dispatch table implements no prompts methods, no `resources/subscribe`
// method, and sends no list-changed notifications, although
// DefaultCapabilities sets those flags to true.
type Capabilities struct {
	Tools     ToolsCapability     `json:"tools"`
	Resources ResourcesCapability `json:"resources"`
	Prompts   PromptsCapability   `json:"prompts"`
}

// InitializeResult is the handshake result shape returned by `initialize`.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// DefaultCapabilities is the capability set every handshake response
// advertises.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		Tools:     ToolsCapability{ListChanged: true},
		Resources: ResourcesCapability{Subscribe: true, ListChanged: true},
		Prompts:   PromptsCapability{ListChanged: true},
	}
}

// ToolsListResult is the result of `tools/list`.
type ToolsListResult struct {
	Tools []ToolDescriptorView `json:"tools"`
}

// ToolDescriptorView is the wire projection of a tool descriptor: the
// handler reference never leaves the process.
type ToolDescriptorView struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

// ResourcesListResult is the result of `resources/list`.
type ResourcesListResult struct {
	Resources []ResourceDescriptorView `json:"resources"`
}

// ResourceDescriptorView is the wire projection of a resource descriptor.
type ResourceDescriptorView struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ToolsCallParams is the payload of a `tools/call` request.
type ToolsCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ResourcesReadParams is the payload of a `resources/read` request.
type ResourcesReadParams struct {
	URI string `json:"uri"`
}

// ResourcesReadResult is the result of `resources/read`.
type ResourcesReadResult struct {
	Content interface{} `json:"content"`
}

// Content item kinds a tool call result may wrap.
const (
	ContentTypeText     = "text"
	ContentTypeImage    = "image"
	ContentTypeResource = "resource"
)

// TextContent is a plain-text content item.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTextContent builds a TextContent item.
func NewTextContent(text string) TextContent {
	return TextContent{Type: ContentTypeText, Text: text}
}

// ImageContent is a base64-encoded image content item.
type ImageContent struct {
	Type     string `json:"type"`
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// NewImageContent builds an ImageContent item.
func NewImageContent(data, mimeType string) ImageContent {
	return ImageContent{Type: ContentTypeImage, Data: data, MimeType: mimeType}
}

// ResourceContentRef is a content item that refers to a resource by URI
// rather than inlining it.
type ResourceContentRef struct {
	Type string `json:"type"`
	URI  string `json:"uri"`
}

// NewResourceContentRef builds a ResourceContentRef item.
func NewResourceContentRef(uri string) ResourceContentRef {
	return ResourceContentRef{Type: ContentTypeResource, URI: uri}
}

// ToolCallResult wraps a tool's content items in the
// `{content:[...], isError:bool, ...metadata}` shape.
type ToolCallResult struct {
	Content  []interface{}          `json:"content"`
	IsError  bool                   `json:"isError"`
	Metadata map[string]interface{} `json:"-"`
}

// MarshalJSON flattens Metadata alongside Content/IsError into a single
// result envelope.
func (r ToolCallResult) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"content": r.Content,
		"isError": r.IsError,
	}
	for k, v := range r.Metadata {
		out[k] = v
	}
	return json.Marshal(out)
}

// CompletionResult is the fixed, always-empty result of
// `completion/complete`; no completion source is wired.
type CompletionResult struct {
	Completion CompletionValues `json:"completion"`
}

// CompletionValues is the nested payload of CompletionResult.
type CompletionValues struct {
	Values  []string `json:"values"`
	Total   int      `json:"total"`
	HasMore bool     `json:"hasMore"`
}

// EmptyCompletionResult is returned by every `completion/complete` call;
// no completion provider is wired into this daemon.
func EmptyCompletionResult() CompletionResult {
	return CompletionResult{Completion: CompletionValues{Values: []string{}, Total: 0, HasMore: false}}
}
