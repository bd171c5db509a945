package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archmcp/mcpd/pkg/protocol"
)

type stubRegistry struct{}

func (stubRegistry) ListTools() []protocol.ToolInfo                            { return nil }
func (stubRegistry) ListResources() []protocol.ResourceInfo                    { return nil }
func (stubRegistry) LookupTool(name string) (protocol.ToolInfo, bool)          { return protocol.ToolInfo{}, false }
func (stubRegistry) LookupResource(uri string) (protocol.ResourceInfo, bool)   { return protocol.ResourceInfo{}, false }
func (stubRegistry) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	return nil, nil
}
func (stubRegistry) ReadResource(ctx context.Context, uri string) (interface{}, error) { return nil, nil }
func (stubRegistry) ListPlugins() []string                                             { return []string{"pkgman"} }

type stubValidator struct{}

func (stubValidator) Validate(schema interface{}, args map[string]interface{}) error { return nil }

type stubKernel struct{}

func (stubKernel) ExecuteWithAudit(ctx context.Context, operationType string, auditContext map[string]interface{}, operation func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	return operation(ctx)
}

func newTestServer() *Server {
	reg := stubRegistry{}
	dispatcher := protocol.NewDispatcher(reg, stubValidator{}, stubKernel{}, "mcpd", "0.1.0")
	session := protocol.NewSession()
	return NewServer(dispatcher, session, reg, "0.1.0", nil)
}

func TestHandleMCPInitializeRoundTrip(t *testing.T) {
	srv := newTestServer()
	body, err := json.Marshal(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": "initialize"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp protocol.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Error)
}

func TestHandleMCPRejectsNonPOST(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var resp protocol.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Contains(t, resp.Plugins, "pkgman")
}
