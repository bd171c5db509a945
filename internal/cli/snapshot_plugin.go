package cli

import (
	"context"
	"fmt"

	"github.com/archmcp/mcpd/pkg/registry"
	"github.com/archmcp/mcpd/pkg/snapshot"
	"github.com/archmcp/mcpd/pkg/validator"
)

// snapshotPlugin exposes the daemon's in-process snapshot.Store as MCP
// tools, so a connected client can capture and restore state through the
// same tools/call path it uses for everything else, without shelling out
// to the CLI in a separate process.
type snapshotPlugin struct {
	store *snapshot.Store
}

func (p *snapshotPlugin) Name() string { return "snapshot" }

func (p *snapshotPlugin) GetResources() []registry.ResourceDescriptor { return nil }

func (p *snapshotPlugin) GetTools() []registry.ToolDescriptor {
	return []registry.ToolDescriptor{
		{
			Name:        "snapshot_create",
			Description: "Capture the given files and systemd service states into a new snapshot",
			InputSchema: &validator.Schema{
				Type: "object",
				Properties: map[string]validator.Property{
					"description": {Type: "string"},
					"files":       {Type: "array", Items: &validator.Property{Type: "string"}},
					"services":    {Type: "array", Items: &validator.Property{Type: "string"}},
				},
			},
			Handler: p.create,
		},
		{
			Name:        "snapshot_list",
			Description: "List every stored snapshot, newest first",
			InputSchema: &validator.Schema{Type: "object"},
			Handler:     p.list,
		},
		{
			Name:        "snapshot_restore",
			Description: "Restore a snapshot's captured files and converge its service states",
			InputSchema: &validator.Schema{
				Type:       "object",
				Properties: map[string]validator.Property{"id": {Type: "string"}},
				Required:   []string{"id"},
			},
			Handler: p.restore,
		},
		{
			Name:        "snapshot_delete",
			Description: "Delete a snapshot record",
			InputSchema: &validator.Schema{
				Type:       "object",
				Properties: map[string]validator.Property{"id": {Type: "string"}},
				Required:   []string{"id"},
			},
			Handler: p.delete,
		},
	}
}

func (p *snapshotPlugin) create(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	description, _ := args["description"].(string)
	id, err := p.store.CreateSnapshot(ctx, description, stringSlice(args["files"]), stringSlice(args["services"]))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"id": id}, nil
}

func (p *snapshotPlugin) list(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	summaries, err := p.store.ListSnapshots()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"snapshots": summaries}, nil
}

func (p *snapshotPlugin) restore(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	id, ok := args["id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("missing required field: id")
	}
	if err := p.store.RestoreSnapshot(ctx, id); err != nil {
		return nil, err
	}
	return map[string]interface{}{"restored": id}, nil
}

func (p *snapshotPlugin) delete(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	id, ok := args["id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("missing required field: id")
	}
	if err := p.store.DeleteSnapshot(id); err != nil {
		return nil, err
	}
	return map[string]interface{}{"deleted": id}, nil
}

func stringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
