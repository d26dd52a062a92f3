package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/naviable/naviable-go/internal/config"
	"github.com/naviable/naviable-go/internal/logger"
)

// MCPClient defines the methods we expect from an MCP client.
type MCPClient interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// ConnectMCP starts one client per configured server, initializes it and
// registers its tools on m. Servers that fail at any step are logged and
// skipped. The returned clients must be closed by the caller.
func ConnectMCP(ctx context.Context, servers []config.MCPServerConfig, m *ToolManager) []MCPClient {
	clients := make([]MCPClient, 0, len(servers))

	for _, serverCfg := range servers {
		mcpC, err := newMCPClient(ctx, serverCfg)
		if err != nil {
			logger.L.Error("Failed to create MCP client", "name", serverCfg.Name, "error", err)
			continue
		}

		initReq := mcp.InitializeRequest{
			Params: mcp.InitializeParams{
				ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
				ClientInfo:      mcp.Implementation{Name: "naviable", Version: "1.0.0"},
				Capabilities:    mcp.ClientCapabilities{},
			},
		}
		if _, err := mcpC.Initialize(ctx, initReq); err != nil {
			logger.L.Error("Failed to initialize MCP client", "name", serverCfg.Name, "error", err)
			if cerr := mcpC.Close(); cerr != nil {
				logger.L.Warn("MCP client close error after init failure", "error", cerr)
			}
			continue
		}
		logger.L.Info("Server initialized", "name", serverCfg.Name)
		clients = append(clients, mcpC)

		n, err := RegisterMCPTools(ctx, serverCfg.Name, mcpC, m)
		if err != nil {
			// Keep the client; it may still serve calls for tools registered later.
			logger.L.Warn("Failed to list tools for MCP client", "name", serverCfg.Name, "error", err)
			continue
		}
		logger.L.Info("Registered MCP tools", "name", serverCfg.Name, "count", n)
	}

	if len(clients) == 0 && len(servers) > 0 {
		logger.L.Warn("No MCP clients were successfully initialized despite servers configured.", "length", len(servers))
	}
	return clients
}

func newMCPClient(ctx context.Context, serverCfg config.MCPServerConfig) (*client.Client, error) {
	var mcpC *client.Client
	var err error

	switch serverCfg.Type {
	case config.ClientTypeSSE:
		var sseOpts []transport.ClientOption
		if len(serverCfg.Headers) > 0 {
			sseOpts = append(sseOpts, transport.WithHeaders(serverCfg.Headers))
		}
		mcpC, err = client.NewSSEMCPClient(serverCfg.URL, sseOpts...)
	case config.ClientTypeStreamableHTTP:
		var httpOpts []transport.StreamableHTTPCOption
		if len(serverCfg.Headers) > 0 {
			httpOpts = append(httpOpts, transport.WithHTTPHeaders(serverCfg.Headers))
		}
		mcpC, err = client.NewStreamableHttpClient(serverCfg.URL, httpOpts...)
	case config.ClientTypeStdio:
		var env []string
		for k, v := range serverCfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		// Stdio clients are started by the constructor.
		return client.NewStdioMCPClient(serverCfg.Command, env, serverCfg.Args...)
	case "":
		return nil, fmt.Errorf("MCP server type not specified; use 'sse', 'streamable_http' or 'stdio'")
	default:
		return nil, fmt.Errorf("unsupported MCP server type %q", serverCfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := mcpC.Start(ctx); err != nil {
		if cerr := mcpC.Close(); cerr != nil {
			logger.L.Warn("MCP client close error after start failure", "error", cerr)
		}
		return nil, fmt.Errorf("start transport: %w", err)
	}
	return mcpC, nil
}

// RegisterMCPTools lists the tools of c and registers them on m, skipping
// names another server already provides.
func RegisterMCPTools(ctx context.Context, server string, c MCPClient, m *ToolManager) (int, error) {
	res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return 0, err
	}
	if res == nil {
		return 0, nil
	}

	registered := 0
	for _, t := range res.Tools {
		if !m.RegisterTool(&mcpTool{client: c, tool: t, server: server}) {
			logger.L.Warn("Tool from MCP server already registered from another server. Skipping.", "tool", t.Name, "name", server)
			continue
		}
		registered++
	}
	return registered, nil
}

// mcpTool exposes one remote MCP tool through the Tool interface.
type mcpTool struct {
	client MCPClient
	tool   mcp.Tool
	server string
}

func (t *mcpTool) Name() string        { return t.tool.Name }
func (t *mcpTool) Description() string { return t.tool.Description }

func (t *mcpTool) Schema() json.RawMessage {
	if len(t.tool.RawInputSchema) > 0 && string(t.tool.RawInputSchema) != "null" {
		return t.tool.RawInputSchema
	}
	schemaBytes, err := json.Marshal(t.tool.InputSchema)
	if err != nil {
		logger.L.Error("Failed to marshal InputSchema for tool. Using empty schema.", "tool", t.tool.Name, "error", err)
		return emptySchema
	}
	if s := string(schemaBytes); s == "{}" || s == "null" {
		return emptySchema
	}
	return schemaBytes
}

// Run calls the remote tool. A result flagged IsError is returned as an error
// carrying the tool's own text.
func (t *mcpTool) Run(ctx context.Context, args map[string]any) (string, error) {
	res, err := t.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      t.tool.Name,
			Arguments: args,
		},
	})
	if err != nil {
		return "", fmt.Errorf("mcp %s/%s: %w", t.server, t.tool.Name, err)
	}
	if res == nil {
		return "", fmt.Errorf("mcp %s/%s: empty result", t.server, t.tool.Name)
	}

	text := firstText(res.Content)
	if res.IsError {
		if text == "" {
			text = "tool execution resulted in an error without specific text"
		}
		return "", fmt.Errorf("mcp %s/%s: %s", t.server, t.tool.Name, text)
	}
	if text != "" {
		return text, nil
	}
	resultBytes, err := json.Marshal(res)
	if err != nil {
		return "Tool executed successfully, but result could not be formatted.", nil
	}
	return string(resultBytes), nil
}

func firstText(content []mcp.Content) string {
	for _, item := range content {
		if textContent, ok := item.(mcp.TextContent); ok {
			return textContent.Text
		}
	}
	return ""
}
