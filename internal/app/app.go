// Package app wires the assistant together from configuration. Everything the
// supervisor depends on is built here and released by Close.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/naviable/naviable-go/internal/agent"
	"github.com/naviable/naviable-go/internal/chat"
	"github.com/naviable/naviable-go/internal/config"
	"github.com/naviable/naviable-go/internal/geo"
	"github.com/naviable/naviable-go/internal/llm"
	"github.com/naviable/naviable-go/internal/logger"
	"github.com/naviable/naviable-go/internal/router"
	"github.com/naviable/naviable-go/internal/server"
	"github.com/naviable/naviable-go/internal/store"
	"github.com/naviable/naviable-go/internal/weather"
	"github.com/naviable/naviable-go/pkg/tools"
)

// App holds the constructed collaborators.
type App struct {
	Config     *config.Config
	Store      *store.Store
	Tools      *tools.ToolManager
	Supervisor *router.Supervisor
	Chats      *chat.Service

	mcpClients []tools.MCPClient
}

// New builds the application. MCP servers that cannot be reached are skipped;
// a store that cannot be opened is an error.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	llmClient := llm.NewClient(cfg.LLM)
	resolver := geo.NewResolver(nil)
	weatherClient := weather.NewClient(cfg.Weather)

	tm := tools.NewToolManager()
	tm.RegisterTool(tools.NewWeatherTool(weatherClient, resolver))
	tm.RegisterTool(tools.NewCityTool(resolver))
	mcpClients := tools.ConnectMCP(ctx, cfg.MCPServers, tm)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		closeClients(mcpClients)
		return nil, fmt.Errorf("open store: %w", err)
	}

	sup := router.NewSupervisor(
		newPolicy(cfg, llmClient),
		newAgents(cfg, llmClient, tm, resolver, weatherClient),
		router.WithMaxIterations(cfg.Routing.MaxIterations),
		router.WithMinWords(cfg.Routing.MinWords),
		router.WithInstructions(Instructions(cfg.Routing.Instructions)),
	)

	logger.L.Info("application initialized",
		"mode", cfg.Routing.Mode,
		"model", cfg.LLM.Model,
		"tools", len(tm.List()),
		"mcpServers", len(mcpClients),
	)
	return &App{
		Config:     cfg,
		Store:      st,
		Tools:      tm,
		Supervisor: sup,
		Chats:      chat.NewService(st, sup, chat.NewLLMTitler(llmClient, cfg.LLM.Model)),
		mcpClients: mcpClients,
	}, nil
}

// Server returns the HTTP API over the application.
func (a *App) Server() *server.Server {
	return server.New(a.Config.Server, a.Store, a.Chats)
}

// Close releases the MCP clients and the store.
func (a *App) Close() error {
	closeClients(a.mcpClients)
	return a.Store.Close()
}

func closeClients(clients []tools.MCPClient) {
	for _, c := range clients {
		if err := c.Close(); err != nil {
			logger.L.Warn("MCP client close error", "error", err)
		}
	}
}

func newPolicy(cfg *config.Config, llmClient llm.Client) router.Policy {
	if cfg.Routing.Mode == config.RoutingModeKeyword {
		return router.KeywordPolicy{}
	}
	return router.NewLLMPolicy(llmClient, cfg.LLM.Model)
}

func newAgents(cfg *config.Config, llmClient llm.Client, tm *tools.ToolManager, resolver *geo.Resolver, weatherClient *weather.Client) map[agent.Capability]agent.Agent {
	model := cfg.LLM.Model
	timeout := cfg.Routing.AgentTimeout
	travelOpts := []agent.Option{
		agent.WithMaxTurns(cfg.Routing.MaxToolTurns),
		agent.WithExtractor(agent.NewExtractor(llmClient, model)),
	}

	return map[agent.Capability]agent.Agent{
		agent.Flight: agent.WithWeather(
			agent.Safe(agent.NewToolAgent(llmClient, model, tm, travelOpts...), timeout),
			resolver, weatherClient,
		),
		agent.Lodging: agent.Safe(agent.NewToolAgent(llmClient, model, tm, travelOpts...), timeout),
		agent.General: agent.Safe(agent.NewToolAgent(llmClient, model, tm, agent.WithMaxTurns(cfg.Routing.MaxToolTurns)), timeout),
	}
}

// Instructions maps configured instruction overrides onto capabilities.
// Keys match capability names case-insensitively; unknown keys are logged.
func Instructions(configured map[string]string) map[agent.Capability]string {
	out := make(map[agent.Capability]string, len(configured))
	for key, text := range configured {
		matched := false
		for _, c := range agent.Capabilities {
			if strings.EqualFold(key, string(c)) {
				out[c] = text
				matched = true
			}
		}
		if !matched {
			logger.L.Warn("ignoring instructions for unknown capability", "capability", key)
		}
	}
	return out
}
