package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("HealthVault", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("HealthVault stores HealthKit measurements as fixed-point integer time series. Values use scaled units (e.g. milligrams for weight, millis for percentages); check each series' unit before interpreting values."),
	)

	h := &handlers{ds: ds, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolListSeries, Handler: h.listSeries},
		server.ServerTool{Tool: toolGetMeasurements, Handler: h.getMeasurements},
		server.ServerTool{Tool: toolGetSeriesStats, Handler: h.getSeriesStats},
		server.ServerTool{Tool: toolListFamilies, Handler: h.listFamilies},
		server.ServerTool{Tool: toolGetImportHistory, Handler: h.getImportHistory},
	)

	s.AddResources(
		server.ServerResource{Resource: resCatalog, Handler: h.catalog},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

var resCatalog = mcp.NewResource(
	"healthvault://catalog",
	"Series Catalog",
	mcp.WithResourceDescription("All stored series with family, unit, measurement count, and time extent"),
	mcp.WithMIMEType("application/json"),
)
