package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// parseMsRange converts optional start/end date strings into unix millisecond
// bounds. Empty strings mean unbounded (0).
func parseMsRange(startStr, endStr string) (startMs, endMs int64, err error) {
	if startStr != "" {
		t, err := parseFlexTime(startStr)
		if err != nil {
			return 0, 0, err
		}
		startMs = t.UnixMilli()
	}
	if endStr != "" {
		t, err := parseFlexTime(endStr)
		if err != nil {
			return 0, 0, err
		}
		endMs = t.UnixMilli()
	}
	return startMs, endMs, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolListSeries = mcp.NewTool("list_series",
	mcp.WithDescription("List all stored measurement series with family, unit, measurement count, and first/last timestamps."),
)

var toolGetMeasurements = mcp.NewTool("get_measurements",
	mcp.WithDescription("Retrieve measurements for one series, ordered by time. Values are fixed-point integers in the series' unit."),
	mcp.WithString("series", mcp.Required(), mcp.Description("Series name (e.g. StepCount, Weight, HeartRate)")),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to unbounded.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD, exclusive). Defaults to unbounded.")),
)

var toolGetSeriesStats = mcp.NewTool("get_series_stats",
	mcp.WithDescription("Get aggregate statistics (count, min, max, avg, sum) over a series' integer values."),
	mcp.WithString("series", mcp.Required(), mcp.Description("Series name")),
)

var toolListFamilies = mcp.NewTool("list_families",
	mcp.WithDescription("List measurement families (Activity, BodyMeasurement, Nutrition, ...) with series and measurement counts."),
)

var toolGetImportHistory = mcp.NewTool("get_import_history",
	mcp.WithDescription("List recent import runs with record counts, durations, and error messages."),
	mcp.WithNumber("limit", mcp.Description("Maximum number of runs to return. Defaults to 50.")),
)

// --- Tool handlers ---

func (h *handlers) listSeries(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	series, err := h.ds.ListSeries(ctx)
	if err != nil {
		h.log.Error("mcp list_series", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(series)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getMeasurements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	series, err := req.RequireString("series")
	if err != nil {
		return mcp.NewToolResultError("series parameter is required"), nil
	}

	startMs, endMs, err := parseMsRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	measurements, err := h.ds.QueryMeasurements(ctx, series, startMs, endMs)
	if err != nil {
		h.log.Error("mcp get_measurements", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(measurements)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSeriesStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	series, err := req.RequireString("series")
	if err != nil {
		return mcp.NewToolResultError("series parameter is required"), nil
	}

	stats, err := h.ds.GetSeriesStats(ctx, series)
	if err != nil {
		h.log.Error("mcp get_series_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(stats)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listFamilies(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	families, err := h.ds.ListFamilies(ctx)
	if err != nil {
		h.log.Error("mcp list_families", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(families)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getImportHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 0)

	logs, err := h.ds.ListImportLogs(ctx, limit)
	if err != nil {
		h.log.Error("mcp get_import_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(logs)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
