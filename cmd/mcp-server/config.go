package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/campusevents/server/internal/config"
	"github.com/campusevents/server/internal/mcp"
)

// MCPConfig extends the application config with MCP server settings.
type MCPConfig struct {
	Base      config.Config
	MCP       MCPServerConfig
	Transport *mcp.TransportConfig
}

type MCPServerConfig struct {
	Name      string
	Version   string
	CollegeID int64
}

// LoadConfig reads the application environment plus:
//   - MCP_SERVER_NAME (default "Campus Events Reports")
//   - MCP_SERVER_VERSION (default "1.0.0")
//   - MCP_COLLEGE_ID, required for stdio where no caller is authenticated
//   - MCP_TRANSPORT, MCP_PORT, MCP_HOST
func LoadConfig() (*MCPConfig, error) {
	base, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load base config: %w", err)
	}

	transport, err := mcp.LoadTransportConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load transport config: %w", err)
	}

	collegeID, err := parseCollegeID(os.Getenv("MCP_COLLEGE_ID"))
	if err != nil {
		return nil, err
	}
	if collegeID == 0 && transport.Type == mcp.TransportStdio {
		return nil, fmt.Errorf("MCP_COLLEGE_ID is required for the stdio transport")
	}

	return &MCPConfig{
		Base: base,
		MCP: MCPServerConfig{
			Name:      getEnv("MCP_SERVER_NAME", "Campus Events Reports"),
			Version:   getEnv("MCP_SERVER_VERSION", "1.0.0"),
			CollegeID: collegeID,
		},
		Transport: transport,
	}, nil
}

func parseCollegeID(value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid MCP_COLLEGE_ID value: %s (must be a positive integer)", value)
	}
	return id, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
