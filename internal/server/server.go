package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ironsheep/quadtree-image-tools/internal/imaging"
	"github.com/ironsheep/quadtree-image-tools/internal/quadtree"
)

// ServerName is reported to clients during the initialize handshake.
const ServerName = "quadtree-image-tools"

// Server handles MCP protocol communication
type Server struct {
	cache   *imaging.BufferCache
	version string
	debug   bool
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a new MCP server instance. Calibration traces are logged when
// QUADTREE_LOG_LEVEL is "debug".
func New() *Server {
	return &Server{
		cache:   imaging.NewBufferCache(),
		version: "0.1.0",
		debug:   os.Getenv("QUADTREE_LOG_LEVEL") == "debug",
	}
}

// SetVersion overrides the version reported in serverInfo.
func (s *Server) SetVersion(v string) {
	if v != "" {
		s.version = v
	}
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

const (
	jsonRPCVersion  = "2.0"
	protocolVersion = "2024-11-05"

	// maxRequestLine bounds a single request; tool arguments are paths and
	// numbers, never inline image data.
	maxRequestLine = 1 << 20

	codeToolFailed     = -32000
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Serve processes newline-delimited requests from r until EOF, writing one
// response per line to w. Notifications and blank lines produce no output.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	in := bufio.NewScanner(r)
	in.Buffer(make([]byte, 0, 64*1024), maxRequestLine)
	out := json.NewEncoder(w)

	for in.Scan() {
		resp := s.respond(in.Bytes())
		if resp == nil {
			continue
		}
		if err := out.Encode(resp); err != nil {
			log.Printf("Failed to write response %v: %v", resp.ID, err)
		}
	}
	if err := in.Err(); err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	return nil
}

// respond decodes one request line and dispatches it. A line that is not
// valid JSON gets a parse error with a null id.
func (s *Server) respond(line []byte) *MCPResponse {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}
	var req MCPRequest
	if err := json.Unmarshal(line, &req); err != nil {
		log.Printf("Rejecting malformed request: %v", err)
		return failure(nil, codeParseError, "Parse error", err.Error())
	}
	return s.handleRequest(&req)
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return reply(req.ID, s.initializeResult())
	case "notifications/initialized":
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return reply(req.ID, map[string]interface{}{})
	}
	return failure(req.ID, codeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), "")
}

// initializeResult advertises the tools capability and this server's identity.
func (s *Server) initializeResult() map[string]interface{} {
	return map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
		"serverInfo":      map[string]interface{}{"name": ServerName, "version": s.version},
	}
}

// reply wraps a successful result.
func reply(id interface{}, result interface{}) *MCPResponse {
	return &MCPResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
}

// failure wraps an error. An empty data string is omitted from the response.
func failure(id interface{}, code int, message, data string) *MCPResponse {
	e := &MCPError{Code: code, Message: message}
	if data != "" {
		e.Data = data
	}
	return &MCPResponse{JSONRPC: jsonRPCVersion, ID: id, Error: e}
}

// calibrator returns a fresh default calibrator, tracing trials in debug mode.
func (s *Server) calibrator() *quadtree.Calibrator {
	c := quadtree.DefaultCalibrator()
	if s.debug {
		c.Observe = func(tr quadtree.Trial) {
			log.Printf("calibrate: iteration %d threshold %.1f leaves %d target %d",
				tr.Iteration, tr.Threshold, tr.Leaves, tr.Target)
		}
	}
	return c
}
