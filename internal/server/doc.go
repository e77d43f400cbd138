// Package server implements the MCP (Model Context Protocol) server for the
// quadtree image tools.
//
// This package provides a JSON-RPC 2.0 server that exposes quadtree
// compression, threshold calibration and structure-aware edge detection
// through the MCP protocol.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Image Information:
//   - quadtree_dimensions: Width, height, format and squareness
//
// Compression:
//   - quadtree_compress: Mean-color rendering at a ratio or threshold
//   - quadtree_calibrate: Threshold search for one ratio or the whole sweep
//   - quadtree_sweep: Write every sweep level to disk
//
// Edge Detection:
//   - quadtree_edge_detect: Laplacian restricted to small leaves
//
// Analysis:
//   - quadtree_stats: Leaf statistics and dominant leaf colors
//
// Every tool except quadtree_dimensions requires a square image. Images are
// returned as base64-encoded PNG.
//
// # Image Caching
//
// Decoded images are cached by path for the lifetime of the server process,
// so repeated calls on one file decode it once.
//
// # Error Handling
//
// Tool errors are returned as JSON-RPC error responses with:
//   - code: -32602 for bad arguments, -32000 for tool failures,
//     -32601 for unknown methods, -32700 for unparsable lines
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Logging
//
// Logs go to stderr. With QUADTREE_LOG_LEVEL=debug every calibration trial
// is logged.
package server
