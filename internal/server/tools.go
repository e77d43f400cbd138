package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to a square image file (.ppm, .png, .jpg, .gif, .bmp, .tiff, .qoi, optionally .zst compressed)",
	}
}

func ratioProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": "Target leaves/pixels ratio in (0, 1], e.g. 0.01 for one leaf per hundred pixels",
	}
}

func thresholdProperty(what string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": "Split threshold on a block's mean squared color error" + what,
	}
}

func outlineProperties(props map[string]interface{}) map[string]interface{} {
	props["show_tree"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Draw the border of every leaf on the result (default false)",
		"default":     false,
	}
	props["outline_color"] = map[string]interface{}{
		"type":        "string",
		"description": "Outline color as hex (default #ffffff)",
		"default":     "#ffffff",
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image Information
		{
			Name:        "quadtree_dimensions",
			Description: "Get the width, height and format of an image file, and whether it is square (required by every other tool).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Compression
		{
			Name:        "quadtree_compress",
			Description: "Compress an image by painting every quadtree leaf with its mean color. Give either a target ratio (the threshold is calibrated) or an explicit threshold. Returns the result as base64-encoded PNG with leaf statistics.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": outlineProperties(map[string]interface{}{
					"path":      pathProperty(),
					"ratio":     ratioProperty(),
					"threshold": thresholdProperty("; overrides ratio"),
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "quadtree_calibrate",
			Description: "Binary-search the split threshold whose tree has a leaf count closest to ratio × pixels. Without a ratio, calibrates every level of the standard compression sweep.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":  pathProperty(),
					"ratio": ratioProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "quadtree_sweep",
			Description: "Run the full compression sweep (ratios 0.002 to 0.65) and write one file per level named <output>-<n>.<format>.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": outlineProperties(map[string]interface{}{
					"path": pathProperty(),
					"output": map[string]interface{}{
						"type":        "string",
						"description": "Output base path; the level index and extension are appended",
					},
					"format": map[string]interface{}{
						"type":        "string",
						"description": "Output format extension: ppm, png, qoi, jpg, ... optionally followed by .zst (default ppm)",
						"default":     "ppm",
					},
					"workers": map[string]interface{}{
						"type":        "integer",
						"description": "Levels calibrated concurrently (default 1)",
						"default":     1,
					},
				}),
				"required": []string{"path", "output"},
			},
		},

		// Edge Detection
		{
			Name:        "quadtree_edge_detect",
			Description: "Structure-aware edge detection: a 3x3 Laplacian is applied only inside small quadtree leaves (8px or less), so flat regions stay black. Returns base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": outlineProperties(map[string]interface{}{
					"path":      pathProperty(),
					"threshold": thresholdProperty(" (default 5000)"),
				}),
				"required": []string{"path"},
			},
		},

		// Analysis
		{
			Name:        "quadtree_stats",
			Description: "Describe the quadtree of an image: leaf count, depth, leaf size histogram, mean squared error of the rendering and the dominant leaf colors by area.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":      pathProperty(),
					"ratio":     ratioProperty(),
					"threshold": thresholdProperty("; overrides ratio"),
					"count": map[string]interface{}{
						"type":        "integer",
						"description": "Number of dominant colors to return (default 5)",
						"default":     5,
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return reply(req.ID, map[string]interface{}{"tools": GetToolDefinitions()})
}
