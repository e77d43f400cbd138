package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/quadtree-image-tools/internal/imaging"
	"github.com/ironsheep/quadtree-image-tools/internal/pipeline"
)

// createTestImageFile writes buf as a PPM file in a temp dir and returns its path
func createTestImageFile(t *testing.T, buf *imaging.Buffer) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "handler-test.ppm")
	if err := imaging.Save(path, buf); err != nil {
		t.Fatalf("failed to save image: %v", err)
	}
	return path
}

// createHalvesImage returns a square image, black on the left and white on the right
func createHalvesImage(size int) *imaging.Buffer {
	buf := imaging.NewBuffer(size, size)
	buf.Fill(size/2, 0, size-size/2, size, imaging.White)
	return buf
}

// callTool sends a tools/call request through the request router
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) *MCPResponse {
	t.Helper()

	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, _ := json.Marshal(params)

	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// decodeToolResult unpacks the JSON text content of a successful tool call
func decodeToolResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), v); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
}

// decodePNG decodes a base64 PNG tool result
func decodePNG(t *testing.T, encoded string) *imaging.Buffer {
	t.Helper()

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("invalid base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("invalid PNG: %v", err)
	}
	return imaging.FromImage(img)
}

func expectErrorCode(t *testing.T, resp *MCPResponse, code int) {
	t.Helper()

	if resp.Error == nil {
		t.Fatalf("expected error code %d, got result %v", code, resp.Result)
	}
	if resp.Error.Code != code {
		t.Errorf("Error.Code: got %d, want %d (%v)", resp.Error.Code, code, resp.Error.Data)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New()
	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`[1, 2]`),
	})
	expectErrorCode(t, resp, -32602)
}

func TestHandleToolsCall_UnknownTool(t *testing.T) {
	resp := callTool(t, New(), "image_crop", map[string]interface{}{"path": "/x.png"})
	expectErrorCode(t, resp, -32000)
	if !strings.Contains(resp.Error.Data.(string), "unknown tool") {
		t.Errorf("Data: got %v", resp.Error.Data)
	}
}

func TestHandleDimensions(t *testing.T) {
	s := New()
	path := createTestImageFile(t, imaging.NewBuffer(16, 8))

	var info imaging.ImageInfo
	decodeToolResult(t, callTool(t, s, "quadtree_dimensions", map[string]interface{}{"path": path}), &info)

	if info.Width != 16 || info.Height != 8 {
		t.Errorf("size: got %dx%d, want 16x8", info.Width, info.Height)
	}
	if info.Square {
		t.Error("16x8 image should not be square")
	}
	if info.Format != "ppm" {
		t.Errorf("Format: got %s, want ppm", info.Format)
	}
}

func TestHandleDimensions_MissingPath(t *testing.T) {
	resp := callTool(t, New(), "quadtree_dimensions", map[string]interface{}{})
	expectErrorCode(t, resp, -32602)
}

func TestHandleCompress_Threshold(t *testing.T) {
	s := New()
	path := createTestImageFile(t, createHalvesImage(8))

	var res CompressResult
	decodeToolResult(t, callTool(t, s, "quadtree_compress", map[string]interface{}{
		"path":      path,
		"threshold": 0,
	}), &res)

	if res.Leaves != 4 {
		t.Errorf("Leaves: got %d, want 4", res.Leaves)
	}
	if res.Pixels != 64 || res.Width != 8 || res.Height != 8 {
		t.Errorf("unexpected geometry %+v", res)
	}
	out := decodePNG(t, res.ImageBase64)
	if !out.Equal(createHalvesImage(8)) {
		t.Error("halves image should render unchanged")
	}
	if res.Quality == nil || res.Quality.MSE != 0 || res.Quality.PSNR != imaging.MaxPSNR {
		t.Errorf("lossless rendering should report perfect quality, got %+v", res.Quality)
	}
}

func TestHandleCompress_Ratio(t *testing.T) {
	s := New()
	path := createTestImageFile(t, createHalvesImage(8))

	var res CompressResult
	decodeToolResult(t, callTool(t, s, "quadtree_compress", map[string]interface{}{
		"path":  path,
		"ratio": 0.0625,
	}), &res)

	if res.Target != 4 || res.Leaves != 4 {
		t.Errorf("got target %d leaves %d, want 4 and 4", res.Target, res.Leaves)
	}
	if res.Threshold != 25000 || res.Iterations != 3 {
		t.Errorf("got threshold %f after %d iterations", res.Threshold, res.Iterations)
	}
	if res.Achieved != 0.0625 {
		t.Errorf("Achieved: got %f", res.Achieved)
	}
}

func TestHandleCompress_ShowTree(t *testing.T) {
	s := New()
	path := createTestImageFile(t, createHalvesImage(8))

	var res CompressResult
	decodeToolResult(t, callTool(t, s, "quadtree_compress", map[string]interface{}{
		"path":          path,
		"threshold":     0,
		"show_tree":     true,
		"outline_color": "#ff00ff",
	}), &res)

	out := decodePNG(t, res.ImageBase64)
	magenta := imaging.NewColor(255, 0, 255)
	for _, p := range [][2]int{{0, 0}, {3, 3}, {4, 0}, {7, 7}} {
		if got := out.Get(p[0], p[1]); got != magenta {
			t.Errorf("pixel %v: got %v, want outline %v", p, got, magenta)
		}
	}
	if got := out.Get(1, 1); got != imaging.Black {
		t.Errorf("interior pixel: got %v, want black", got)
	}
}

func TestHandleCompress_Errors(t *testing.T) {
	s := New()
	square := createTestImageFile(t, createHalvesImage(8))
	wide := createTestImageFile(t, imaging.NewBuffer(8, 4))

	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{"no ratio or threshold", map[string]interface{}{"path": square}, -32602},
		{"ratio too large", map[string]interface{}{"path": square, "ratio": 1.5}, -32602},
		{"zero ratio", map[string]interface{}{"path": square, "ratio": 0}, -32602},
		{"negative threshold", map[string]interface{}{"path": square, "threshold": -1}, -32602},
		{"bad outline color", map[string]interface{}{"path": square, "threshold": 0, "outline_color": "chartreuse"}, -32602},
		{"wrong argument type", map[string]interface{}{"path": 42}, -32602},
		{"missing file", map[string]interface{}{"path": "/nonexistent/file.ppm", "threshold": 0}, -32000},
		{"not square", map[string]interface{}{"path": wide, "threshold": 0}, -32000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectErrorCode(t, callTool(t, s, "quadtree_compress", tt.args), tt.code)
		})
	}
}

func TestHandleCalibrate_SingleRatio(t *testing.T) {
	s := New()
	path := createTestImageFile(t, createHalvesImage(8))

	var res CalibrateResult
	decodeToolResult(t, callTool(t, s, "quadtree_calibrate", map[string]interface{}{
		"path":  path,
		"ratio": 0.0625,
	}), &res)

	if res.Threshold != 25000 || res.Leaves != 4 || res.Target != 4 {
		t.Errorf("unexpected calibration %+v", res)
	}
	if res.Ratio != 0.0625 || res.Achieved != 0.0625 {
		t.Errorf("ratios: got %f and %f", res.Ratio, res.Achieved)
	}
}

func TestHandleCalibrate_AllLevels(t *testing.T) {
	s := New()
	path := createTestImageFile(t, createHalvesImage(32))

	var res struct {
		Levels []CalibrateResult `json:"levels"`
	}
	decodeToolResult(t, callTool(t, s, "quadtree_calibrate", map[string]interface{}{"path": path}), &res)

	if len(res.Levels) != len(pipeline.Levels) {
		t.Fatalf("got %d levels, want %d", len(res.Levels), len(pipeline.Levels))
	}
	for i, lvl := range res.Levels {
		if lvl.Ratio != pipeline.Levels[i] {
			t.Errorf("level %d ratio: got %f, want %f", i, lvl.Ratio, pipeline.Levels[i])
		}
		if lvl.Iterations == 0 {
			t.Errorf("level %d: no iterations recorded", i)
		}
	}
}

func TestHandleSweep(t *testing.T) {
	s := New()
	path := createTestImageFile(t, createHalvesImage(16))
	base := filepath.Join(t.TempDir(), "sweep")

	var res struct {
		Width  int          `json:"width"`
		Levels []SweepLevel `json:"levels"`
	}
	decodeToolResult(t, callTool(t, s, "quadtree_sweep", map[string]interface{}{
		"path":    path,
		"output":  base,
		"format":  "png",
		"workers": 2,
	}), &res)

	if res.Width != 16 {
		t.Errorf("Width: got %d, want 16", res.Width)
	}
	if len(res.Levels) != len(pipeline.Levels) {
		t.Fatalf("got %d levels, want %d", len(res.Levels), len(pipeline.Levels))
	}
	for _, lvl := range res.Levels {
		if lvl.Error != "" {
			t.Errorf("level %d: %s", lvl.Index, lvl.Error)
			continue
		}
		if !strings.HasSuffix(lvl.Output, ".png") {
			t.Errorf("level %d: output %s should be a png", lvl.Index, lvl.Output)
		}
		if _, err := os.Stat(lvl.Output); err != nil {
			t.Errorf("level %d: %v", lvl.Index, err)
		}
	}
}

func TestHandleSweep_InvalidArgs(t *testing.T) {
	s := New()
	path := createTestImageFile(t, createHalvesImage(8))

	expectErrorCode(t, callTool(t, s, "quadtree_sweep", map[string]interface{}{"path": path}), -32602)
	expectErrorCode(t, callTool(t, s, "quadtree_sweep", map[string]interface{}{
		"path":   path,
		"output": filepath.Join(t.TempDir(), "x"),
		"format": "docx",
	}), -32602)
}

func TestHandleEdgeDetect_Uniform(t *testing.T) {
	s := New()
	buf := imaging.NewBuffer(32, 32)
	buf.Fill(0, 0, 32, 32, imaging.NewColor(10, 200, 30))
	path := createTestImageFile(t, buf)

	var res EdgeDetectResult
	decodeToolResult(t, callTool(t, s, "quadtree_edge_detect", map[string]interface{}{"path": path}), &res)

	if res.Threshold != pipeline.EdgeThreshold {
		t.Errorf("Threshold: got %f, want %f", res.Threshold, pipeline.EdgeThreshold)
	}
	if res.Leaves != 1 {
		t.Errorf("Leaves: got %d, want 1", res.Leaves)
	}
	out := decodePNG(t, res.ImageBase64)
	if !out.Equal(imaging.NewBuffer(32, 32)) {
		t.Error("uniform image should produce a black edge map")
	}
}

func TestHandleEdgeDetect_ExplicitThreshold(t *testing.T) {
	s := New()
	path := createTestImageFile(t, createHalvesImage(16))

	var res EdgeDetectResult
	decodeToolResult(t, callTool(t, s, "quadtree_edge_detect", map[string]interface{}{
		"path":      path,
		"threshold": 100000,
	}), &res)

	// Above the root error the tree is a single 16px leaf, too large to filter.
	if res.Leaves != 1 {
		t.Errorf("Leaves: got %d, want 1", res.Leaves)
	}
	out := decodePNG(t, res.ImageBase64)
	if !out.Equal(imaging.NewBuffer(16, 16)) {
		t.Error("a single large leaf should produce a black edge map")
	}
}

func TestHandleStats(t *testing.T) {
	s := New()
	path := createTestImageFile(t, createHalvesImage(8))

	var res StatsResult
	decodeToolResult(t, callTool(t, s, "quadtree_stats", map[string]interface{}{
		"path":      path,
		"threshold": 25000,
	}), &res)

	if res.Leaves != 4 || res.Depth != 1 {
		t.Errorf("got %d leaves at depth %d, want 4 at depth 1", res.Leaves, res.Depth)
	}
	if res.MeanError != 0 {
		t.Errorf("MeanError: got %f, want 0", res.MeanError)
	}
	if res.LeafSizes[4] != 4 {
		t.Errorf("LeafSizes: got %v", res.LeafSizes)
	}
	if len(res.DominantColors) != 2 {
		t.Fatalf("got %d dominant colors, want 2", len(res.DominantColors))
	}
	if res.DominantColors[0].Hex != "#000000" || res.DominantColors[1].Hex != "#ffffff" {
		t.Errorf("colors: got %s and %s", res.DominantColors[0].Hex, res.DominantColors[1].Hex)
	}
	for _, c := range res.DominantColors {
		if c.Percentage != 50 {
			t.Errorf("%s: got %f%%, want 50%%", c.Hex, c.Percentage)
		}
	}
}

func TestHandleStats_Count(t *testing.T) {
	s := New()
	path := createTestImageFile(t, createHalvesImage(8))

	var res StatsResult
	decodeToolResult(t, callTool(t, s, "quadtree_stats", map[string]interface{}{
		"path":      path,
		"threshold": 0,
		"count":     1,
	}), &res)

	if len(res.DominantColors) != 1 {
		t.Errorf("got %d dominant colors, want 1", len(res.DominantColors))
	}
}

func TestDecodePNG_UsesOpaqueColors(t *testing.T) {
	buf := createHalvesImage(4)
	encoded, err := imaging.EncodePNGBase64(buf)
	if err != nil {
		t.Fatalf("EncodePNGBase64 failed: %v", err)
	}
	out := decodePNG(t, encoded)
	if _, _, _, a := out.At(3, 0).RGBA(); a != 0xffff {
		t.Errorf("alpha: got %d, want opaque", a)
	}
	if out.At(3, 0) != color.Color(imaging.White) {
		t.Errorf("pixel: got %v, want white", out.At(3, 0))
	}
}
