package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ironsheep/quadtree-image-tools/internal/imaging"
	"github.com/ironsheep/quadtree-image-tools/internal/pipeline"
	"github.com/ironsheep/quadtree-image-tools/internal/quadtree"
)

// errInvalidArgs marks tool argument errors; they are reported with the
// JSON-RPC invalid params code instead of the tool failure code.
var errInvalidArgs = errors.New("invalid arguments")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "quadtree_compress").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Argument errors return code -32602; any other tool failure returns -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return failure(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		if errors.Is(err, errInvalidArgs) {
			return failure(req.ID, codeInvalidParams, "Invalid params", err.Error())
		}
		return failure(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	return reply(req.ID, map[string]interface{}{
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": mustMarshalJSON(result),
			},
		},
	})
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "quadtree_dimensions":
		return s.handleDimensions(args)
	case "quadtree_compress":
		return s.handleCompress(args)
	case "quadtree_calibrate":
		return s.handleCalibrate(args)
	case "quadtree_sweep":
		return s.handleSweep(args)
	case "quadtree_edge_detect":
		return s.handleEdgeDetect(args)
	case "quadtree_stats":
		return s.handleStats(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments and checks the mandatory path.
func decodeArgs(args json.RawMessage, v interface{ path() string }) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing arguments", errInvalidArgs)
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidArgs, err)
	}
	if v.path() == "" {
		return fmt.Errorf("%w: path is required", errInvalidArgs)
	}
	return nil
}

// === Image Information ===

type pathArgs struct {
	Path string `json:"path"`
}

func (a *pathArgs) path() string { return a.Path }

func (s *Server) handleDimensions(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

// === Threshold selection ===

// treeArgs selects a tree either by explicit threshold or by target ratio.
type treeArgs struct {
	pathArgs
	Ratio     *float64 `json:"ratio"`
	Threshold *float64 `json:"threshold"`
}

func (a *treeArgs) validate() error {
	if a.Threshold != nil && *a.Threshold < 0 {
		return fmt.Errorf("%w: threshold must not be negative", errInvalidArgs)
	}
	if a.Ratio != nil && (*a.Ratio <= 0 || *a.Ratio > 1) {
		return fmt.Errorf("%w: ratio must be in (0, 1]", errInvalidArgs)
	}
	return nil
}

// selection reports how a tree's threshold was chosen.
type selection struct {
	Threshold  float64 `json:"threshold"`
	Ratio      float64 `json:"ratio,omitempty"`
	Target     int     `json:"target,omitempty"`
	Iterations int     `json:"iterations,omitempty"`
}

// resolveThreshold honours an explicit threshold, otherwise calibrates for
// the ratio.
func (s *Server) resolveThreshold(buf *imaging.Buffer, a *treeArgs) (selection, error) {
	if a.Threshold != nil {
		return selection{Threshold: *a.Threshold}, nil
	}
	if a.Ratio == nil {
		return selection{}, fmt.Errorf("%w: either ratio or threshold is required", errInvalidArgs)
	}

	target := quadtree.TargetLeaves(buf.Pixels(), *a.Ratio)
	cal, err := s.calibrator().Calibrate(buf, target)
	if err != nil {
		return selection{}, fmt.Errorf("failed to calibrate ratio %g: %w", *a.Ratio, err)
	}
	return selection{
		Threshold:  cal.Threshold,
		Ratio:      *a.Ratio,
		Target:     target,
		Iterations: cal.Iterations,
	}, nil
}

// === Compression ===

type compressArgs struct {
	treeArgs
	ShowTree     bool   `json:"show_tree"`
	OutlineColor string `json:"outline_color"`
}

func (a *compressArgs) options() (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()
	opts.ShowTree = a.ShowTree
	if a.OutlineColor != "" {
		c, err := imaging.ParseHex(a.OutlineColor)
		if err != nil {
			return opts, fmt.Errorf("%w: %v", errInvalidArgs, err)
		}
		opts.OutlineColor = c
	}
	return opts, nil
}

// CompressResult is returned by quadtree_compress.
type CompressResult struct {
	selection
	Leaves      int     `json:"leaves"`
	Pixels      int     `json:"pixels"`
	Achieved    float64 `json:"achieved_ratio"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	ImageBase64 string  `json:"image_base64"`

	Quality *imaging.Difference `json:"quality"`
}

func (s *Server) handleCompress(args json.RawMessage) (interface{}, error) {
	var a compressArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	opts, err := a.options()
	if err != nil {
		return nil, err
	}

	buf, err := s.cache.LoadSquare(a.Path)
	if err != nil {
		return nil, err
	}
	sel, err := s.resolveThreshold(buf, &a.treeArgs)
	if err != nil {
		return nil, err
	}

	tree := quadtree.New(buf, sel.Threshold)
	out := tree.Render()
	quality, err := imaging.Compare(buf, out)
	if err != nil {
		return nil, err
	}
	if opts.ShowTree {
		tree.DrawOutlineColor(out, opts.OutlineColor)
	}
	encoded, err := imaging.EncodePNGBase64(out)
	if err != nil {
		return nil, err
	}

	res := &CompressResult{
		selection:   sel,
		Leaves:      tree.CountLeaves(),
		Pixels:      buf.Pixels(),
		Width:       out.Width(),
		Height:      out.Height(),
		ImageBase64: encoded,
		Quality:     quality,
	}
	if res.Pixels > 0 {
		res.Achieved = float64(res.Leaves) / float64(res.Pixels)
	}
	return res, nil
}

// CalibrateResult describes one calibrated ratio.
type CalibrateResult struct {
	quadtree.Calibration
	Ratio    float64 `json:"ratio"`
	Achieved float64 `json:"achieved_ratio"`
}

func (s *Server) handleCalibrate(args json.RawMessage) (interface{}, error) {
	var a treeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	a.Threshold = nil
	if err := a.validate(); err != nil {
		return nil, err
	}

	buf, err := s.cache.LoadSquare(a.Path)
	if err != nil {
		return nil, err
	}

	ratios := pipeline.Levels
	if a.Ratio != nil {
		ratios = []float64{*a.Ratio}
	}

	results := make([]CalibrateResult, 0, len(ratios))
	for _, ratio := range ratios {
		target := quadtree.TargetLeaves(buf.Pixels(), ratio)
		cal, err := s.calibrator().Calibrate(buf, target)
		if err != nil {
			return nil, fmt.Errorf("failed to calibrate ratio %g: %w", ratio, err)
		}
		results = append(results, CalibrateResult{
			Calibration: cal,
			Ratio:       ratio,
			Achieved:    float64(cal.Leaves) / float64(buf.Pixels()),
		})
	}

	if a.Ratio != nil {
		return results[0], nil
	}
	return map[string]interface{}{"levels": results}, nil
}

type sweepArgs struct {
	pathArgs
	Output       string `json:"output"`
	Format       string `json:"format"`
	Workers      int    `json:"workers"`
	ShowTree     bool   `json:"show_tree"`
	OutlineColor string `json:"outline_color"`
}

// SweepLevel is one written level of quadtree_sweep.
type SweepLevel struct {
	pipeline.LevelResult
	Error string `json:"error,omitempty"`
}

func (s *Server) handleSweep(args json.RawMessage) (interface{}, error) {
	var a sweepArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Output == "" {
		return nil, fmt.Errorf("%w: output is required", errInvalidArgs)
	}

	ca := compressArgs{ShowTree: a.ShowTree, OutlineColor: a.OutlineColor}
	opts, err := ca.options()
	if err != nil {
		return nil, err
	}
	if a.Format != "" {
		opts.Ext = "." + strings.TrimPrefix(strings.ToLower(a.Format), ".")
	}
	if !imaging.SupportedExtension(strings.TrimSuffix(opts.Ext, ".zst")) {
		return nil, fmt.Errorf("%w: unsupported format %q", errInvalidArgs, a.Format)
	}
	if a.Workers > 0 {
		opts.Workers = a.Workers
	}
	opts.Calibrator = s.calibrator()

	buf, err := s.cache.LoadSquare(a.Path)
	if err != nil {
		return nil, err
	}

	results := pipeline.Compress(buf, a.Output, opts, nil)
	levels := make([]SweepLevel, len(results))
	for i, r := range results {
		levels[i] = SweepLevel{LevelResult: r}
		if r.Err != nil {
			levels[i].Error = r.Err.Error()
		}
	}
	return map[string]interface{}{
		"width":  buf.Width(),
		"height": buf.Height(),
		"levels": levels,
	}, nil
}

// === Edge Detection ===

// EdgeDetectResult is returned by quadtree_edge_detect.
type EdgeDetectResult struct {
	pipeline.EdgeResult
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
}

func (s *Server) handleEdgeDetect(args json.RawMessage) (interface{}, error) {
	var a compressArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	a.Ratio = nil
	if err := a.validate(); err != nil {
		return nil, err
	}
	threshold := pipeline.EdgeThreshold
	if a.Threshold != nil {
		threshold = *a.Threshold
	}
	opts, err := a.options()
	if err != nil {
		return nil, err
	}

	buf, err := s.cache.LoadSquare(a.Path)
	if err != nil {
		return nil, err
	}

	res, out := pipeline.EdgeImage(buf, threshold, opts)
	encoded, err := imaging.EncodePNGBase64(out)
	if err != nil {
		return nil, err
	}
	return &EdgeDetectResult{
		EdgeResult:  res,
		Width:       out.Width(),
		Height:      out.Height(),
		ImageBase64: encoded,
	}, nil
}

// === Analysis ===

type statsArgs struct {
	treeArgs
	Count int `json:"count"`
}

// StatsResult is returned by quadtree_stats.
type StatsResult struct {
	selection
	quadtree.Stats
	DominantColors []quadtree.ColorShare `json:"dominant_colors"`
}

func (s *Server) handleStats(args json.RawMessage) (interface{}, error) {
	var a statsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	if a.Count <= 0 {
		a.Count = 5
	}

	buf, err := s.cache.LoadSquare(a.Path)
	if err != nil {
		return nil, err
	}
	sel, err := s.resolveThreshold(buf, &a.treeArgs)
	if err != nil {
		return nil, err
	}

	tree := quadtree.New(buf, sel.Threshold)
	return &StatsResult{
		selection:      sel,
		Stats:          tree.Stats(),
		DominantColors: tree.DominantColors(a.Count),
	}, nil
}
