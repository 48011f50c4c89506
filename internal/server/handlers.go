package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ironsheep/card-detect-mcp/internal/detection"
	"github.com/ironsheep/card-detect-mcp/internal/imaging"
	"github.com/ironsheep/card-detect-mcp/internal/pipeline"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "card_detect", "card_crop").
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
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	start := time.Now()
	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", zap.String("tool", params.Name), zap.Error(err))
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}
	s.logger.Debug("tool complete", zap.String("tool", params.Name), zap.Duration("elapsed", time.Since(start)))

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	// Card Detection
	case "card_detect":
		return s.handleCardDetect(ctx, args)
	case "card_crop":
		return s.handleCardCrop(args)
	case "card_overlay":
		return s.handleCardOverlay(ctx, args)

	// Tuning
	case "image_edge_detect":
		return s.handleImageEdgeDetect(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Card Detection Handlers ===

type cardDetectArgs struct {
	Path string `json:"path"`
	// UseVision defaults to true; it is a pointer so an explicit false is seen.
	UseVision *bool `json:"use_vision"`
}

// detect loads the image at a.Path and runs the pipeline over it.
func (s *Server) detect(ctx context.Context, a cardDetectArgs) (*pipeline.Result, error) {
	raster, info, err := imaging.LoadRaster(s.cache, a.Path)
	if err != nil {
		return nil, err
	}

	session := s.full
	if a.UseVision != nil && !*a.UseVision {
		session = s.local
	}

	meta := pipeline.SourceMetadata{Filename: info.Filename, ByteSize: info.FileSizeBytes}
	res, err := session.Detect(ctx, raster, meta)
	if err != nil {
		return nil, errors.Wrapf(err, "detect cards in %s", info.Filename)
	}
	return res, nil
}

func (s *Server) handleCardDetect(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a cardDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.detect(ctx, a)
}

type cardCropArgs struct {
	Path   string  `json:"path"`
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"`
}

func (s *Server) handleCardCrop(args json.RawMessage) (interface{}, error) {
	var a cardCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.Crop(img, image.Rect(a.X, a.Y, a.X+a.Width, a.Y+a.Height), a.Scale)
}

type cardOverlayArgs struct {
	cardDetectArgs
	Thickness int    `json:"thickness"`
	Color     string `json:"color"`
}

// CardOverlayResult pairs the annotated image with the candidates drawn on it.
type CardOverlayResult struct {
	*imaging.OverlayResult
	Candidates []detection.Candidate `json:"candidates"`
	// Colors holds the outline color of each candidate, as #RRGGBB.
	Colors     []string         `json:"colors"`
	MethodUsed detection.Method `json:"method_used"`
}

func (s *Server) handleCardOverlay(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a cardOverlayArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Thickness == 0 {
		a.Thickness = 3
	}
	var outline color.Color
	if a.Color != "" {
		c, err := imaging.ParseHexColor(a.Color)
		if err != nil {
			return nil, err
		}
		outline = c
	}

	res, err := s.detect(ctx, a.cardDetectArgs)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	boxes := make([]imaging.Box, len(res.Candidates))
	colors := make([]string, len(res.Candidates))
	for i, c := range res.Candidates {
		boxes[i] = imaging.Box{
			Rect:  c.Bounds.ImageRect(),
			Label: fmt.Sprintf("#%d %.2f", i+1, c.Confidence),
			Color: outline,
		}
		if outline != nil {
			colors[i] = imaging.HexColor(outline)
		} else {
			colors[i] = imaging.HexColor(imaging.RankColor(i))
		}
	}
	overlay, err := imaging.Overlay(img, boxes, a.Thickness)
	if err != nil {
		return nil, err
	}
	return &CardOverlayResult{
		OverlayResult: overlay,
		Candidates:    res.Candidates,
		Colors:        colors,
		MethodUsed:    res.Debug.MethodUsed,
	}, nil
}

// === Tuning Handlers ===

type imageEdgeDetectArgs struct {
	Path          string `json:"path"`
	ThresholdLow  int    `json:"threshold_low"`
	ThresholdHigh int    `json:"threshold_high"`
}

func (s *Server) handleImageEdgeDetect(args json.RawMessage) (interface{}, error) {
	var a imageEdgeDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.ThresholdLow == 0 {
		a.ThresholdLow = 50
	}
	if a.ThresholdHigh == 0 {
		a.ThresholdHigh = 150
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.EdgeDetect(img, a.ThresholdLow, a.ThresholdHigh)
}
