// Package server implements the MCP (Model Context Protocol) server for card
// detection.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Logs go to stderr. Supported MCP methods are initialize, tools/list,
// tools/call and ping.
//
// # Available Tools
//
// Basic Image Information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//
// Card Detection:
//   - card_detect: Run the detection pipeline and return ranked candidates
//   - card_crop: Extract a candidate region as PNG
//   - card_overlay: Draw the ranked candidates over the image
//
// Tuning:
//   - image_edge_detect: Canny edge preview of what the edge detector sees
//
// # Image Caching
//
// Images are cached by path and reused across tool calls, so card_detect
// followed by card_crop decodes the file once. The cache persists for the
// lifetime of the server process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: the Go error string
//
// card_detect only fails for unreadable files and images smaller than a card;
// every other problem degrades to fallback candidates.
//
// # Usage
//
//	srv := server.New(pipeline.New(), server.WithLogger(logger))
//	if err := srv.Run(ctx); err != nil {
//	    logger.Fatal("server failed", zap.Error(err))
//	}
package server
