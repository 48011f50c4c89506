package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	imglib "github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ironsheep/card-detect-mcp/internal/detection"
	"github.com/ironsheep/card-detect-mcp/internal/imaging"
)

// maxErrorBody bounds how much of an error response is kept in APIError.
const maxErrorBody = 4 << 10

// Client calls a hosted card-detection model over HTTP.
//
// The client performs exactly one request per Detect call. It never retries:
// the pipeline falls back to local detectors instead.
type Client struct {
	baseURL string
	apiKey  string
	config  *Config
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a new vision client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		config:  cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger.With(zap.String("component", "vision.client")),
	}, nil
}

// detectRequest is the body of POST /detect.
type detectRequest struct {
	Image             string  `json:"image"` // data URL, JPEG
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	Filename          string  `json:"filename,omitempty"`
	TargetAspectRatio float64 `json:"target_aspect_ratio"`
}

// detectResponse is the body returned by POST /detect.
//
// Coordinates refer to the uploaded image. When Normalized is set they are
// fractions of its width and height instead of pixels.
type detectResponse struct {
	Detections []struct {
		X           float64 `json:"x"`
		Y           float64 `json:"y"`
		Width       float64 `json:"width"`
		Height      float64 `json:"height"`
		Confidence  float64 `json:"confidence"`
		AspectRatio float64 `json:"aspectRatio"`
	} `json:"detections"`
	Normalized bool `json:"normalized"`
}

// Detect uploads a downscaled JPEG of v and returns the service's detections
// as candidates in source-image coordinates.
//
// Candidates carry Method ai-vision, the service's confidence, and zero for
// every local signal. Non-2xx responses return an *APIError.
func (c *Client) Detect(ctx context.Context, v imaging.View, filename string) ([]detection.Candidate, error) {
	if v.Width() <= 0 || v.Height() <= 0 {
		return nil, ErrEmptyImage
	}
	start := time.Now()

	upload, scale := v.Downscaled(c.config.MaxUploadSide)
	dataURL, err := encodeJPEGDataURL(upload, c.config.JPEGQuality)
	if err != nil {
		return nil, err
	}

	sent := upload.Bounds()
	payload := detectRequest{
		Image:             dataURL,
		Width:             sent.Dx(),
		Height:            sent.Dy(),
		Filename:          filename,
		TargetAspectRatio: detection.TargetAspect,
	}

	resp, err := c.post(ctx, "/detect", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseError(resp)
	}

	var result detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "vision: decode response")
	}

	cands := make([]detection.Candidate, 0, len(result.Detections))
	for _, d := range result.Detections {
		x, y, w, h := d.X, d.Y, d.Width, d.Height
		// A negative size would be flipped into a different box further down.
		if !(w > 0 && h > 0) {
			c.logger.Debug("vision detection without positive size dropped",
				zap.Float64("width", w),
				zap.Float64("height", h),
			)
			continue
		}
		if result.Normalized {
			x *= float64(sent.Dx())
			w *= float64(sent.Dx())
			y *= float64(sent.Dy())
			h *= float64(sent.Dy())
		}
		bounds := detection.Rect{
			X:      int(math.Round(x * scale.X)),
			Y:      int(math.Round(y * scale.Y)),
			Width:  int(math.Round(w * scale.X)),
			Height: int(math.Round(h * scale.Y)),
		}
		cand := detection.NewCandidate(bounds, detection.MethodAIVision)
		cand.Confidence = d.Confidence
		cands = append(cands, cand)
	}

	c.logger.Debug("vision detect complete",
		zap.String("filename", filename),
		zap.Int("detections", len(cands)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return cands, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "vision: marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "vision: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "vision: request failed")
	}
	return resp, nil
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}

// encodeJPEGDataURL encodes img as a base64 JPEG data URL.
func encodeJPEGDataURL(img image.Image, quality int) (string, error) {
	var buf bytes.Buffer
	if err := imglib.Encode(&buf, img, imglib.JPEG, imglib.JPEGQuality(quality)); err != nil {
		return "", errors.Wrap(err, "vision: encode image")
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
