package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ironsheep/card-detect-mcp/internal/config"
	"github.com/ironsheep/card-detect-mcp/internal/detection"
)

// testApp returns the app wired to buffers, with exit handling that does not
// terminate the test binary.
func testApp(stdin string) (*cli.App, *bytes.Buffer) {
	out := &bytes.Buffer{}
	app := newApp()
	app.Reader = strings.NewReader(stdin)
	app.Writer = out
	app.ErrWriter = &bytes.Buffer{}
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app, out
}

// clearEnv blanks every setting so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		config.EnvVisionURL, config.EnvVisionAPIKey, config.EnvVisionTimeout,
		config.EnvVisionMaxSide, config.EnvEnsembleTimeout, config.EnvWorkers,
		config.EnvDedupIoU, config.EnvMinConfidence, config.EnvMaxCandidates,
		config.EnvLogLevel,
	} {
		t.Setenv(config.EnvPrefix+name, "")
	}
}

func writeCardPNG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 600, 800))
	for y := 0; y < 800; y++ {
		for x := 0; x < 600; x++ {
			img.Set(x, y, color.White)
		}
	}
	for y := 150; y < 500; y++ {
		for x := 150; x < 400; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: 40, B: 90, A: 255})
		}
	}
	path := filepath.Join(dir, "card.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestDetectCommand(t *testing.T) {
	clearEnv(t)
	path := writeCardPNG(t, t.TempDir())

	app, out := testApp("")
	err := app.Run([]string{"card-detect-mcp", "--log-level", "error", "detect", "--no-vision", path})
	require.NoError(t, err)

	var got fileResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, path, got.File)
	assert.Empty(t, got.Error)
	require.NotNil(t, got.Result)
	assert.NotEmpty(t, got.Result.Candidates)
	assert.Equal(t, "card.png", got.Result.Debug.Source.Filename)
	assert.NotEqual(t, detection.Method(""), got.Result.Debug.MethodUsed)
}

func TestDetectCommand_MissingFile(t *testing.T) {
	clearEnv(t)
	missing := filepath.Join(t.TempDir(), "nope.png")

	app, out := testApp("")
	err := app.Run([]string{"card-detect-mcp", "detect", missing})
	require.Error(t, err)

	var exit cli.ExitCoder
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 1, exit.ExitCode())

	var got fileResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Nil(t, got.Result)
	assert.NotEmpty(t, got.Error)
}

func TestDetectCommand_RequiresFile(t *testing.T) {
	clearEnv(t)
	app, _ := testApp("")
	err := app.Run([]string{"card-detect-mcp", "detect"})
	require.Error(t, err)

	var exit cli.ExitCoder
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 2, exit.ExitCode())
}

func TestServeCommand(t *testing.T) {
	clearEnv(t)
	app, out := testApp(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n")

	require.NoError(t, app.Run([]string{"card-detect-mcp", "--log-level", "error"}))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["id"])
	assert.Contains(t, resp, "result")
}

func TestVersionFlag(t *testing.T) {
	app, out := testApp("")
	require.NoError(t, app.Run([]string{"card-detect-mcp", "--version"}))
	assert.Contains(t, out.String(), "card-detect-mcp "+Version)
	assert.Contains(t, out.String(), "Git commit:")
}

func TestLoadConfig_FlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvPrefix+config.EnvWorkers, "3")
	t.Setenv(config.EnvPrefix+config.EnvMaxCandidates, "7")

	var got config.Config
	app, _ := testApp("")
	app.Action = func(c *cli.Context) error {
		var err error
		got, err = loadConfig(c)
		return err
	}

	require.NoError(t, app.Run([]string{"card-detect-mcp",
		"--workers", "2",
		"--vision-timeout", "1500ms",
		"--min-confidence", "0.5",
	}))
	assert.Equal(t, 2, got.Workers)
	assert.Equal(t, 1500*time.Millisecond, got.VisionTimeout)
	assert.Equal(t, 0.5, got.MinConfidence)
	assert.Equal(t, 7, got.MaxCandidates)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("CARD_DETECT_VISION_URL=http://vision.local\n"), 0o600))
	// godotenv does not override variables that are already set.
	require.NoError(t, os.Unsetenv(config.EnvPrefix+config.EnvVisionURL))

	var got config.Config
	app, _ := testApp("")
	app.Action = func(c *cli.Context) error {
		var err error
		got, err = loadConfig(c)
		return err
	}

	require.NoError(t, app.Run([]string{"card-detect-mcp", "--env-file", envFile}))
	assert.Equal(t, "http://vision.local", got.VisionURL)
	assert.True(t, got.VisionEnabled())
	require.NoError(t, os.Unsetenv(config.EnvPrefix+config.EnvVisionURL))
}

func TestLoadConfig_MissingEnvFile(t *testing.T) {
	clearEnv(t)
	missing := filepath.Join(t.TempDir(), "absent.env")

	app, _ := testApp("")
	app.Action = func(c *cli.Context) error {
		_, err := loadConfig(c)
		return err
	}
	assert.Error(t, app.Run([]string{"card-detect-mcp", "--env-file", missing}))
}

func TestLoadConfig_InvalidFlag(t *testing.T) {
	clearEnv(t)
	app, _ := testApp("")
	app.Action = func(c *cli.Context) error {
		_, err := loadConfig(c)
		return err
	}
	assert.Error(t, app.Run([]string{"card-detect-mcp", "--min-confidence", "1.5"}))
}
