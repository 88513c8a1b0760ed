package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dileep-u-k/function-gateway/internal/function"
)

const defaultWeatherBaseURL = "https://wttr.in"

// WeatherTool fetches the current weather from wttr.in.
type WeatherTool struct {
	httpClient *http.Client
	baseURL    string
}

var _ ToolExecutor = (*WeatherTool)(nil)

// NewWeatherTool creates the tool with a dedicated client so a slow upstream
// cannot hang a dispatch.
func NewWeatherTool() *WeatherTool {
	return &WeatherTool{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultWeatherBaseURL,
	}
}

// WithBaseURL points the tool at another wttr.in compatible server.
func (wt *WeatherTool) WithBaseURL(u string) *WeatherTool {
	wt.baseURL = strings.TrimRight(u, "/")
	return wt
}

func (wt *WeatherTool) Definition() Tool {
	return NewFunctionTool(
		"get_current_weather",
		"Get the current weather for a specific location",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"location": {
					Type:        "string",
					Description: "The city and state, e.g., San Francisco, CA or Kharagpur, India",
				},
			},
			Required: []string{"location"},
		},
	)
}

// Execute returns the one-line wttr.in report as text. The queried location
// is also reported as a side message for the conversation.
func (wt *WeatherTool) Execute(ctx context.Context, arguments function.Arguments) (function.Output, error) {
	var args struct {
		Location string `json:"location"`
	}
	if err := bindArguments(arguments, &args); err != nil {
		return function.Output{}, fmt.Errorf("invalid arguments for weather tool: %w", err)
	}
	if args.Location == "" {
		return function.Output{Result: function.TextResult("Error: Location cannot be empty.")}, nil
	}

	endpoint := fmt.Sprintf("%s/%s?format=3", wt.baseURL, url.PathEscape(strings.ReplaceAll(args.Location, " ", "+")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return function.Output{}, fmt.Errorf("failed to create weather API request: %w", err)
	}
	req.Header.Set("User-Agent", "Function-Gateway/1.0")

	resp, err := wt.httpClient.Do(req)
	if err != nil {
		return function.Output{}, fmt.Errorf("failed to call weather API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return function.Output{}, fmt.Errorf("weather API returned non-200 status: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return function.Output{}, fmt.Errorf("failed to read weather API response: %w", err)
	}

	report := strings.TrimSpace(string(body))
	if strings.Contains(report, "Unknown location") {
		return function.Output{Result: function.TextResult(
			fmt.Sprintf("I couldn't find the weather for '%s'. Please try another location.", args.Location),
		)}, nil
	}
	return function.Output{
		Result:  function.TextResult(report),
		Message: fmt.Sprintf("Looked up the weather for %s.", args.Location),
	}, nil
}
