package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// CheckHealth verifies that the Ollama server at baseURL is reachable and
// that every required model is available locally. Model names match with or
// without a tag suffix, so "nomic-embed-text" accepts "nomic-embed-text:latest".
func CheckHealth(ctx context.Context, baseURL string, models ...string) error {
	client := &http.Client{Timeout: 10 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama is not accessible at %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check failed with status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	var missing []string
	for _, model := range models {
		if !hasModel(tags, model) {
			missing = append(missing, model)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing models: %s (pull them with 'ollama pull <model>')",
			strings.Join(missing, ", "))
	}

	return nil
}

func hasModel(tags tagsResponse, model string) bool {
	for _, m := range tags.Models {
		if m.Name == model || strings.HasPrefix(m.Name, model+":") {
			return true
		}
	}
	return false
}
