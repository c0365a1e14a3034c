package debug

import (
	"context"
	"encoding/json"
	"log/slog"

	"influnest/internal/models"
)

// PrintCampaign prints the campaign record in JSON format
func PrintCampaign(campaign *models.Campaign) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	jsonData, err := json.MarshalIndent(campaign, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal campaign to JSON", "error", err)
		return
	}

	slog.Debug("Campaign details", "json", string(jsonData))
}

// PrintEvent prints a lifecycle event in JSON format
func PrintEvent(event *models.CampaignEvent) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	jsonData, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal event to JSON", "error", err)
		return
	}

	slog.Debug("Event details", "json", string(jsonData))
}
