package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/AdamBeresnev/op-tournament/internal/events"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// seedFile is the import format of the seed command. Ratings default to 1500.
type seedFile struct {
	Events []struct {
		Name      string `yaml:"name"`
		EventType string `yaml:"event_type"`
	} `yaml:"events"`
	Teams []struct {
		Name   string   `yaml:"name"`
		Rating *float64 `yaml:"rating"`
	} `yaml:"teams"`
}

const defaultRating = 1500

func loadSeedFile(path string) (*seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var data seedFile
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal seed file: %w", err)
	}
	for i, e := range data.Events {
		if e.Name == "" {
			return nil, fmt.Errorf("event %d has no name", i+1)
		}
	}
	for i, t := range data.Teams {
		if t.Name == "" {
			return nil, fmt.Errorf("team %d has no name", i+1)
		}
	}
	return &data, nil
}

func importSeed(ctx context.Context, eventStore *store.EventStore, data *seedFile, logger *slog.Logger) error {
	for _, e := range data.Events {
		eventType := e.EventType
		if eventType == "" {
			eventType = events.TournamentType
		}
		event := &events.Event{ID: uuid.New(), Name: e.Name, EventType: eventType}
		if err := eventStore.CreateEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to create event %q: %w", e.Name, err)
		}
		logger.InfoContext(ctx, "event created", "event_id", event.ID, "name", event.Name, "event_type", event.EventType)
	}

	teams := make([]events.Team, len(data.Teams))
	for i, t := range data.Teams {
		rating := float64(defaultRating)
		if t.Rating != nil {
			rating = *t.Rating
		}
		teams[i] = events.Team{ID: uuid.New(), Name: t.Name, Rating: rating}
	}
	if err := eventStore.CreateTeams(ctx, teams); err != nil {
		return fmt.Errorf("failed to create teams: %w", err)
	}
	for _, t := range teams {
		logger.InfoContext(ctx, "team created", "team_id", t.ID, "name", t.Name, "rating", t.Rating)
	}
	return nil
}
