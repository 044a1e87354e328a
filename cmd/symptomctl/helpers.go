package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/symptom-checker/internal/classifier"
	"github.com/ZanzyTHEbar/symptom-checker/internal/config"
	"github.com/ZanzyTHEbar/symptom-checker/internal/features"
	"github.com/ZanzyTHEbar/symptom-checker/internal/prediction"
)

// loadService builds a prediction service from the configured model, local or remote
func loadService(ctx context.Context) (*prediction.Service, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	var model classifier.Classifier
	if cfg.Model.Remote.BaseURL != "" {
		model, err = classifier.NewRemote(ctx, cfg.Model.Remote)
	} else {
		model, err = classifier.LoadFile(cfg.Model.Path)
	}
	if err != nil {
		return nil, err
	}

	return prediction.NewService(features.NewDefaultEncoder(), model, nil, nil, prediction.Options{
		ModelVersion: cfg.Model.Version,
	}), nil
}

// flagName turns a question name into a flag, e.g. "Blood Pressure" -> blood-pressure
func flagName(question string) string {
	return strings.ToLower(strings.ReplaceAll(question, " ", "-"))
}
