package backend

import (
	"errors"
	"fmt"

	"kpidash/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	cfg := Config{
		Source:              SourceType(appConfig.DataSource),
		DatasetPath:         appConfig.DatasetPath,
		DataDirectory:       appConfig.DataDir,
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleSheetRange:    appConfig.GoogleSheetRange,
		Baseline:            BaselineMode(appConfig.BaselineMode),
		HistoryDBPath:       appConfig.HistoryDBPath,
		HistoryLabel:        appConfig.HistoryLabel,
		RandomSeed:          appConfig.RandomSeed,
	}
	return cfg, cfg.Validate()
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Source.IsValid() {
		return fmt.Errorf("invalid source type: %s", c.Source)
	}
	if !c.Baseline.IsValid() {
		return fmt.Errorf("invalid baseline mode: %s", c.Baseline)
	}

	switch c.Source {
	case FileSource:
		if c.DatasetPath == "" {
			return errors.New("dataset path is required for file source")
		}
	case SheetsSource:
		if c.GoogleSpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for sheets source")
		}
	}

	if c.Baseline == HistoryBaseline && c.HistoryDBPath == "" {
		return errors.New("history database path is required for history baselines")
	}
	return nil
}

// SourceTypeStrings returns all valid source type strings
func SourceTypeStrings() []string {
	return []string{SyntheticSource.String(), FileSource.String(), SheetsSource.String()}
}
