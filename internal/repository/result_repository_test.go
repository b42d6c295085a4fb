package repository

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"NewsDesk/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultRowMatchesColumns(t *testing.T) {
	done := time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC)
	r := &models.AnalysisPipelineResult{
		NewsID: "n-1",
		Strategy: models.StrategistOutput{
			InformationNature: models.InformationNature{Classification: models.ClassNewInformation, Confidence: 0.8},
			MarketImpactLogic: models.MarketImpactLogic{ShouldMoveMarkets: true},
		},
		Analysis: models.ExecutorOutput{
			ExecutiveSummary: models.ExecutiveSummary{OverallSentiment: models.SentimentBullish},
			Confidence:       models.Confidence{Overall: 7},
		},
		QualityMetrics: models.QualityMetrics{
			OverallQuality: 0.82,
			Warnings:       []models.Warning{{Stage: models.StageExecutor, Code: "x"}},
		},
		Timing: models.Timing{StrategistMs: 1200, TotalMs: 3400},
		Meta:   models.ResultMeta{ModelTier: "standard", CompletedAt: done},
	}

	row, err := resultRow(r)
	require.NoError(t, err)
	assert.Len(t, row, len(strings.Split(resultColumns, ",")))
	assert.Equal(t, strings.Count(resultPlaceholders, "?"), len(row))

	assert.Equal(t, done, row[0])
	assert.Equal(t, "n-1", row[1])
	assert.Equal(t, "new_information", row[5])
	assert.Equal(t, uint8(1), row[6])
	assert.Equal(t, "bullish", row[8])
	assert.Equal(t, uint16(1), row[13])
	assert.Equal(t, uint32(3400), row[17])

	var warnings []models.Warning
	require.NoError(t, json.Unmarshal([]byte(row[20].(string)), &warnings))
	assert.Equal(t, "x", warnings[0].Code)
}

func TestResultsSchemaUsesTable(t *testing.T) {
	stmts := ResultsSchema("db.analysis_results")
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS db.analysis_results")
	for _, col := range strings.Split(resultColumns, ",") {
		assert.Contains(t, stmts[0], strings.TrimSpace(col)+" ")
	}
}
