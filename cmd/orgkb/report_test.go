package main_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgkb/orgkb"
	main "github.com/orgkb/orgkb/cmd/orgkb"
)

func TestReportCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("prints the most recent run", func(t *testing.T) {
		t.Parallel()

		deps, stdout, _ := testDeps(t)

		report := &orgkb.RunReport{
			RunID:      "run-1",
			StartedAt:  time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
			FinishedAt: time.Date(2026, 8, 30, 10, 5, 0, 0, time.UTC),
			Pages: []orgkb.PageReport{
				{PageID: "kontakt", Anchors: 4, Regions: 2, FactsInserted: 3, FactsConflicted: 1,
					Conflicts: []orgkb.FactResult{{Key: "contact|per-1|email", Outcome: orgkb.OutcomeConflict, Prior: "stary@gmina.pl"}}},
			},
		}
		data, err := json.Marshal(report)
		require.NoError(t, err)
		require.NoError(t, deps.Knowledge.InsertRun(context.Background(), report, string(data)))

		cmd := &main.ReportCmd{}
		require.NoError(t, cmd.Run(deps))

		output := stdout.String()
		assert.Contains(t, output, "run-1")
		assert.Contains(t, output, "1 pages, 0 failed")
		assert.Contains(t, output, "facts: 3 inserted")
		assert.Contains(t, output, "contact|per-1|email")
		assert.Contains(t, output, "stary@gmina.pl")
	})

	t.Run("shows helpful message when no runs exist", func(t *testing.T) {
		t.Parallel()

		deps, stdout, _ := testDeps(t)

		cmd := &main.ReportCmd{}
		require.NoError(t, cmd.Run(deps))

		assert.Contains(t, stdout.String(), "No runs recorded")
	})
}
