package main_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgkb/orgkb"
	main "github.com/orgkb/orgkb/cmd/orgkb"
)

func TestEntitiesCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("lists cached entities with contact data", func(t *testing.T) {
		t.Parallel()

		deps, stdout, _ := testDeps(t)
		require.NoError(t, deps.Entities.UpsertEntities(context.Background(), []*orgkb.Entity{
			{
				ID:            "per-1",
				CanonicalName: "Jan Kowalski",
				Emails:        []string{"jan.kowalski@gmina.pl"},
				Phones:        []string{"583471234"},
				UnitID:        "unit-1",
			},
		}))

		cmd := &main.EntitiesCmd{}
		require.NoError(t, cmd.Run(deps))

		output := stdout.String()
		assert.Contains(t, output, "per-1")
		assert.Contains(t, output, "Jan Kowalski")
		assert.Contains(t, output, "unit-1")
		assert.Contains(t, output, "jan.kowalski@gmina.pl")
		assert.Contains(t, output, "583471234")
	})

	t.Run("shows helpful message when the cache is empty", func(t *testing.T) {
		t.Parallel()

		deps, stdout, _ := testDeps(t)

		cmd := &main.EntitiesCmd{}
		require.NoError(t, cmd.Run(deps))

		assert.Contains(t, stdout.String(), "No entities cached")
	})
}
