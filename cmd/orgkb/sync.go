package main

import (
	"fmt"

	"github.com/orgkb/orgkb"
)

// Run executes the sync command.
func (c *SyncCmd) Run(deps *Dependencies) error {
	entities, err := deps.Reference.FindEntities(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", orgkb.ErrorMessage(err))
		return err
	}
	units, err := deps.Reference.FindUnits(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", orgkb.ErrorMessage(err))
		return err
	}

	if err := deps.Entities.UpsertUnits(deps.Ctx, units); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", orgkb.ErrorMessage(err))
		return err
	}
	if err := deps.Entities.UpsertEntities(deps.Ctx, entities); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", orgkb.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Synced %d entities and %d units\n", len(entities), len(units))
	return nil
}
