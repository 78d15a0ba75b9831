package main

import (
	"fmt"
	"strings"

	"github.com/orgkb/orgkb"
)

// Run executes the entities command.
func (c *EntitiesCmd) Run(deps *Dependencies) error {
	entities, err := deps.Entities.FindEntities(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", orgkb.ErrorMessage(err))
		return err
	}

	if len(entities) == 0 {
		fmt.Fprintln(deps.Stdout, "No entities cached. Use 'orgkb sync' to load them.")
		return nil
	}

	for _, e := range entities {
		contact := strings.Join(append(append([]string{}, e.Emails...), e.Phones...), ", ")
		fmt.Fprintf(deps.Stdout, "%s  %s  %s  %s\n", e.ID, e.CanonicalName, e.UnitID, contact)
	}

	return nil
}
