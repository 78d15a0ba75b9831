package main

import (
	"encoding/json"
	"fmt"

	"github.com/orgkb/orgkb"
)

// Run executes the report command.
func (c *ReportCmd) Run(deps *Dependencies) error {
	stored, err := deps.Knowledge.LastRun(deps.Ctx)
	if err != nil {
		if orgkb.ErrorCode(err) == orgkb.ENOTFOUND {
			fmt.Fprintln(deps.Stdout, "No runs recorded. Use 'orgkb ingest' to process pages.")
			return nil
		}
		fmt.Fprintf(deps.Stderr, "error: %s\n", orgkb.ErrorMessage(err))
		return err
	}

	var report orgkb.RunReport
	if err := json.Unmarshal([]byte(stored), &report); err != nil {
		return fmt.Errorf("stored report is corrupt: %w", err)
	}

	printRunReport(deps.Stdout, &report)
	return nil
}
