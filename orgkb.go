// Package orgkb extracts structured knowledge about people, organizational
// units, and administrative procedures from loosely structured HTML pages,
// using an authoritative employee/unit database as ground truth. The output
// feeds a downstream question-answering system, so the pipeline prefers
// dropping an uncertain match over guessing.
//
// The core is the anchor-region-filter pipeline: scan a parsed page for
// spans that reference a known entity (name, email, phone) or a known
// administrative procedure, merge nearby matches into per-entity regions,
// classify candidates with accept/drop/ambiguous verdicts, and reconcile
// accepted facts against the persisted knowledge store as an explicit diff.
//
// This package contains domain types, interfaces, and the pure pipeline
// algorithms following Ben Johnson's Standard Package Layout.
// Implementations live in subdirectories named after their primary
// dependency (e.g., sqlite/, goquery/, gemini/).
package orgkb
