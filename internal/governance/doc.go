// Package governance evaluates a graph against the architecture governance
// rules and summarises the result as governance debt.
//
// Evaluation is a pure function of (view, rule table, policy). It never
// mutates the graph and never blocks; deciding whether debt blocks a
// mutation is the gate's job.
//
// Rule codes:
//
//	G101-G105  mandatory fields, ownership and containment
//	G201-G205  relationship rules (G205 is always a warning)
//	G301       relationships that fail re-validation against the table
//	G401       lifecycle tags, when coverage is Both
package governance
