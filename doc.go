// Package statement reads broker statement exports and turns them into a
// single chronological ledger of account events.
//
// A statement is read in four steps:
//   - Parsing: the export is loaded entirely and split into rows, each tagged
//     with its section and the header in force (package sections).
//   - Adaptation: rows are recognized by a dialect, a table of bilingual
//     section and column names, and keyed by canonical field names (package
//     dialect).
//   - Normalization: rows become typed events, cash movements and trades, with
//     amounts parsed as decimals and dates parsed with the dialect layouts.
//   - Reconciliation: a foreign dividend, its withholding tax and the currency
//     conversion that followed are re-linked into one consolidated dividend
//     expressed in the account base currency.
//
// Files are processed independently and merged into a Ledger, which drops
// the events repeated by overlapping exports. Conditions that do not prevent
// building the ledger, like a row that cannot be classified, are reported as
// Diagnostics.
//
// This package serves as the engine of the `stmt` command-line tool.
package statement
