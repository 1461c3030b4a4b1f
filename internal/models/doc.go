// Package models defines the core domain models for the trip expense engine.
//
// # Models
//
//   - Participant: who a split row, payment or reimbursement refers to.
//     Either a single traveler or a group (a couple, a family, or a solo
//     traveler acting as a group of one).
//   - Roster: the travelers and groups of a trip, as provided by the trip
//     application.
//   - Expense: a shared cost with its split and participation policy.
//   - SplitRow: what one participant owes for one expense.
//   - Payment: money actually paid towards an expense (append-only).
//   - Reimbursement: a computed transfer between two participants.
//
// # Design Principles
//
// 1. **Integer money**: all amounts are int64 minor units (cents).
// 2. **Uniform participants**: split and settlement code never branches on
// traveler vs group, only roster lookups do.
// 3. **Avoid circular references**: relationships are ID strings, never pointers.
package models
