// Package models defines the core domain models for divvy.
//
// # Models
//
//   - User: a registered person, looked up by email for group invitations
//   - Group: a set of members who share expenses
//   - Expense: an immutable shared expense with its per-member shares
//   - ExpenseShare: one member's portion of an expense
//   - Settlement: an append-only direct payment between two members
//   - PairBalance / GroupBalances: derived net balances, never stored
//
// # Design principles
//
//  1. Monetary amounts are decimal.Decimal, never float64. All arithmetic
//     happens at 2-decimal precision with an epsilon of one minor unit.
//  2. Expenses and settlements are immutable once committed. Corrections are
//     modeled as new entries, so balances are always recomputable from history.
//  3. Relationships use ID strings rather than pointers to avoid circular
//     references; stores resolve them.
package models
