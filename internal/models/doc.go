// Package models defines the persisted records of a shared-expense ledger.
//
// # Models
//
//   - User: Registered account; members, payers and participants are user IDs
//   - Group: A set of members sharing expenses in one currency
//   - Expense: One payment made by a member, with its resolved shares
//   - ExpenseShare: One participant's share of an expense, in cents
//   - Settlement: A recorded payment from one member to another
//
// # Design Principles
//
// 1. **Integer money**: every amount is money.Cents; floats never reach storage
// 2. **Shares are derived**: an expense's shares come from the split calculator
// and are replaced wholesale when the expense changes
// 3. **Avoid circular references**: Use ID strings instead of pointers for relationships
// 4. **Balances are not stored**: they are recomputed from expenses and settlements
package models
