// Package commission implements the commission resolution engine: layered
// rate overrides with validity windows, membership-tier discounts, the
// priority-chain resolver that decides which rate applies to a sold line
// item, and the checksummed audit records that make every decision
// replayable.
//
// The resolver itself is pure: it evaluates a line item against a
// point-in-time Snapshot of the override store, so all storage reads happen
// before resolution logic runs and Product/Vendor/Category/Global lookups
// can never observe interleaved writes.
package commission
