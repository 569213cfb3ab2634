// Package conv provides checked integer conversions for values that end up
// in fixed-width on-disk fields (block sizes, row counts, row ids).
//
// Every helper returns an error wrapping ErrOverflow instead of silently
// truncating. Conversions that are provably safe by construction (loop
// indices, bounded counters) use direct casts instead.
package conv
