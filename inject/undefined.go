package inject

// undefinedType is the type of the Undefined singleton. Keeping the type
// unexported guarantees the value is never constructed twice; comparisons are
// by identity through IsUndefined.
type undefinedType struct{}

func (undefinedType) String() string { return "UNDEFINED" }

// Undefined marks a value as "not provided", as opposed to a provided nil.
// Registry lookups return it so that callers can tell an absent dependency
// apart from a dependency that resolved to nil.
var Undefined = &undefinedType{}

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v any) bool {
	u, ok := v.(*undefinedType)
	return ok && u == Undefined
}
