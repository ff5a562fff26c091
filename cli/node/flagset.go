package node

// FlagSet is a map-based flag set implementation. It allows one to run an
// action with flags that do not come from the command line, for instance in
// tests.
//
// - implements cli.Flags
type FlagSet map[string]interface{}

// String implements cli.Flags. It returns the string associated with the flag
// name if it is set, otherwise it returns an empty string.
func (fset FlagSet) String(name string) string {
	switch v := fset[name].(type) {
	case string:
		return v
	default:
		return ""
	}
}

// Path implements cli.Flags. It returns the path associated with the flag name
// if it is set, otherwise it returns an empty string.
func (fset FlagSet) Path(name string) string {
	return fset.String(name)
}

// Int implements cli.Flags. It returns the integer associated with the flag if
// it is set, otherwise it returns zero.
func (fset FlagSet) Int(name string) int {
	switch v := fset[name].(type) {
	case int:
		return v
	default:
		return 0
	}
}

// IsSet implements cli.Flags. It returns true if the flag has a value.
func (fset FlagSet) IsSet(name string) bool {
	_, found := fset[name]
	return found
}
