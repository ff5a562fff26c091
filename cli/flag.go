package cli

// StringFlag is a definition of a command flag expected to be parsed as a
// string.
//
// - implements cli.Flag
type StringFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    string

	// EnvVars are the environment variables the value is read from when the
	// flag is not set.
	EnvVars []string
}

// Flag implements cli.Flag.
func (flag StringFlag) Flag() {}

// IntFlag is a definition of a command flag expected to be parsed as an
// integer.
//
// - implements cli.Flag
type IntFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    int
}

// Flag implements cli.Flag.
func (flag IntFlag) Flag() {}

// PathFlag is a definition of a command flag expected to be parsed as a path
// of the file system.
//
// - implements cli.Flag
type PathFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    string
	EnvVars  []string
}

// Flag implements cli.Flag.
func (flag PathFlag) Flag() {}
