package model

import "fmt"

// SchemaError reports a raw record that cannot become an entity: a required
// key is missing or a field value is outside its fixed range.
type SchemaError struct {
	Entity string
	Key    string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s record: key %q: %s", e.Entity, e.Key, e.Reason)
	}
	return fmt.Sprintf("%s record: missing required key %q", e.Entity, e.Key)
}

// ParseError reports a fixed-format field whose raw value does not match the
// expected format. Malformed timestamps must fail loudly, not default.
type ParseError struct {
	Entity string
	Field  string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s record: cannot parse %s %q: %v", e.Entity, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
