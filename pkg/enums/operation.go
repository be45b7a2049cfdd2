package enums

import "fmt"

// Operation represents a gated action against the event journal.
type Operation string

const (
	OperationPublish    Operation = "publish"
	OperationQuery      Operation = "query"
	OperationAdminister Operation = "administer"
)

var validOperations = []Operation{
	OperationPublish,
	OperationQuery,
	OperationAdminister,
}

// String implements fmt.Stringer.
func (o Operation) String() string {
	return string(o)
}

// IsValid reports whether the value is a known Operation.
func (o Operation) IsValid() bool {
	for _, candidate := range validOperations {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOperation converts raw input into an Operation.
func ParseOperation(value string) (Operation, error) {
	for _, candidate := range validOperations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid operation %q", value)
}
