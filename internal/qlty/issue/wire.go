package issue

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// wireSchema is generated once, lazily, from the Issue struct itself and
// reused for every validation call. Using the struct as the source of
// truth keeps the schema and the Go type from drifting apart.
var (
	wireSchemaOnce     sync.Once
	wireSchemaResolved *jsonschema.Resolved
	wireSchemaErr      error
)

func resolvedWireSchema() (*jsonschema.Resolved, error) {
	wireSchemaOnce.Do(func() {
		schema, err := jsonschema.For[Issue](nil)
		if err != nil {
			wireSchemaErr = fmt.Errorf("issue: building wire schema: %w", err)
			return
		}
		resolved, err := schema.Resolve(nil)
		if err != nil {
			wireSchemaErr = fmt.Errorf("issue: resolving wire schema: %w", err)
			return
		}
		wireSchemaResolved = resolved
	})
	return wireSchemaResolved, wireSchemaErr
}

// ValidateWire checks that an issue, once marshaled to its camelCase JSON
// wire form, satisfies the generated schema. The IssueCache and the
// executor do not call it; it is available to callers that want to check
// a record before writing it out.
func ValidateWire(i *Issue) error {
	resolved, err := resolvedWireSchema()
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(i)
	if err != nil {
		return fmt.Errorf("issue: marshaling for wire validation: %w", err)
	}

	var instance any
	if err := json.Unmarshal(encoded, &instance); err != nil {
		return fmt.Errorf("issue: decoding for wire validation: %w", err)
	}

	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("issue: %s/%s failed wire validation: %w", i.Tool, i.RuleKey, err)
	}
	return nil
}
