package declarative

import (
	"bytes"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"authzkit/internal/domain"
)

// LoadOptions configures YAML loading behavior.
type LoadOptions struct {
	AllowUnknownFields bool
}

// LoadFile reads and validates a policy file.
func LoadFile(path string) (*PolicySpec, error) {
	return LoadFileWithOptions(path, LoadOptions{})
}

// LoadFileWithOptions reads a policy file using caller-provided loading
// options.
func LoadFileWithOptions(path string, opts LoadOptions) (*PolicySpec, error) {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified config files
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc PolicyDoc
	if opts.AllowUnknownFields {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if doc.APIVersion != SupportedAPIVersion {
		return nil, fmt.Errorf("%s: unsupported apiVersion %q (expected %q)", path, doc.APIVersion, SupportedAPIVersion)
	}
	if doc.Kind != KindNamePolicy {
		return nil, fmt.Errorf("%s: unexpected kind %q (expected %q)", path, doc.Kind, KindNamePolicy)
	}

	if err := validate(&doc.Spec); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &doc.Spec, nil
}

func validate(spec *PolicySpec) error {
	for _, name := range spec.Operations {
		if err := domain.ValidateOperationName(name); err != nil {
			return err
		}
	}

	for _, g := range spec.UsersGroups {
		if g.Name == "" {
			return fmt.Errorf("users group name is required")
		}
	}
	for _, g := range spec.EntitiesGroups {
		if g.Name == "" {
			return fmt.Errorf("entities group name is required")
		}
	}

	for _, m := range spec.Memberships {
		if m.User == "" || m.Group == "" {
			return fmt.Errorf("membership needs both user and group")
		}
	}

	for i, p := range spec.Permissions {
		if err := domain.ValidateOperationName(p.Operation); err != nil {
			return fmt.Errorf("permission %d: %w", i, err)
		}
		if (p.User == "") == (p.Group == "") {
			return fmt.Errorf("permission %d: exactly one of user or group is required", i)
		}
		if p.Entity != "" && p.EntitiesGroup != "" {
			return fmt.Errorf("permission %d: entity and entities_group are mutually exclusive", i)
		}
		if p.Entity != "" {
			if _, err := uuid.Parse(p.Entity); err != nil {
				return fmt.Errorf("permission %d: entity %q is not a UUID", i, p.Entity)
			}
			if p.EntityType == "" {
				return fmt.Errorf("permission %d: entity_type is required with entity", i)
			}
		}
	}
	return nil
}
