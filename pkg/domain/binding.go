package domain

import (
	"maps"
	"slices"
)

// ServiceInstance is one platform binding: a named instance of a backend
// service together with its label, tags and raw credentials.
//
// A ServiceInstance is immutable. Accessors return copies so callers cannot
// alter the instance they were handed.
type ServiceInstance struct {
	name        string
	label       string
	tags        []string
	credentials map[string]string
}

// NewServiceInstance builds a frozen instance. Duplicate tags are dropped,
// keeping the first occurrence.
func NewServiceInstance(name, label string, tags []string, credentials map[string]string) ServiceInstance {
	b := NewServiceInstanceBuilder(label)
	b.Name(name)
	for _, tag := range tags {
		b.Tag(tag)
	}
	for key, value := range credentials {
		b.Credential(key, value)
	}
	return b.Build()
}

// Name returns the binding name.
func (s ServiceInstance) Name() string { return s.name }

// Label returns the service type the binding was listed under.
func (s ServiceInstance) Label() string { return s.label }

// Tags returns the binding tags in declaration order.
func (s ServiceInstance) Tags() []string { return slices.Clone(s.tags) }

// HasTag reports whether tag is present, compared case-sensitively.
func (s ServiceInstance) HasTag(tag string) bool { return slices.Contains(s.tags, tag) }

// Credentials returns a copy of the raw credential map.
func (s ServiceInstance) Credentials() map[string]string { return maps.Clone(s.credentials) }

// Credential returns a single raw credential value, or "" when absent.
func (s ServiceInstance) Credential(key string) string { return s.credentials[key] }

// ServiceInstanceBuilder accumulates fields while a binding is being read.
type ServiceInstanceBuilder struct {
	name        string
	hasName     bool
	label       string
	tags        []string
	credentials map[string]string
}

// NewServiceInstanceBuilder starts a builder for a binding listed under label.
func NewServiceInstanceBuilder(label string) *ServiceInstanceBuilder {
	return &ServiceInstanceBuilder{label: label}
}

// Name sets the binding name.
func (b *ServiceInstanceBuilder) Name(name string) *ServiceInstanceBuilder {
	b.name = name
	b.hasName = name != ""
	return b
}

// Tag appends a tag unless it is already present.
func (b *ServiceInstanceBuilder) Tag(tag string) *ServiceInstanceBuilder {
	if !slices.Contains(b.tags, tag) {
		b.tags = append(b.tags, tag)
	}
	return b
}

// Credential records one credential value.
func (b *ServiceInstanceBuilder) Credential(key, value string) *ServiceInstanceBuilder {
	if b.credentials == nil {
		b.credentials = make(map[string]string)
	}
	b.credentials[key] = value
	return b
}

// HasName reports whether a non-empty name was recorded.
func (b *ServiceInstanceBuilder) HasName() bool { return b.hasName }

// Build freezes the accumulated fields into a ServiceInstance. The builder
// may be discarded afterwards; later changes do not affect the result.
func (b *ServiceInstanceBuilder) Build() ServiceInstance {
	credentials := maps.Clone(b.credentials)
	if credentials == nil {
		credentials = map[string]string{}
	}
	return ServiceInstance{
		name:        b.name,
		label:       b.label,
		tags:        slices.Clone(b.tags),
		credentials: credentials,
	}
}

// SelectionCriteria describes which bindings a backend accepts and in which
// order it prefers them.
type SelectionCriteria struct {
	// CandidateLabels lists accepted labels, most preferred first. Empty means
	// any label in encounter order.
	CandidateLabels []string
	// RequiredTags must all be present on an instance. Empty means no
	// requirement.
	RequiredTags []string
}

// Application describes the running application as reported by the platform.
type Application struct {
	Name          string
	ID            string
	SpaceName     string
	SpaceID       string
	Organization  string
	OrgID         string
	InstanceID    string
	InstanceIndex int
	HasIndex      bool
}
