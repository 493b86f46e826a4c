package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/ldpcsim/internal/compute"
	"github.com/san-kum/ldpcsim/internal/config"
	"github.com/san-kum/ldpcsim/internal/ldpc"
)

type Registry struct {
	rules    map[string]ldpc.Rule
	policies map[string]ldpc.Policy
	backends map[string]func(config.DeviceConfig) (compute.Backend, error)
}

func NewRegistry() *Registry {
	r := &Registry{
		rules:    make(map[string]ldpc.Rule),
		policies: make(map[string]ldpc.Policy),
		backends: make(map[string]func(config.DeviceConfig) (compute.Backend, error)),
	}

	for _, rule := range []ldpc.Rule{ldpc.RuleSumProduct, ldpc.RuleMinSum} {
		r.rules[rule.String()] = rule
	}
	for _, policy := range []ldpc.Policy{ldpc.PolicyMessage, ldpc.PolicyCodeword} {
		r.policies[policy.String()] = policy
	}

	for _, name := range []string{"auto", "cpu", "cuda"} {
		r.backends[name] = func(d config.DeviceConfig) (compute.Backend, error) {
			return compute.Open(name,
				compute.WithWorkers(d.Workers),
				compute.WithMemoryLimit(d.MemoryLimit),
				compute.WithValidation(d.Validate))
		}
	}

	return r
}

func (r *Registry) GetRule(name string) (ldpc.Rule, error) {
	rule, ok := r.rules[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown decoder rule: %s", ldpc.ErrConfiguration, name)
	}
	return rule, nil
}

func (r *Registry) GetPolicy(name string) (ldpc.Policy, error) {
	policy, ok := r.policies[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown compare policy: %s", ldpc.ErrConfiguration, name)
	}
	return policy, nil
}

func (r *Registry) GetBackend(d config.DeviceConfig) (compute.Backend, error) {
	name := d.Backend
	if name == "" {
		name = "auto"
	}
	fn, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown backend: %s", ldpc.ErrDevice, name)
	}
	return fn(d)
}

func (r *Registry) ListRules() []string    { return sortedKeys(r.rules) }
func (r *Registry) ListPolicies() []string { return sortedKeys(r.policies) }

func (r *Registry) ListBackends() []string {
	return sortedKeys(r.backends)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
