package wallet

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Built-in policy names.
const (
	PolicyPhantomFirst  = "phantom-first"
	PolicyMetaMaskFirst = "metamask-first"
)

// Policy is a named, ordered wallet preference list. Earlier entries win.
type Policy struct {
	Name  string `yaml:"name"`
	Order []Type `yaml:"order"`
}

// PhantomFirst prefers Phantom, then Coinbase, MetaMask, Rabby, WalletConnect
// and finally the provider's embedded wallet.
func PhantomFirst() Policy {
	return Policy{
		Name: PolicyPhantomFirst,
		Order: []Type{
			TypePhantom,
			TypeCoinbase,
			TypeMetaMask,
			TypeRabby,
			TypeWalletConnect,
			TypePrivyEmbedded,
		},
	}
}

// MetaMaskFirst prefers MetaMask, then Coinbase, Phantom and the embedded wallet.
func MetaMaskFirst() Policy {
	return Policy{
		Name: PolicyMetaMaskFirst,
		Order: []Type{
			TypeMetaMask,
			TypeCoinbase,
			TypePhantom,
			TypePrivyEmbedded,
		},
	}
}

// Rank returns the position of t in the policy. Types not listed rank
// after every listed type.
func (p Policy) Rank(t Type) int {
	for i, candidate := range p.Order {
		if candidate == t {
			return i
		}
	}
	return len(p.Order)
}

// Validate checks that the policy names only known types, each at most once.
func (p Policy) Validate() error {
	if len(p.Order) == 0 {
		return errors.New("wallet policy order cannot be empty")
	}

	seen := make(map[Type]bool, len(p.Order))
	for _, t := range p.Order {
		if _, ok := ParseType(string(t)); !ok || t == TypeNone {
			return fmt.Errorf("unknown wallet type %q in policy %q", t, p.Name)
		}
		if seen[t] {
			return fmt.Errorf("wallet type %q listed twice in policy %q", t, p.Name)
		}
		seen[t] = true
	}

	return nil
}

// PolicyByName returns a built-in policy.
func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PolicyPhantomFirst:
		return PhantomFirst(), nil
	case PolicyMetaMaskFirst:
		return MetaMaskFirst(), nil
	default:
		return Policy{}, fmt.Errorf("unknown wallet policy %q", name)
	}
}

// ParseOrder builds a custom policy from a comma-separated list of types.
func ParseOrder(order string) (Policy, error) {
	policy := Policy{Name: "custom"}

	for _, part := range strings.Split(order, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, ok := ParseType(part)
		if !ok {
			return Policy{}, fmt.Errorf("unknown wallet type %q", part)
		}
		policy.Order = append(policy.Order, t)
	}

	err := policy.Validate()
	if err != nil {
		return Policy{}, err
	}

	return policy, nil
}

type policyFile struct {
	Default  string   `yaml:"default"`
	Policies []Policy `yaml:"policies"`
}

// LoadPolicyFile reads a YAML file of named policies and returns the one
// named by name, or by the file's default when name is empty.
//
//	default: rabby-first
//	policies:
//	  - name: rabby-first
//	    order: [rabby, metamask, privy_embedded]
func LoadPolicyFile(path, name string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read wallet policy file: %w", err)
	}

	var file policyFile
	err = yaml.Unmarshal(data, &file)
	if err != nil {
		return Policy{}, fmt.Errorf("parse wallet policy file: %w", err)
	}

	if name == "" {
		name = file.Default
	}

	for _, p := range file.Policies {
		if p.Name != name {
			continue
		}
		err = p.Validate()
		if err != nil {
			return Policy{}, err
		}
		return p, nil
	}

	// Fall back to the built-ins so a file can add policies without redefining them.
	policy, err := PolicyByName(name)
	if err != nil {
		return Policy{}, fmt.Errorf("policy %q not found in %s", name, path)
	}

	return policy, nil
}

// ResolvePolicy picks the policy from an explicit order, a policy file or a
// built-in name, in that order of precedence.
func ResolvePolicy(name, order, file string) (Policy, error) {
	if strings.TrimSpace(order) != "" {
		return ParseOrder(order)
	}

	if file != "" {
		return LoadPolicyFile(file, name)
	}

	return PolicyByName(name)
}
