// Package hclcfg loads dataset, policy and connection declarations from HCL
// files and translates them into the engine's format-agnostic model types.
package hclcfg

import (
	"fmt"

	"github.com/vk/privgraph/internal/connectors"
	"github.com/vk/privgraph/internal/graph"
	"github.com/vk/privgraph/internal/policy"
)

// Model is the fully translated configuration: everything the engine needs
// to validate and execute a request.
type Model struct {
	Datasets    []graph.Dataset
	Policies    map[string]policy.Policy
	Connections []connectors.Config
}

// Policy returns the named policy, or the only one when name is empty.
func (m *Model) Policy(name string) (policy.Policy, error) {
	if name == "" && len(m.Policies) == 1 {
		for _, p := range m.Policies {
			return p, nil
		}
	}
	if p, ok := m.Policies[name]; ok {
		return p, nil
	}
	return policy.Policy{}, fmt.Errorf("policy %q not found in configuration", name)
}

// --- raw HCL block shapes (gohcl) ---

type fileRoot struct {
	Connections []*connectionBlock `hcl:"connection,block"`
	Datasets    []*datasetBlock    `hcl:"dataset,block"`
	Policies    []*policyBlock     `hcl:"policy,block"`
}

type connectionBlock struct {
	Key     string            `hcl:"key,label"`
	Kind    string            `hcl:"kind"`
	Secrets map[string]string `hcl:"secrets,optional"`
}

type datasetBlock struct {
	Name        string             `hcl:"name,label"`
	Connection  string             `hcl:"connection"`
	Collections []*collectionBlock `hcl:"collection,block"`
}

type collectionBlock struct {
	Name   string        `hcl:"name,label"`
	Fields []*fieldBlock `hcl:"field,block"`
}

type fieldBlock struct {
	Name           string            `hcl:"name,label"`
	PrimaryKey     bool              `hcl:"primary_key,optional"`
	Identity       string            `hcl:"identity,optional"`
	DataCategories []string          `hcl:"data_categories,optional"`
	References     []*referenceBlock `hcl:"reference,block"`
}

type referenceBlock struct {
	Target    string `hcl:"target"`
	Direction string `hcl:"direction"`
}

type policyBlock struct {
	Name  string       `hcl:"name,label"`
	Rules []*ruleBlock `hcl:"rule,block"`
}

type ruleBlock struct {
	Name           string        `hcl:"name,label"`
	Action         string        `hcl:"action"`
	DataCategories []string      `hcl:"data_categories"`
	Masking        *maskingBlock `hcl:"masking,block"`
}

type maskingBlock struct {
	Strategy string            `hcl:"strategy"`
	Params   map[string]string `hcl:"params,optional"`
}
