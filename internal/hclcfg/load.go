package hclcfg

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/privgraph/internal/connectors"
	"github.com/vk/privgraph/internal/ctxlog"
	"github.com/vk/privgraph/internal/fieldref"
	"github.com/vk/privgraph/internal/graph"
	"github.com/vk/privgraph/internal/policy"
)

// Load parses every .hcl file at path (a file or a directory walked
// recursively) and translates the merged declarations into a Model.
func Load(ctx context.Context, path string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	files, err := findFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl files found at %s", path)
	}
	logger.Debug("loading configuration", "path", path, "files", len(files))

	parser := hclparse.NewParser()
	evalCtx := evalContext()
	merged := &fileRoot{}
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parse %s: %w", file, diags)
		}
		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, evalCtx, &root); diags.HasErrors() {
			return nil, fmt.Errorf("decode %s: %w", file, diags)
		}
		merged.Connections = append(merged.Connections, root.Connections...)
		merged.Datasets = append(merged.Datasets, root.Datasets...)
		merged.Policies = append(merged.Policies, root.Policies...)
	}

	model, err := translate(merged)
	if err != nil {
		return nil, err
	}
	logger.Info("configuration loaded",
		"datasets", len(model.Datasets),
		"policies", len(model.Policies),
		"connections", len(model.Connections))
	return model, nil
}

// evalContext exposes the process environment to HCL expressions as the
// "env" object, so secrets never need to be written into config files:
//
//	secrets = { password = env.PGPASSWORD }
func evalContext() *hcl.EvalContext {
	env := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		if name, value, ok := strings.Cut(kv, "="); ok && name != "" {
			env[name] = cty.StringVal(value)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(env)},
	}
}

func findFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, ".hcl") {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

func translate(root *fileRoot) (*Model, error) {
	model := &Model{Policies: make(map[string]policy.Policy)}

	for _, cb := range root.Connections {
		kind, err := connectors.ParseKind(cb.Kind)
		if err != nil {
			return nil, fmt.Errorf("connection %q: %w", cb.Key, err)
		}
		model.Connections = append(model.Connections, connectors.Config{
			Key:     cb.Key,
			Kind:    kind,
			Secrets: cb.Secrets,
		})
	}

	for _, db := range root.Datasets {
		ds := graph.Dataset{Name: db.Name, ConnectionKey: db.Connection}
		for _, cb := range db.Collections {
			coll := graph.Collection{Name: cb.Name}
			for _, fb := range cb.Fields {
				field := graph.Field{
					Name:           fb.Name,
					PrimaryKey:     fb.PrimaryKey,
					Identity:       fb.Identity,
					DataCategories: fb.DataCategories,
				}
				for _, rb := range fb.References {
					remote, err := fieldref.ParseFieldAddress(rb.Target, db.Name)
					if err != nil {
						return nil, fmt.Errorf("dataset %q collection %q field %q: %w", db.Name, cb.Name, fb.Name, err)
					}
					direction, err := fieldref.ParseDirection(rb.Direction)
					if err != nil {
						return nil, fmt.Errorf("dataset %q collection %q field %q: %w", db.Name, cb.Name, fb.Name, err)
					}
					field.References = append(field.References, fieldref.Reference{
						Remote:    remote,
						Direction: direction,
					})
				}
				coll.Fields = append(coll.Fields, field)
			}
			ds.Collections = append(ds.Collections, coll)
		}
		model.Datasets = append(model.Datasets, ds)
	}

	for _, pb := range root.Policies {
		p := policy.Policy{Name: pb.Name}
		for _, rb := range pb.Rules {
			rule := policy.Rule{
				Name:       rb.Name,
				Action:     policy.Action(rb.Action),
				Categories: rb.DataCategories,
			}
			if rb.Masking != nil {
				strategy, err := policy.NewMaskingStrategy(rb.Masking.Strategy, rb.Masking.Params)
				if err != nil {
					return nil, fmt.Errorf("policy %q rule %q: %w", pb.Name, rb.Name, err)
				}
				rule.Masking = strategy
			}
			p.Rules = append(p.Rules, rule)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		model.Policies[pb.Name] = p
	}

	return model, nil
}
