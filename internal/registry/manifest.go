package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"classd/pkg/types"
)

// defaultThreshold is applied when a multi-label manifest omits one.
// Matches the export collaborator's training default.
const defaultThreshold = 0.5

// LoadDir scans a directory for *.json model manifests produced by the
// training/export collaborator and builds descriptors from them. Artifact and
// tokenizer paths in a manifest are resolved relative to the manifest's
// directory unless absolute.
func LoadDir(dir string) ([]types.ModelDescriptor, error) {
	base, err := expandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var descs []types.ModelDescriptor
	for _, name := range names {
		p := filepath.Join(abs, name)
		d, err := loadManifest(p)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", name, err)
		}
		descs = append(descs, d)
	}
	return descs, nil
}

func loadManifest(path string) (types.ModelDescriptor, error) {
	var d types.ModelDescriptor
	b, err := os.ReadFile(path)
	if err != nil {
		return d, err
	}
	if err := json.Unmarshal(b, &d); err != nil {
		return d, fmt.Errorf("parse: %w", err)
	}
	dir := filepath.Dir(path)
	d.Artifact = resolvePath(dir, d.Artifact)
	d.Tokenizer = resolvePath(dir, d.Tokenizer)
	if d.Scheme.Kind == types.SchemeMultiLabel && d.Scheme.Threshold == 0 {
		d.Scheme.Threshold = defaultThreshold
	}
	if err := validateDescriptor(d); err != nil {
		return d, err
	}
	return d, nil
}

func validateDescriptor(d types.ModelDescriptor) error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("missing model id")
	}
	switch d.Backend {
	case types.BackendLinearPipeline, types.BackendNeuralClassifier:
	default:
		return fmt.Errorf("model %s: unknown backend kind %q", d.ID, d.Backend)
	}
	switch d.Scheme.Kind {
	case types.SchemeSingleLabel:
	case types.SchemeMultiLabel:
		if d.Scheme.Threshold <= 0 || d.Scheme.Threshold >= 1 {
			return fmt.Errorf("model %s: multi-label threshold must be in (0,1), got %v", d.ID, d.Scheme.Threshold)
		}
	default:
		return fmt.Errorf("model %s: unknown scheme kind %q", d.ID, d.Scheme.Kind)
	}
	if len(d.Scheme.Labels) == 0 {
		return fmt.Errorf("model %s: empty label scheme", d.ID)
	}
	seen := make(map[string]struct{}, len(d.Scheme.Labels))
	for _, l := range d.Scheme.Labels {
		if strings.TrimSpace(l) == "" {
			return fmt.Errorf("model %s: blank label name", d.ID)
		}
		if _, dup := seen[l]; dup {
			return fmt.Errorf("model %s: duplicate label %q", d.ID, l)
		}
		seen[l] = struct{}{}
	}
	if strings.TrimSpace(d.Artifact) == "" {
		return fmt.Errorf("model %s: missing artifact path", d.ID)
	}
	if d.Backend == types.BackendNeuralClassifier && strings.TrimSpace(d.Tokenizer) == "" {
		return fmt.Errorf("model %s: neural backend requires a tokenizer path", d.ID)
	}
	// An encoded sequence always carries [CLS] and [SEP]; anything shorter
	// than 2 cannot hold them. Zero means "backend default".
	if d.MaxTokens != 0 && d.MaxTokens < 2 {
		return fmt.Errorf("model %s: max_tokens must be at least 2, got %d", d.ID, d.MaxTokens)
	}
	return nil
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/models/manifests
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
