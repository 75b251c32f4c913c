package registry

import (
	"fmt"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/dotnet-test-explorer/dte/types"
)

// Registry owns the discovered node tree and the per-node contexts. It is
// the lookup-by-id service the orchestrator reconciles against; the
// orchestrator mutates each context's Event field but node identity
// lifecycle stays here.
type Registry struct {
	config   Config
	root     *types.NodeContext
	contexts map[string]*types.NodeContext
	mu       sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log          log.Logger
	ManifestFile string
}

// NewRegistry creates a registry from a test manifest file
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.ManifestFile == "" {
		return nil, fmt.Errorf("test manifest file is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{config: cfg}
	if err := r.Reload(); err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	cfg.Log.Debug("Registry loaded", "len(contexts)", len(r.contexts))
	return r, nil
}

// Reload re-reads the manifest and rebuilds the tree. Contexts are replaced
// wholesale; callers must not reload while a run is in flight.
func (r *Registry) Reload() error {
	manifest, err := loadManifest(r.config.ManifestFile)
	if err != nil {
		return err
	}

	root, contexts, err := buildTree(manifest)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.root = root
	r.contexts = contexts
	return nil
}

// Get returns the context for the given node identifier, or nil if unknown
func (r *Registry) Get(id string) *types.NodeContext {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.contexts[id]
}

// Root returns the synthetic root context; its node's children are the
// workspace's top-level suites in manifest order.
func (r *Registry) Root() *types.NodeContext {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.root
}

// Manifest is the on-disk description of the discovered test tree
type Manifest struct {
	Suites []SuiteConfig `yaml:"suites"`
}

// SuiteConfig describes a suite node. Source is the path to the built test
// assembly; nested suites and tests inherit it when they omit their own.
type SuiteConfig struct {
	ID     string        `yaml:"id"`
	Source string        `yaml:"source,omitempty"`
	Suites []SuiteConfig `yaml:"suites,omitempty"`
	Tests  []TestConfig  `yaml:"tests,omitempty"`
}

// TestConfig describes a leaf test node
type TestConfig struct {
	ID     string `yaml:"id"`
	Source string `yaml:"source,omitempty"`
}

// loadManifest loads a test manifest from a file
func loadManifest(path string) (*Manifest, error) {
	log.Debug("Reading test manifest file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest file: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest file: %w", err)
	}
	return &m, nil
}

// buildTree converts a manifest into the node tree plus the id lookup map
func buildTree(m *Manifest) (*types.NodeContext, map[string]*types.NodeContext, error) {
	rootNode := &types.TestNode{
		ID:   types.RootID,
		Kind: types.NodeKindSuite,
	}
	contexts := map[string]*types.NodeContext{}

	for i := range m.Suites {
		child, err := buildSuite(&m.Suites[i], "", contexts)
		if err != nil {
			return nil, nil, err
		}
		rootNode.Children = append(rootNode.Children, child)
	}

	rootCtx := &types.NodeContext{Node: rootNode}
	if err := register(contexts, rootCtx); err != nil {
		return nil, nil, err
	}
	return rootCtx, contexts, nil
}

func buildSuite(cfg *SuiteConfig, inheritedSource string, contexts map[string]*types.NodeContext) (*types.TestNode, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("suite with empty id in manifest")
	}

	source := cfg.Source
	if source == "" {
		source = inheritedSource
	}
	if source == "" {
		return nil, fmt.Errorf("suite %s has no source assembly and none to inherit", cfg.ID)
	}

	node := &types.TestNode{
		ID:     cfg.ID,
		Kind:   types.NodeKindSuite,
		Source: source,
	}

	for i := range cfg.Suites {
		child, err := buildSuite(&cfg.Suites[i], source, contexts)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	for _, tc := range cfg.Tests {
		if tc.ID == "" {
			return nil, fmt.Errorf("test with empty id under suite %s", cfg.ID)
		}
		testSource := tc.Source
		if testSource == "" {
			testSource = source
		}
		child := &types.TestNode{
			ID:     tc.ID,
			Kind:   types.NodeKindTest,
			Source: testSource,
		}
		if err := register(contexts, &types.NodeContext{Node: child}); err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	if err := register(contexts, &types.NodeContext{Node: node}); err != nil {
		return nil, err
	}
	return node, nil
}

func register(contexts map[string]*types.NodeContext, ctx *types.NodeContext) error {
	if _, exists := contexts[ctx.Node.ID]; exists {
		return fmt.Errorf("duplicate node id %q in manifest", ctx.Node.ID)
	}
	contexts[ctx.Node.ID] = ctx
	return nil
}
