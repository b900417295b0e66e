//-------------------------------------------------------------------------
//
// pgEdge Ask Gateway
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package ask

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pgEdge/pgedge-ask-gateway/internal/answer"
	"github.com/pgEdge/pgedge-ask-gateway/internal/config"
	"github.com/pgEdge/pgedge-ask-gateway/internal/nuclia"
)

// Manager owns the long-lived knowledge base clients and the orchestrator
// bound to them.
type Manager struct {
	mu             sync.RWMutex
	knowledgeBases map[string]*KnowledgeBase
	order          []string
	orchestrator   *Orchestrator
	logger         *slog.Logger
}

// KnowledgeBase is a configured knowledge base with its client initialized.
type KnowledgeBase struct {
	name         string
	description  string
	mode         Mode
	topK         int
	client       *nuclia.Client
	orchestrator *Orchestrator
}

// ManagerConfig contains configuration for creating a Manager.
type ManagerConfig struct {
	Config *config.Config
	Logger *slog.Logger

	// KeyLoader resolves service account keys; nil uses the process
	// environment.
	KeyLoader *config.APIKeyLoader

	// ClientOptions are applied to every knowledge base client.
	ClientOptions []nuclia.ClientOption
}

// NewManager creates a new knowledge base manager from configuration.
func NewManager(cfg *config.Config) (*Manager, error) {
	return NewManagerWithLogger(ManagerConfig{
		Config: cfg,
		Logger: slog.Default(),
	})
}

// NewManagerWithLogger creates a new knowledge base manager with a custom
// logger.
func NewManagerWithLogger(cfg ManagerConfig) (*Manager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	keyLoader := cfg.KeyLoader
	if keyLoader == nil {
		keyLoader = config.NewAPIKeyLoader()
	}

	apiKeys, err := keyLoader.LoadKeys(cfg.Config.KnowledgeBases)
	if err != nil {
		return nil, fmt.Errorf("failed to load API keys: %w", err)
	}

	m := &Manager{
		knowledgeBases: make(map[string]*KnowledgeBase),
		logger:         logger,
	}

	bindings := make(map[Target]Binding, len(cfg.Config.KnowledgeBases))
	for _, kbCfg := range cfg.Config.KnowledgeBases {
		kb := newKnowledgeBase(kbCfg, apiKeys[kbCfg.Name], cfg.ClientOptions)
		m.knowledgeBases[kbCfg.Name] = kb
		m.order = append(m.order, kbCfg.Name)

		bindings[Target(kbCfg.Name)] = Binding{
			Client: kb.client,
			Mode:   kb.mode,
			TopK:   kb.topK,
		}

		logger.Info("knowledge base configured",
			"name", kbCfg.Name,
			"knowledge_box_id", kbCfg.KnowledgeBoxID,
			"mode", string(kb.mode),
			"top_k", kb.topK,
		)
	}

	m.orchestrator = NewOrchestrator(OrchestratorConfig{
		Bindings: bindings,
		Logger:   logger,
	})
	for _, kb := range m.knowledgeBases {
		kb.orchestrator = m.orchestrator
	}

	return m, nil
}

// newKnowledgeBase creates the client for a single knowledge base.
func newKnowledgeBase(
	kbCfg config.KnowledgeBase,
	apiKey string,
	clientOpts []nuclia.ClientOption,
) *KnowledgeBase {
	opts := append([]nuclia.ClientOption{}, clientOpts...)
	if kbCfg.BaseURL != "" {
		opts = append(opts, nuclia.WithBaseURL(kbCfg.BaseURL))
	}

	mode := Mode(kbCfg.Mode)
	if mode == "" {
		mode = Mode(config.DefaultMode(kbCfg.Name))
	}

	topK := kbCfg.TopK
	if topK <= 0 {
		topK = nuclia.DefaultTopK
	}

	return &KnowledgeBase{
		name:        kbCfg.Name,
		description: kbCfg.Description,
		mode:        mode,
		topK:        topK,
		client:      nuclia.NewClient(kbCfg.ZoneID, kbCfg.KnowledgeBoxID, apiKey, opts...),
	}
}

// List returns information about all configured knowledge bases, in
// configuration order.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, 0, len(m.order))
	for _, name := range m.order {
		kb := m.knowledgeBases[name]
		infos = append(infos, Info{
			Name:        kb.name,
			Description: kb.description,
			Mode:        string(kb.mode),
		})
	}

	return infos
}

// Get retrieves a knowledge base by name.
func (m *Manager) Get(name string) (*KnowledgeBase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kb, ok := m.knowledgeBases[name]
	if !ok {
		return nil, ErrKnowledgeBaseNotFound
	}

	return kb, nil
}

// Ask runs an ask against the named knowledge base.
func (m *Manager) Ask(
	ctx context.Context,
	name string,
	query string,
	onUpdate UpdateFunc,
	opts ...AskOption,
) (*answer.StreamingAskResult, error) {
	kb, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return kb.Ask(ctx, query, onUpdate, opts...)
}

// Orchestrator returns the orchestrator bound to every knowledge base.
func (m *Manager) Orchestrator() *Orchestrator {
	return m.orchestrator
}

// Ask runs an ask against this knowledge base.
func (kb *KnowledgeBase) Ask(
	ctx context.Context,
	query string,
	onUpdate UpdateFunc,
	opts ...AskOption,
) (*answer.StreamingAskResult, error) {
	return kb.orchestrator.Ask(ctx, Target(kb.name), query, onUpdate, opts...)
}

// Name returns the knowledge base name.
func (kb *KnowledgeBase) Name() string {
	return kb.name
}

// Description returns the knowledge base description.
func (kb *KnowledgeBase) Description() string {
	return kb.description
}

// Mode returns the ask mode of the knowledge base.
func (kb *KnowledgeBase) Mode() Mode {
	return kb.mode
}

// TopK returns the default number of results requested.
func (kb *KnowledgeBase) TopK() int {
	return kb.topK
}

// Close releases resources associated with the knowledge base.
func (kb *KnowledgeBase) Close() {
	if kb.client != nil {
		kb.client.Close()
	}
}

// Close shuts down the manager and releases resources.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, kb := range m.knowledgeBases {
		kb.Close()
	}
	m.knowledgeBases = nil
	m.order = nil

	return nil
}
