package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"committed-cart/models"
)

// ErrProjectNotFound is returned by project lookups when no recipient is
// registered under the requested vote option index.
var ErrProjectNotFound = errors.New("project not found")

type projectKey struct {
	registry common.Address
	index    uint64
}

// MemoryRegistry is an in-memory project lookup keyed by registry address and
// recipient index.
type MemoryRegistry struct {
	projects map[projectKey]*models.Project
	mu       sync.RWMutex
	config   Config
}

type Config struct {
	ProjectsFilePath string `json:"projects_file_path"`
}

// projectsFile is the on-disk layout read by LoadProjectsFromFile.
type projectsFile struct {
	RegistryAddress common.Address    `json:"registry_address"`
	Projects        []*models.Project `json:"projects"`
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry(config Config) *MemoryRegistry {
	return &MemoryRegistry{
		projects: make(map[projectKey]*models.Project),
		config:   config,
	}
}

// LoadProjectsFromFile reads the configured projects file and adds every
// project in it. Existing entries for other registries are kept. Nothing is
// added unless every entry in the file is valid.
func (m *MemoryRegistry) LoadProjectsFromFile() error {
	data, err := os.ReadFile(m.config.ProjectsFilePath)
	if err != nil {
		return fmt.Errorf("failed to read projects file: %w", err)
	}

	var file projectsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal projects file: %w", err)
	}

	loaded := make(map[projectKey]*models.Project, len(file.Projects))
	for i, project := range file.Projects {
		if err := validateProject(project); err != nil {
			return fmt.Errorf("invalid project entry %d: %w", i, err)
		}
		p := *project
		loaded[projectKey{file.RegistryAddress, p.Index}] = &p
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, project := range loaded {
		m.projects[key] = project
	}
	return nil
}

func validateProject(p *models.Project) error {
	if p == nil {
		return errors.New("empty project entry")
	}
	if p.ID == "" {
		return errors.New("project id is required")
	}
	if p.Name == "" {
		return errors.New("project name is required")
	}
	return nil
}

// ProjectByIndex returns a copy of the project registered at index.
func (m *MemoryRegistry) ProjectByIndex(_ context.Context, registryAddress common.Address, index uint64) (*models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	project, exists := m.projects[projectKey{registryAddress, index}]
	if !exists {
		return nil, ErrProjectNotFound
	}

	projectCopy := *project
	return &projectCopy, nil
}

// AddProject registers project under its own Index.
func (m *MemoryRegistry) AddProject(registryAddress common.Address, project *models.Project) error {
	if err := validateProject(project); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := *project
	m.projects[projectKey{registryAddress, p.Index}] = &p
	return nil
}

func (m *MemoryRegistry) RemoveProject(registryAddress common.Address, index uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.projects, projectKey{registryAddress, index})
}

// Len returns the number of registered projects across all registries.
func (m *MemoryRegistry) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.projects)
}
