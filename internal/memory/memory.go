// Package memory manages the shared instruction files the execution engine
// picks up from its working directory: one global file at the groups root,
// visible to every run, and one per group folder. Only the main group may
// rewrite the global file; each group owns its own.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the instruction file the execution engine loads from its
// working directory.
const FileName = "CLAUDE.md"

const defaultGlobalContent = "# Shade Global Memory\n\n" +
	"This file is shared across all groups. The main group can edit it.\n"

// Manager resolves and maintains memory files under the groups root.
type Manager struct {
	groupsDir string
}

// NewManager returns a manager rooted at the groups directory.
func NewManager(groupsDir string) *Manager {
	return &Manager{groupsDir: groupsDir}
}

// GlobalPath returns the shared memory file at the groups root.
func (m *Manager) GlobalPath() string {
	return filepath.Join(m.groupsDir, FileName)
}

// GroupPath returns the memory file inside a group's folder.
func (m *Manager) GroupPath(groupFolder string) string {
	return filepath.Join(m.groupsDir, groupFolder, FileName)
}

// Read returns the file content, or an empty string with no error when the
// file does not exist.
func (m *Manager) Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read memory file: %w", err)
	}
	return string(data), nil
}

// Write replaces the file content, creating parent directories as needed.
func (m *Manager) Write(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create memory dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write memory file: %w", err)
	}
	return nil
}

// EnsureGroupDir creates the group's working directory and returns its path.
func (m *Manager) EnsureGroupDir(groupFolder string) (string, error) {
	dir := filepath.Join(m.groupsDir, groupFolder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create group dir: %w", err)
	}
	return dir, nil
}

// InitGlobal seeds the global memory file if it does not exist yet. Existing
// content is never overwritten.
func (m *Manager) InitGlobal() error {
	path := m.GlobalPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat global memory: %w", err)
	}
	return m.Write(path, defaultGlobalContent)
}

// CanWriteGlobal reports whether a group may rewrite the global memory file.
func CanWriteGlobal(isMainGroup bool) bool {
	return isMainGroup
}

// CanWriteGroup reports whether the requesting group may rewrite the target
// group's memory file.
func CanWriteGroup(groupFolder, requestingGroupFolder string) bool {
	return groupFolder == requestingGroupFolder
}
