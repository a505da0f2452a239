// Package workspace derives a process's workspace identity from its
// execution context.
//
// A workspace is nominal: it is the first path component under the configured
// root directory. A process whose working directory is /root/workspace-3/src
// under root /root belongs to workspace "workspace-3"; a process outside the
// root belongs to no workspace and must never be isolated.
package workspace

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/portmux/portmux/pkg/api"
)

// Resolver maps the calling process's context to a workspace name.
type Resolver struct {
	// Root is the directory workspaces live under. Empty disables
	// resolution entirely.
	Root string
}

// FromEnv builds a Resolver from PORTMUX_WORKSPACE_ROOT.
func FromEnv() *Resolver {
	return &Resolver{Root: os.Getenv(api.EnvWorkspaceRoot)}
}

// Resolve returns the current workspace name. It re-reads the environment
// and the working directory on every call: shells chdir after startup, and a
// stale answer here would silently route a process into the wrong address
// space.
func (r *Resolver) Resolve() (string, bool) {
	if name := os.Getenv(api.EnvWorkspace); name != "" {
		return filepath.Base(name), true
	}
	if r == nil || r.Root == "" {
		return "", false
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	return Under(r.Root, wd)
}

// Under returns the workspace name for dir relative to root: the path
// component immediately below root. dir equal to root, outside root, or
// relative yields no workspace.
func Under(root, dir string) (string, bool) {
	root = filepath.Clean(root)
	dir = filepath.Clean(dir)
	if root == "" || root == "." || !filepath.IsAbs(root) || !filepath.IsAbs(dir) {
		return "", false
	}

	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}

	name, _, _ := strings.Cut(rel, string(filepath.Separator))
	if name == "" {
		return "", false
	}
	return name, true
}
