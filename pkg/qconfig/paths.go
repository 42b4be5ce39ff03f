package qconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome replaces a leading "~" or "~/" with the user's home directory.
// "~user" forms are left untouched.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func (c *Config) expandPaths() error {
	targets := []*string{
		&c.SMR.Binary,
		&c.OutputRoot,
		&c.WorkingDir,
		&c.Reports.Dir,
		&c.Local.LogDir,
		&c.K8s.Kubeconfig,
	}
	for i := range c.Outcomes {
		targets = append(targets, &c.Outcomes[i])
	}
	for i := range c.Jobs {
		targets = append(targets, &c.Jobs[i].BFile, &c.Jobs[i].EQTL)
	}
	for i := range c.Docker.Mounts {
		targets = append(targets, &c.Docker.Mounts[i].Source)
	}

	for _, p := range targets {
		expanded, err := ExpandHome(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}
