package main

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed defaults
var defaultFiles embed.FS

// initConfig creates the config directory tree and extracts the
// embedded starter config and dictionary, skipping files that already
// exist so a re-run never clobbers user edits.
func initConfig(dir string) error {
	return fs.WalkDir(defaultFiles, "defaults", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel("defaults", path)
		dst := filepath.Join(dir, rel)

		if d.IsDir() {
			if err := os.MkdirAll(dst, 0755); err != nil {
				return fmt.Errorf("create %s: %w", dst, err)
			}
			return nil
		}

		if _, err := os.Stat(dst); err == nil {
			fmt.Printf("  skip %s (already exists)\n", rel)
			return nil
		}

		data, err := defaultFiles.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read embedded %s: %w", path, err)
		}
		if err := os.WriteFile(dst, data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", dst, err)
		}
		fmt.Printf("  created %s\n", rel)
		return nil
	})
}
