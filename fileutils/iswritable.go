// Package fileutils regroupe les petits tests sur le système de fichiers
// partagés par la configuration et le cache de pochettes.
package fileutils

import (
	"fmt"
	"os"
	"path/filepath"
)

// IsWriteable indique si path peut être écrit : le fichier lui-même s'il
// existe, sinon son répertoire parent.
func IsWriteable(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir() && info.Mode().Perm()&0200 != 0
	}
	if !os.IsNotExist(err) {
		return false
	}

	dirInfo, err := os.Stat(filepath.Dir(path))
	if err != nil {
		return false
	}
	return dirInfo.IsDir() && dirInfo.Mode().Perm()&0200 != 0
}

// EnsureDir crée dir au besoin et vérifie qu'il est bien un répertoire.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
