// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Sample data shipped with the repository.
var (
	articlesFixture     = filepath.Join("fixtures", "articles.yaml")
	interactionsFixture = filepath.Join("fixtures", "interactions.yaml")
)

// KB groups targets that drive a local engine against fixtures/.
type KB mg.Namespace

// Import loads the sample articles and interactions.
func (KB) Import() error {
	mg.Deps(Build)
	bin := filepath.Join(binDir, binName)
	if err := sh.RunV(bin, "articles", "import", articlesFixture); err != nil {
		return err
	}
	return sh.RunV(bin, "interactions", "import", interactionsFixture)
}

// Rebuild drops and rebuilds the vector store.
func (KB) Rebuild() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "rebuild")
}

// Report prints gaps, suggestions, and stale articles, then exports them.
func (KB) Report() error {
	mg.Deps(Build)
	bin := filepath.Join(binDir, binName)
	for _, args := range [][]string{{"gaps"}, {"suggest"}, {"advise"}, {"export"}} {
		if err := sh.RunV(bin, args...); err != nil {
			return err
		}
	}
	return nil
}

// Serve runs the HTTP API.
func (KB) Serve() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "serve")
}
