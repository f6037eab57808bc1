package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/multitab/internal/config"
	"github.com/dyluth/multitab/internal/printer"
)

//go:embed templates/*
var templatesFS embed.FS

// Initialize writes a default multitab.yml into dir.
// If force is true, an existing multitab.yml is replaced.
func Initialize(dir string, force bool) error {
	path := filepath.Join(dir, config.DefaultFile)

	if force {
		if err := handleForce(path); err != nil {
			return err
		}
	} else if err := CheckExisting(dir); err != nil {
		return err
	}

	content, err := templatesFS.ReadFile("templates/multitab.yml.tmpl")
	if err != nil {
		return fmt.Errorf("failed to read multitab.yml template: %w", err)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	// The template must always load cleanly
	if _, err := config.Load(path); err != nil {
		return fmt.Errorf("created %s is invalid: %w", config.DefaultFile, err)
	}

	return nil
}

// handleForce removes an existing config file if --force was specified
func handleForce(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	printer.Warning("Removing existing %s...\n", config.DefaultFile)
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", config.DefaultFile, err)
	}
	return nil
}

// PrintSuccess prints the success message and next steps
func PrintSuccess() {
	printer.Success("Created %s\n", config.DefaultFile)
	printer.Println("\nNext steps:")
	printer.Println("  1. Set sync.states_paths to the parts of the state to share")
	printer.Println("  2. Run 'multitab redis up' for a local Redis, or switch backend.driver to sqlite")
	printer.Println("  3. Run 'multitab check' to verify the storage is reachable")
}
