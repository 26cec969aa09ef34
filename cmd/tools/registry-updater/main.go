// cmd/tools/registry-updater/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"hazard-service/internal/common/logger"
	"hazard-service/internal/hazard"
	"hazard-service/internal/models"
	"hazard-service/pkg/registry"
)

const defaultRegistryPath = "configs/model-registry.json"

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	// Add command flags
	addPath := addCmd.String("path", defaultRegistryPath, "Path to registry file")
	region := addCmd.String("region", "", "Region (e.g., COUS)")
	edition := addCmd.String("edition", "", "Edition (e.g., E2014)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Conterminous U.S. 2014)")
	locator := addCmd.String("locator", "", "Model location: directory, zip archive or s3://bucket/key")
	preload := addCmd.Bool("preload", false, "Load the model at startup")
	tags := addCmd.String("tags", "", "Comma separated tags")

	// Update command flags
	updatePath := updateCmd.String("path", defaultRegistryPath, "Path to registry file")
	idUpdate := updateCmd.String("id", "", "Model ID to update (e.g., COUS_2014)")
	field := updateCmd.String("field", "", "Field to update (displayName, locator, preload, tags)")
	value := updateCmd.String("value", "", "New value for the field")

	// Validate command flags
	validatePath := validateCmd.String("path", defaultRegistryPath, "Path to registry file")

	// List command flags
	listPath := listCmd.String("path", defaultRegistryPath, "Path to registry file")
	baseDir := listCmd.String("baseDir", "models", "Directory relative locators resolve against")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *region == "" || *edition == "" || *displayName == "" || *locator == "" {
			fmt.Println("Error: region, edition, displayName, and locator are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		id, err := addModel(*addPath, *region, *edition, *displayName, *locator, *preload, splitTags(*tags))
		if err != nil {
			fmt.Printf("Error adding model: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added model: %s\n", id)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" {
			fmt.Println("Error: id and field are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateModel(*updatePath, *idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating model: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated model %s, field %s to %s\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(*validatePath)
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d models.\n", len(reg.Models))

	case "list":
		listCmd.Parse(os.Args[2:])
		if err := listModels(*listPath, *baseDir); err != nil {
			fmt.Printf("Error listing models: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func loadOrCreate(path string) (*registry.ModelRegistry, error) {
	reg, err := registry.LoadRegistry(path)
	if errors.Is(err, os.ErrNotExist) {
		return &registry.ModelRegistry{Version: "1.0.0"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	return reg, nil
}

func addModel(path, region, edition, displayName, locator string, preload bool, tags []string) (string, error) {
	r, err := models.ParseRegion(region)
	if err != nil {
		return "", err
	}
	e, err := models.ParseEdition(edition)
	if err != nil {
		return "", err
	}
	if _, err := hazard.ParseLocator(locator, "."); err != nil {
		return "", err
	}

	reg, err := loadOrCreate(path)
	if err != nil {
		return "", err
	}

	id := models.NewModelID(r, e).String()
	err = reg.Add(registry.ModelEntry{
		ID:          id,
		Region:      r.Value(),
		Edition:     e.Value(),
		DisplayName: displayName,
		Locator:     locator,
		Preload:     preload,
		Tags:        tags,
	})
	if err != nil {
		return "", err
	}

	reg.LastUpdated = time.Now().Format(time.RFC3339)
	return id, registry.Save(reg, path)
}

func updateModel(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	entry, err := reg.Find(id)
	if err != nil {
		return err
	}

	switch field {
	case "displayName":
		entry.DisplayName = value
	case "locator":
		if _, err := hazard.ParseLocator(value, "."); err != nil {
			return err
		}
		entry.Locator = value
	case "preload":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid preload value: %w", err)
		}
		entry.Preload = b
	case "tags":
		entry.Tags = splitTags(value)
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	reg.LastUpdated = time.Now().Format(time.RFC3339)
	return registry.Save(reg, path)
}

// listModels prints every entry and whether its data is present locally.
// s3:// locators are reported without being checked.
func listModels(path, baseDir string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	local := &registry.ModelRegistry{Version: reg.Version}
	for _, m := range reg.Models {
		if !strings.HasPrefix(m.Locator, "s3://") {
			local.Models = append(local.Models, m)
		}
	}
	loader, err := hazard.NewLoader(local, baseDir, nil, logger.NewNoOpLogger())
	if err != nil {
		return err
	}
	installed := make(map[models.ModelID]bool)
	for _, id := range loader.Installed(context.Background()) {
		installed[id] = true
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tLOCATOR\tPRELOAD\tINSTALLED")
	for _, m := range reg.Models {
		state := "unchecked"
		if id, err := m.ModelID(); err == nil && !strings.HasPrefix(m.Locator, "s3://") {
			state = strconv.FormatBool(installed[id])
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", m.ID, m.DisplayName, m.Locator, m.Preload, state)
	}
	return w.Flush()
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  add      Add a model to the registry
  update   Update a field of an existing model
  validate Validate the registry file
  list     List registered models and whether their data is installed
  help     Show this help message

Examples:
  registry-updater add -region COUS -edition E2014 -displayName "Conterminous U.S. 2014" -locator COUS_2014 -preload
  registry-updater update -id COUS_2014 -field locator -value archives/cous-2014.zip
  registry-updater validate -path configs/model-registry.json
  registry-updater list -baseDir models

Use 'registry-updater <command> -h' for more information about a command.
` + "\n")
}
