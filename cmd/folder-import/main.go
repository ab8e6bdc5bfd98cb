package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/production_backend/config"
	"bitbucket.org/mmdatafocus/production_backend/importer"
)

// CLI entry point for running a delivery folder import without the HTTP
// server, e.g. from a cron job on the file share host.
func main() {
	folder := flag.String("folder", "", "Required: delivery folder to import")
	operator := flag.String("operator", "folder-import-cli", "Operator name recorded on the folder lock")
	flag.Parse()

	if strings.TrimSpace(*folder) == "" {
		fmt.Fprintln(os.Stderr, "--folder is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	batch, err := importer.ImportFromFolder(context.Background(), *folder, *operator)
	if err != nil {
		fmt.Fprintln(os.Stderr, "import failed:", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(batch, "", "  ")
	fmt.Println(string(out))
	if batch.Summary.Failed > 0 {
		os.Exit(2)
	}
}
