package main

import (
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/production_backend/config"
	"bitbucket.org/mmdatafocus/production_backend/models"
)

// Releases folder locks whose TTL has passed. Intended as a scheduled job
// for deployments where the long-running server (which sweeps on a timer)
// is not used.
func main() {
	dryRun := flag.Bool("dry-run", false, "List expired locks without releasing them")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	if *dryRun {
		var locks []models.FolderLock
		if err := db.Where("released_at IS NULL AND expires_at <= NOW()").Find(&locks).Error; err != nil {
			fmt.Fprintln(os.Stderr, "query failed:", err)
			os.Exit(1)
		}
		for _, l := range locks {
			fmt.Printf("expired: %s held by %s since %s\n", l.FolderPath, l.HolderName, l.AcquiredAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("%d expired lock(s)\n", len(locks))
		return
	}

	released, err := models.ReleaseExpiredFolderLocks(db)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sweep failed:", err)
		os.Exit(1)
	}
	fmt.Printf("released %d expired folder lock(s)\n", released)
}
