// Command migrate-gen generates SQL migration files for the host selection registry.
//
// Usage:
//
//	go run github.com/getpup/pupsourcing-hostselect/cmd/migrate-gen -output migrations -filename init.sql
//
// Or with go generate:
//
//	//go:generate go run github.com/getpup/pupsourcing-hostselect/cmd/migrate-gen -output migrations
//
// Generate migrations for different database adapters:
//
//	go run github.com/getpup/pupsourcing-hostselect/cmd/migrate-gen -adapter postgres -output migrations
//	go run github.com/getpup/pupsourcing-hostselect/cmd/migrate-gen -adapter mysql -output migrations
//	go run github.com/getpup/pupsourcing-hostselect/cmd/migrate-gen -adapter sqlite -output migrations
//
// Customize table names and emit a rollback file:
//
//	go run github.com/getpup/pupsourcing-hostselect/cmd/migrate-gen -services-table svc -cursors-table cur -down
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/getpup/pupsourcing-hostselect/pkg/migrations"
	"github.com/getpup/pupsourcing-hostselect/store/sqlstore"
)

func main() {
	defaults := migrations.DefaultConfig()

	var (
		adapter        = flag.String("adapter", "postgres", "Database adapter: postgres, mysql, or sqlite")
		outputFolder   = flag.String("output", defaults.OutputFolder, "Output folder for migration file")
		outputFilename = flag.String("filename", "", "Output filename (default: timestamp-based)")
		servicesTable  = flag.String("services-table", defaults.ServicesTable, "Name of service records table")
		cursorsTable   = flag.String("cursors-table", defaults.CursorsTable, "Name of rotation cursors table")
		withDown       = flag.Bool("down", false, "Also write a rollback migration")
	)

	flag.Parse()

	dialect, err := sqlstore.ParseDialect(*adapter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	config := defaults
	config.OutputFolder = *outputFolder
	config.ServicesTable = *servicesTable
	config.CursorsTable = *cursorsTable
	config.WithDown = *withDown

	if *outputFilename != "" {
		config.OutputFilename = *outputFilename
	}

	if err := migrations.Generate(dialect, &config); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating migration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s migration: %s/%s\n", *adapter, config.OutputFolder, config.OutputFilename)
	if config.WithDown {
		fmt.Printf("Generated %s rollback: %s/%s\n", *adapter, config.OutputFolder, migrations.DownFilename(config.OutputFilename))
	}
}
