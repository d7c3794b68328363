package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/toonlabs/toondb/pkg/adapters"
	_ "github.com/toonlabs/toondb/pkg/adapters/mongo"
	_ "github.com/toonlabs/toondb/pkg/adapters/mssql"
	_ "github.com/toonlabs/toondb/pkg/adapters/mysql"
	_ "github.com/toonlabs/toondb/pkg/adapters/postgres"
	_ "github.com/toonlabs/toondb/pkg/adapters/sqlite"
	"github.com/toonlabs/toondb/pkg/config"
	"github.com/toonlabs/toondb/pkg/core/toon"
)

func main() {
	var (
		configPath = flag.String("config", "connections.yaml", "path to connections config")
		connName   = flag.String("conn", "", "connection name (empty = default)")
		query      = flag.String("query", "", "query to run")
		list       = flag.Bool("list", false, "list tables")
		withViews  = flag.Bool("views", false, "include views when listing tables")
		schemaOf   = flag.String("schema", "", "print schema of a table")
		compress   = flag.Bool("compress", false, "compress output into a transport frame")
		showStats  = flag.Bool("stats", false, "print token savings summary")
	)
	flag.Parse()

	ctx := context.Background()

	// Load configuration and resolve the connection profile
	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("Failed to load config: %v", err)
	}
	conn, err := cfg.Connection(*connName)
	if err != nil {
		fatal("%v", err)
	}

	adapterCfg := adapters.FromConnection(conn)
	if *showStats {
		adapterCfg.StatsEnabled = true
	}

	adapter, err := adapters.New(ctx, adapterCfg)
	if err != nil {
		fatal("Failed to connect: %v", err)
	}
	defer adapter.Close(ctx)

	switch {
	case *list:
		tables, err := adapter.GetTables(ctx, *withViews)
		if err != nil {
			fatal("Failed to list tables: %v", err)
		}
		for _, table := range tables {
			fmt.Println(table)
		}

	case *schemaOf != "":
		ts, err := adapter.GetSchema(ctx, *schemaOf)
		if err != nil {
			fatal("Failed to read schema: %v", err)
		}
		for _, col := range ts.Columns {
			marker := ""
			if col.IsPrimaryKey {
				marker = " PK"
			}
			if col.IsAutoIncrement {
				marker += " AUTO"
			}
			fmt.Printf("%-24s %s%s\n", col.Name, col.NativeType, marker)
		}

	case *query != "":
		text, err := adapter.Query(ctx, *query)
		if err != nil {
			fatal("Query failed: %v", err)
		}
		if *compress && toon.ShouldCompress(len(text)) {
			if text, err = toon.CompressText(text, 3); err != nil {
				fatal("Compression failed: %v", err)
			}
		}
		fmt.Println(text)

	default:
		flag.Usage()
		os.Exit(2)
	}

	if *showStats {
		sum := adapter.Stats().Summary()
		fmt.Fprintf(os.Stderr, "queries: %d, chars saved: %d (%.1f%%), tokens saved: %d (%.1f%%)\n",
			sum.TotalQueries, sum.CharsSaved, sum.CharsSavedPct, sum.TokensSaved, sum.TokensSavedPct)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
