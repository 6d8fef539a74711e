package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncore"

	"github.com/cuemby/moldb/pkg/keycodec"
	"github.com/cuemby/moldb/pkg/log"
	"github.com/cuemby/moldb/pkg/metrics"
	"github.com/cuemby/moldb/pkg/moldb"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "moldb",
	Short: "moldb - an embedded BSON document database",
	Long: `moldb is an embedded document database: collections of BSON
documents, secondary indexes, and a small MongoDB-like query and
update-operator surface, backed by a single bbolt file on disk.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"moldb version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("data-dir", "./moldb-data", "Directory holding the moldb.db file")
	rootCmd.PersistentFlags().String("config", "", "Path to a moldb.yaml config file (overrides flag defaults)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(collectionCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(insertCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(countCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// openFromFlags opens the database at --data-dir, applying any
// moldb.yaml config file named by --config.
func openFromFlags(cmd *cobra.Command) (*moldb.Database, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	configPath, _ := cmd.Flags().GetString("config")

	cfg := DefaultConfig()
	if configPath != "" {
		loaded, err := LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = dataDir
	}

	dbPath := cfg.DatabasePath()
	return moldb.Open(dbPath, moldb.Options{MaxMapSize: cfg.MaxMapSizeBytes()})
}

// --- serve ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /metrics, /health, /ready, and /live for this database",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		db, err := openFromFlags(cmd)
		if err != nil {
			metrics.RegisterComponent("storage", false, err.Error())
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		metrics.RegisterComponent("storage", true, "")

		http.Handle("/metrics", metrics.Handler())
		http.Handle("/health", metrics.HealthHandler())
		http.Handle("/ready", metrics.ReadyHandler())
		http.Handle("/live", metrics.LivenessHandler())
		log.Info(fmt.Sprintf("metrics endpoint listening on http://%s/metrics", addr))
		return http.ListenAndServe(addr, nil)
	},
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:9090", "Address for the metrics HTTP server")
}

// --- collection ---

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage collections",
}

var collectionCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openFromFlags(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.CreateCollection(args[0]); err != nil {
			return err
		}
		fmt.Printf("collection created: %s\n", args[0])
		return nil
	},
}

var collectionDropCmd = &cobra.Command{
	Use:   "drop NAME",
	Short: "Drop a collection and all of its documents and indexes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openFromFlags(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DropCollection(args[0]); err != nil {
			return err
		}
		fmt.Printf("collection dropped: %s\n", args[0])
		return nil
	},
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openFromFlags(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		names, err := db.ListCollections()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("no collections")
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

func init() {
	collectionCmd.AddCommand(collectionCreateCmd, collectionDropCmd, collectionListCmd)
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage secondary indexes",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create COLLECTION FIELD [FIELD...]",
	Short: "Create a secondary index over one or more fields, in declared order",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		unique, _ := cmd.Flags().GetBool("unique")
		sparse, _ := cmd.Flags().GetBool("sparse")
		name, _ := cmd.Flags().GetString("name")
		descFields, _ := cmd.Flags().GetStringSlice("desc")
		descSet := make(map[string]bool, len(descFields))
		for _, f := range descFields {
			descSet[f] = true
		}

		fields := make([]keycodec.Field, 0, len(args)-1)
		for _, path := range args[1:] {
			fields = append(fields, keycodec.Field{Path: path, Descending: descSet[path]})
		}

		db, err := openFromFlags(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		created, err := db.CreateIndex(args[0], fields, moldb.IndexOptions{Name: name, Unique: unique, Sparse: sparse})
		if err != nil {
			return err
		}
		fmt.Printf("index created: %s\n", created)
		return nil
	},
}

var indexDropCmd = &cobra.Command{
	Use:   "drop COLLECTION NAME",
	Short: "Drop a secondary index",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openFromFlags(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DropIndex(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("index dropped: %s\n", args[1])
		return nil
	},
}

func init() {
	indexCreateCmd.Flags().Bool("unique", false, "Reject documents whose indexed fields collide")
	indexCreateCmd.Flags().Bool("sparse", false, "Omit documents missing every indexed field")
	indexCreateCmd.Flags().String("name", "", "Index name (default: generated from fields)")
	indexCreateCmd.Flags().StringSlice("desc", nil, "Fields that sort descending within this index")
	indexCmd.AddCommand(indexCreateCmd, indexDropCmd)
}

// --- insert ---

var insertCmd = &cobra.Command{
	Use:   "insert COLLECTION DOCUMENT",
	Short: "Insert one document, given as extended JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := extJSONToDocument(args[1])
		if err != nil {
			return fmt.Errorf("invalid document: %w", err)
		}

		db, err := openFromFlags(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		stored, err := db.InsertOne(args[0], doc)
		if err != nil {
			return err
		}
		out, err := documentToExtJSON(stored)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

// --- find ---

var findCmd = &cobra.Command{
	Use:   "find COLLECTION [FILTER]",
	Short: "Find documents matching FILTER (extended JSON; default {})",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filterJSON := "{}"
		if len(args) == 2 {
			filterJSON = args[1]
		}
		filter, err := extJSONToDocument(filterJSON)
		if err != nil {
			return fmt.Errorf("invalid filter: %w", err)
		}

		db, err := openFromFlags(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		cur, err := db.Find(args[0], filter)
		if err != nil {
			return err
		}
		for _, doc := range cur.All() {
			out, err := documentToExtJSON(doc)
			if err != nil {
				return err
			}
			fmt.Println(out)
		}
		return nil
	},
}

// --- count ---

var countCmd = &cobra.Command{
	Use:   "count COLLECTION [FILTER]",
	Short: "Count documents matching FILTER (extended JSON; default {})",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filterJSON := "{}"
		if len(args) == 2 {
			filterJSON = args[1]
		}
		filter, err := extJSONToDocument(filterJSON)
		if err != nil {
			return fmt.Errorf("invalid filter: %w", err)
		}

		db, err := openFromFlags(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.Count(args[0], filter)
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

func extJSONToDocument(s string) (bsoncore.Document, error) {
	var m bson.M
	if err := bson.UnmarshalExtJSON([]byte(s), true, &m); err != nil {
		return nil, err
	}
	raw, err := bson.Marshal(m)
	if err != nil {
		return nil, err
	}
	return bsoncore.Document(raw), nil
}

func documentToExtJSON(doc bsoncore.Document) (string, error) {
	var m bson.M
	if err := bson.Unmarshal(doc, &m); err != nil {
		return "", err
	}
	out, err := bson.MarshalExtJSON(m, true, false)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
