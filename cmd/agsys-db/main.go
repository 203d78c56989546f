// edgehog-runtime Database CLI Tool
// Provides command-line access to the runtime's persistent store.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
)

var (
	dbPath  string
	rootCmd = &cobra.Command{
		Use:   "edgehog-db",
		Short: "edgehog-runtime Database CLI",
		Long:  "Command-line tool for inspecting the edgehog-runtime persistent store.",
	}

	otaCmd = &cobra.Command{
		Use:   "ota",
		Short: "Show the persisted OTA rollback state, if any",
		RunE:  showOta,
	}

	imagesCmd = &cobra.Command{
		Use:   "images",
		Short: "List container images",
		RunE:  listImages,
	}

	networksCmd = &cobra.Command{
		Use:   "networks",
		Short: "List container networks",
		RunE:  listNetworks,
	}

	volumesCmd = &cobra.Command{
		Use:   "volumes",
		Short: "List container volumes",
		RunE:  listVolumes,
	}

	containersCmd = &cobra.Command{
		Use:   "containers",
		Short: "List containers",
		RunE:  listContainers,
	}

	deploymentsCmd = &cobra.Command{
		Use:   "deployments",
		Short: "List deployments",
		RunE:  listDeployments,
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE:  showStats,
	}

	queryCmd = &cobra.Command{
		Use:   "query [sql]",
		Short: "Execute a raw SQL query",
		Args:  cobra.ExactArgs(1),
		RunE:  executeQuery,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "database", "d", "/var/lib/edgehog/runtime.db", "Database file path")

	rootCmd.AddCommand(otaCmd)
	rootCmd.AddCommand(imagesCmd)
	rootCmd.AddCommand(networksCmd)
	rootCmd.AddCommand(volumesCmd)
	rootCmd.AddCommand(containersCmd)
	rootCmd.AddCommand(deploymentsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(queryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDB() (*sql.DB, error) {
	return sql.Open("sqlite3", dbPath+"?mode=ro")
}

func showOta(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	var requestUUID, slot string
	var updatedAt time.Time
	err = db.QueryRow(`SELECT request_uuid, slot, updated_at FROM ota_state WHERE id = 1`).
		Scan(&requestUUID, &slot, &updatedAt)
	if err == sql.ErrNoRows {
		fmt.Println("No persisted OTA state (idle).")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Pending OTA request %s, slot booted before install %s, persisted at %s\n",
		requestUUID, slot, updatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func listImages(cmd *cobra.Command, args []string) error {
	return listEntities(`SELECT id, local_id, status, reference, updated_at FROM images ORDER BY updated_at DESC`,
		[]string{"ID", "LOCAL ID", "STATUS", "REFERENCE", "UPDATED"})
}

func listNetworks(cmd *cobra.Command, args []string) error {
	return listEntities(`SELECT id, local_id, status, driver, updated_at FROM networks ORDER BY updated_at DESC`,
		[]string{"ID", "LOCAL ID", "STATUS", "DRIVER", "UPDATED"})
}

func listVolumes(cmd *cobra.Command, args []string) error {
	return listEntities(`SELECT id, local_id, status, driver, updated_at FROM volumes ORDER BY updated_at DESC`,
		[]string{"ID", "LOCAL ID", "STATUS", "DRIVER", "UPDATED"})
}

func listContainers(cmd *cobra.Command, args []string) error {
	return listEntities(`SELECT id, local_id, status, image_id, updated_at FROM containers ORDER BY updated_at DESC`,
		[]string{"ID", "LOCAL ID", "STATUS", "IMAGE", "UPDATED"})
}

func listDeployments(cmd *cobra.Command, args []string) error {
	return listEntities(`SELECT id, local_id, status, container_ids, updated_at FROM deployments ORDER BY updated_at DESC`,
		[]string{"ID", "LOCAL ID", "STATUS", "CONTAINERS", "UPDATED"})
}

// listEntities runs a 5-column query shared by every entity-kind
// listing, the teacher's own per-kind tabwriter dump pattern collapsed
// into one helper since every container entity table shares the same
// id/local_id/status/... shape.
func listEntities(query string, header []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for rows.Next() {
		var id, status, fourth string
		var localId sql.NullString
		var updatedAt time.Time

		if err := rows.Scan(&id, &localId, &status, &fourth, &updatedAt); err != nil {
			return err
		}

		localStr := "-"
		if localId.Valid {
			localStr = localId.String
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			id, localStr, status, fourth, updatedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
	return nil
}

func showStats(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Database Statistics")
	fmt.Println("====================")

	for _, table := range []string{"images", "networks", "volumes", "containers", "deployments"} {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			return err
		}
		fmt.Printf("%s: %d\n", table, count)
	}

	var otaPending int
	db.QueryRow("SELECT COUNT(*) FROM ota_state WHERE id = 1").Scan(&otaPending)
	fmt.Printf("ota pending: %d\n", otaPending)

	return nil
}

func executeQuery(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	query := args[0]

	// Only allow SELECT queries for safety
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
		return fmt.Errorf("only SELECT queries are allowed")
	}

	rows, err := db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(cols, "\t"))
	fmt.Fprintln(w, strings.Repeat("-\t", len(cols)))

	values := make([]interface{}, len(cols))
	valuePtrs := make([]interface{}, len(cols))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(valuePtrs...); err != nil {
			return err
		}

		var row []string
		for _, v := range values {
			switch val := v.(type) {
			case nil:
				row = append(row, "NULL")
			case []byte:
				row = append(row, string(val))
			default:
				row = append(row, fmt.Sprintf("%v", val))
			}
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
	return nil
}
