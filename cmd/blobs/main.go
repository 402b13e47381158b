package main

import (
	"chat-relay/infrastructure/storage"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/dustin/go-humanize"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

// blobs lists the uploads kept in a Badger blob store (BLOB_BACKEND=badger).
func main() {
	dbPath := flag.String("db", "data/blobs", "Path to badger DB")
	prefix := flag.String("prefix", "", "Only list blobs whose name starts with this")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	store := storage.NewBadgerStore(db, logs.GetLoggerFromString("ERROR"))
	infos, err := store.List(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Type", "Size", "Stored at"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	var count int
	var total int64
	for _, info := range infos {
		if !strings.HasPrefix(info.Name, *prefix) {
			continue
		}
		count++
		total += info.Size
		table.Append([]string{
			info.Name,
			info.ContentType,
			humanize.IBytes(uint64(info.Size)),
			info.ModTime.Format("2006-01-02 15:04:05"),
		})
	}
	table.Render()
	fmt.Printf("\n%d blobs, %s\n", count, humanize.IBytes(uint64(total)))
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil && strings.Contains(err.Error(), "Log truncate required") {
		// A crashed server leaves a value log that needs a writable open to truncate.
		repair, repairErr := badger.Open(badger.DefaultOptions(path).WithLogger(nil).WithBypassLockGuard(true))
		if repairErr != nil {
			return nil, fmt.Errorf("repair failed: %w", repairErr)
		}
		_ = repair.Close()
		return badger.Open(opts)
	}
	return db, err
}
