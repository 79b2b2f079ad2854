package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/RACOAI-Official/ems-realtime/repositories"
	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// Offline dump of the realtime store. Run it against a stopped server's
// Badger directory to see messages and notifications without a client.
func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	// msg: by default to avoid dumping the msgid:/ntfid: index entries
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg: or ntf:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(
		fmt.Sprintf(" Store dump — %s (prefix %s) ", *dbPath, *prefix)))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "From", "To", "Read", "Detail"})
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

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			// Skip the secondary id indexes explicitly.
			if strings.HasPrefix(key, "msgid:") || strings.HasPrefix(key, "ntfid:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				row, ok := decodeRow(key, v)
				if !ok {
					// Log and continue instead of stopping the whole dump.
					fmt.Printf("Error unmarshaling key %s\n", key)
					return nil
				}
				table.Append(row)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func decodeRow(key string, val []byte) ([]string, bool) {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var m repositories.DiskMessage
		if err := cbor.Unmarshal(val, &m); err != nil {
			return nil, false
		}
		return []string{
			shortKey(key),
			"MESSAGE",
			time.Unix(0, m.CreatedAt).UTC().Format("15:04:05"),
			m.Sender,
			m.Receiver,
			readFlag(m.Read),
			detail(m.Body, m.AttachmentRef),
		}, true
	case strings.HasPrefix(key, "ntf:"):
		var n repositories.DiskNotification
		if err := cbor.Unmarshal(val, &n); err != nil {
			return nil, false
		}
		return []string{
			shortKey(key),
			"NOTIFICATION",
			time.Unix(0, n.CreatedAt).UTC().Format("15:04:05"),
			n.Category,
			n.Target,
			readFlag(n.Read),
			n.Title + " | " + n.Body,
		}, true
	}
	return []string{shortKey(key), "RAW", "--:--:--", "-", "-", "-",
		fmt.Sprintf("Size: %d bytes", len(val))}, true
}

// shortKey truncates the uuid tail for readability.
func shortKey(key string) string {
	if len(key) > 48 {
		return key[:48] + "…"
	}
	return key
}

func readFlag(read bool) string {
	if read {
		return color.Green.Render("read")
	}
	return color.Yellow.Render("unread")
}

func detail(body, attachment string) string {
	if body == "" && attachment != "" {
		return "[attachment] " + attachment
	}
	if attachment != "" {
		return body + " [+attachment]"
	}
	return body
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	return badger.Open(opts)
}
