// Command inspect dumps the contents of a BadgerDB store in a human
// readable table, decoding the CBOR records behind the user, message
// and contact-request prefixes. Index entries are printed raw.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// Mirrors of the repository disk records. Field numbers must stay in
// sync with the repositories package.
type userRecord struct {
	ID        int64  `cbor:"1,keyasint"`
	Username  string `cbor:"2,keyasint"`
	Email     string `cbor:"3,keyasint"`
	CreatedAt int64  `cbor:"5,keyasint"`
}

type messageRecord struct {
	ID         int64  `cbor:"1,keyasint"`
	SenderID   int64  `cbor:"2,keyasint"`
	ReceiverID int64  `cbor:"3,keyasint"`
	Body       string `cbor:"4,keyasint"`
	Status     string `cbor:"5,keyasint"`
	CreatedAt  int64  `cbor:"6,keyasint"`
	UpdatedAt  int64  `cbor:"7,keyasint"`
}

type requestRecord struct {
	ID         int64  `cbor:"1,keyasint"`
	SenderID   int64  `cbor:"2,keyasint"`
	ReceiverID int64  `cbor:"3,keyasint"`
	Status     string `cbor:"4,keyasint"`
	CreatedAt  int64  `cbor:"5,keyasint"`
}

func main() {
	dbPath := flag.String("db", "/tmp/dm-lab", "Path to badger DB")
	prefix := flag.String("prefix", "", "Restrict the scan to one key prefix")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "ID", "Detail", "Created"})
	table.SetAutoWrapText(false)
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

			err := item.Value(func(value []byte) error {
				table.Append(describe(key, value))
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

	color.Cyan.Printf("Store dump of %s\n\n", *dbPath)
	table.Render()
}

func describe(key string, value []byte) []string {
	switch {
	case strings.HasPrefix(key, "user:id:"):
		var u userRecord
		if err := cbor.Unmarshal(value, &u); err != nil {
			return rawRow(key, value)
		}
		return []string{key, "USER", fmt.Sprint(u.ID),
			fmt.Sprintf("%s <%s>", u.Username, u.Email), stamp(u.CreatedAt)}

	case strings.HasPrefix(key, "msg:id:"):
		var m messageRecord
		if err := cbor.Unmarshal(value, &m); err != nil {
			return rawRow(key, value)
		}
		return []string{key, "MESSAGE", fmt.Sprint(m.ID),
			fmt.Sprintf("%d->%d [%s] %s", m.SenderID, m.ReceiverID, m.Status, truncate(m.Body, 40)),
			stamp(m.CreatedAt)}

	case strings.HasPrefix(key, "creq:id:"):
		var r requestRecord
		if err := cbor.Unmarshal(value, &r); err != nil {
			return rawRow(key, value)
		}
		return []string{key, "REQUEST", fmt.Sprint(r.ID),
			fmt.Sprintf("%d->%d [%s]", r.SenderID, r.ReceiverID, r.Status), stamp(r.CreatedAt)}

	default:
		return rawRow(key, value)
	}
}

func rawRow(key string, value []byte) []string {
	return []string{key, "INDEX", "", fmt.Sprintf("%d bytes", len(value)), ""}
}

func stamp(unixNano int64) string {
	if unixNano == 0 {
		return ""
	}
	return time.Unix(0, unixNano).UTC().Format("2006-01-02 15:04:05")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
