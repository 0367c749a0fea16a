package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"casklog"
	"casklog/data"
)

func main() {
	path := flag.String("path", casklog.DefaultOptions.Path, "log file path")
	indexType := flag.String("index", "btree", "key directory: btree, art or bptree")
	flag.Parse()

	options := casklog.DefaultOptions
	options.Path = *path
	switch *indexType {
	case "btree":
		options.IndexType = casklog.BTreeIndex
	case "art":
		options.IndexType = casklog.ARTIndex
	case "bptree":
		options.IndexType = casklog.BPlusTreeIndex
	default:
		log.Fatalf("unknown index type %q", *indexType)
	}

	db, err := casklog.Open(options)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	fmt.Printf("casklog using %s\n", *path)
	fmt.Println("Type commands. 'help' for information or 'exit' to quit.")

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("> ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" {
			return
		}

		args, err := shellquote.Split(line)
		if err != nil {
			fmt.Println("parse error:", err)
			continue
		}

		if err := execute(db, args); err != nil {
			fmt.Println(err)
		}
	}
}

func execute(db *casklog.DB, args []string) error {
	switch strings.ToLower(args[0]) {
	case "help":
		fmt.Println("set <key> <value> | get <key> | keys | stat | sync | exit")
	case "set":
		if len(args) != 3 {
			return errors.New("usage: set <key> <value>")
		}
		if err := db.Put(data.NewText(args[1]), parseValue(args[2])); err != nil {
			return err
		}
		fmt.Println("OK")
	case "get":
		if len(args) != 2 {
			return errors.New("usage: get <key>")
		}
		value, err := db.Get(data.NewText(args[1]))
		if errors.Is(err, casklog.ErrKeyNotFound) {
			fmt.Println("(nil)")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(value.String())
	case "keys":
		keys, err := db.ListKeys()
		if err != nil {
			return err
		}
		for _, key := range keys {
			fmt.Println(key.String())
		}
	case "stat":
		stat := db.Stat()
		fmt.Printf("keys=%d log_size=%d reclaimable=%d\n",
			stat.KeyNum, stat.LogSize, stat.ReclaimableSize)
	case "sync":
		if err := db.Sync(); err != nil {
			return err
		}
		fmt.Println("OK")
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

// parseValue keeps typed values usable from a text console: integers and
// floats round-trip as their numeric types, everything else is text.
func parseValue(s string) data.Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return data.NewInt(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return data.NewFloat(f)
	}
	return data.NewText(s)
}
