package main

import (
	"errors"
	"flag"
	"log"
	"strconv"
	"strings"

	"github.com/tidwall/redcon"

	"casklog"
	"casklog/data"
)

type casklogServer struct {
	db     *casklog.DB
	server *redcon.Server
}

func main() {
	addr := flag.String("addr", "127.0.0.1:6380", "listen address")
	path := flag.String("path", casklog.DefaultOptions.Path, "log file path")
	flag.Parse()

	options := casklog.DefaultOptions
	options.Path = *path
	db, err := casklog.Open(options)
	if err != nil {
		log.Fatal(err)
	}

	svr := &casklogServer{db: db}
	svr.server = redcon.NewServer(*addr, svr.handle, svr.accept, svr.closed)

	log.Println("casklog server running, ready to accept connections.")
	if err := svr.server.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}

func (svr *casklogServer) accept(conn redcon.Conn) bool {
	return true
}

func (svr *casklogServer) closed(conn redcon.Conn, err error) {
	_ = svr.db.Sync()
}

func (svr *casklogServer) handle(conn redcon.Conn, cmd redcon.Command) {
	command := strings.ToLower(string(cmd.Args[0]))
	switch command {
	case "ping":
		conn.WriteString("PONG")
	case "quit":
		conn.WriteString("OK")
		_ = conn.Close()
	case "set":
		if len(cmd.Args) != 3 {
			conn.WriteError("ERR wrong number of arguments for 'set' command")
			return
		}
		key := data.NewText(string(cmd.Args[1]))
		if err := svr.db.Put(key, parseValue(string(cmd.Args[2]))); err != nil {
			conn.WriteError("ERR " + err.Error())
			return
		}
		conn.WriteString("OK")
	case "get":
		if len(cmd.Args) != 2 {
			conn.WriteError("ERR wrong number of arguments for 'get' command")
			return
		}
		value, err := svr.db.Get(data.NewText(string(cmd.Args[1])))
		if errors.Is(err, casklog.ErrKeyNotFound) {
			conn.WriteNull()
			return
		}
		if err != nil {
			conn.WriteError("ERR " + err.Error())
			return
		}
		conn.WriteBulkString(value.String())
	case "keys":
		keys, err := svr.db.ListKeys()
		if err != nil {
			conn.WriteError("ERR " + err.Error())
			return
		}
		conn.WriteArray(len(keys))
		for _, key := range keys {
			conn.WriteBulkString(key.String())
		}
	case "dbsize":
		conn.WriteInt(int(svr.db.Stat().KeyNum))
	default:
		conn.WriteError("ERR unknown command '" + command + "'")
	}
}

// parseValue keeps typed values usable over the text protocol: integers and
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
