package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/tidwall/resp"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:6379", "server address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	rd := resp.NewReader(conn)
	wr := resp.NewWriter(conn)

	if flag.NArg() > 0 {
		v, err := roundTrip(rd, wr, flag.Args())
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		printValue(v)
		return
	}

	in := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := in.ReadString('\n')
		if err != nil {
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if strings.EqualFold(args[0], "QUIT") || strings.EqualFold(args[0], "EXIT") {
			return
		}
		v, err := roundTrip(rd, wr, args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return
		}
		printValue(v)
	}
}

func roundTrip(rd *resp.Reader, wr *resp.Writer, args []string) (resp.Value, error) {
	rest := make([]interface{}, 0, len(args)-1)
	for _, a := range args[1:] {
		rest = append(rest, a)
	}
	if err := wr.WriteMultiBulk(args[0], rest...); err != nil {
		return resp.Value{}, fmt.Errorf("send: %w", err)
	}
	v, _, err := rd.ReadValue()
	if err != nil {
		return resp.Value{}, fmt.Errorf("read: %w", err)
	}
	return v, nil
}

func printValue(v resp.Value) {
	switch {
	case v.Type() == resp.Error:
		fmt.Println("(error)", v.String())
	case v.IsNull():
		fmt.Println("(nil)")
	case v.Type() == resp.BulkString:
		fmt.Printf("%q\n", v.String())
	default:
		fmt.Println(v.String())
	}
}
