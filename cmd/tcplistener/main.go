// Command tcplistener accepts raw tcp connections and prints each request the
// way the server's reader and parser see it. Nothing is sent back.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"sort"
	"time"

	"github.com/devwelkin/hermes-static/internal/request"
)

func main() {
	addr := flag.String("addr", ":42069", "address to listen on")
	timeout := flag.Duration("timeout", 10*time.Second, "idle read timeout")
	flag.Parse()

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("listening on %s", listener.Addr())

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("connection has accepted\n")

		dump(conn, conn, *timeout)
		conn.Close()
	}
}

func dump(w io.Writer, conn io.Reader, timeout time.Duration) {
	raw, err := request.ReadMessage(conn, timeout)
	if err != nil {
		fmt.Fprintf(w, "read error: %v\n", err)
		return
	}
	fmt.Fprintf(w, "raw (%d bytes): %q\n", len(raw), raw)

	req, err := request.Parse(raw)
	if err != nil {
		fmt.Fprintf(w, "parse error: %v\n", err)
		return
	}

	fmt.Fprintf(w, "Request line:\n- Method: %s\n- Target: %s\n- Version: %s\n",
		req.RequestLine.Method, req.RequestLine.RequestTarget, req.RequestLine.HTTPVersion)

	names := make([]string, 0, len(req.Headers))
	for name := range req.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "Headers:\n")
	for _, name := range names {
		fmt.Fprintf(w, "- %s: %s\n", name, req.Headers[name])
	}
	fmt.Fprintf(w, "Body:\n%s\n", req.Body)
}
