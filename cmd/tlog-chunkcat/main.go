// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Command tlog-chunkcat reads a tlog recording through a source,
// decoding it back into its packet stream, and re-encodes that stream
// through a sink. With matching flags on both ends it is a no-op
// (round trip); with different -chunk/-io-size/-lax settings it is a
// repacking/validation tool.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tlogd/tlog/sink"
	"github.com/tlogd/tlog/source"
	"github.com/tlogd/tlog/transport"
	"github.com/tlogd/tlog/trx"
)

var (
	dashi           string
	dasho           string
	dashhost        string
	dashuser        string
	dashterm        string
	dashsession     uint
	dashchunk       int
	dashiosize      int
	dashlax         bool
	dashFilterHosts string
	dashFilterUsers string
)

func init() {
	flag.StringVar(&dashi, "i", "-", "input file (or - for stdin)")
	flag.StringVar(&dasho, "o", "-", "output file (or - for stdout)")
	flag.StringVar(&dashhost, "host", "localhost", "identity: host field for re-encoded records")
	flag.StringVar(&dashuser, "user", "", "identity: user field for re-encoded records")
	flag.StringVar(&dashterm, "term", "", "identity: term field for re-encoded records")
	flag.UintVar(&dashsession, "session", 1, "identity: session field for re-encoded records")
	flag.IntVar(&dashchunk, "chunk", 8192, "output chunk byte budget")
	flag.IntVar(&dashiosize, "io-size", 4096, "maximum bytes per decoded IO packet")
	flag.BoolVar(&dashlax, "lax", false, "tolerate id gaps in the input stream")
	flag.StringVar(&dashFilterHosts, "filter-hosts", "", "comma-separated allowlist of source hosts to keep (default: all)")
	flag.StringVar(&dashFilterUsers, "filter-users", "", "comma-separated allowlist of source users to keep (default: all)")
}

func exitf(f string, args ...any) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

func openReader(name string) transport.Reader {
	if name == "-" {
		return transport.NewFileReader(os.Stdin)
	}
	f, err := os.Open(name)
	if err != nil {
		exitf("opening input: %s\n", err)
	}
	return transport.NewFileReader(f)
}

func openWriter(name string) transport.Writer {
	if name == "-" {
		return transport.NewFileWriter(os.Stdout)
	}
	f, err := os.Create(name)
	if err != nil {
		exitf("creating output: %s\n", err)
	}
	return transport.NewFileWriter(f)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func main() {
	flag.Parse()

	filter := source.MatchAny(splitList(dashFilterHosts), splitList(dashFilterUsers), nil)
	epoch := time.Now()
	src := source.New(openReader(dashi), epoch, dashiosize, dashlax, filter)
	snk := sink.New(sink.Identity{
		Host:    dashhost,
		User:    dashuser,
		Term:    dashterm,
		Session: uint32(dashsession),
	}, openWriter(dasho), dashchunk, epoch)

	state := trx.Root()
	var pkts, errs int
	for {
		pkt, err := src.Read()
		if err != nil {
			errs++
			fmt.Fprintf(os.Stderr, "tlog-chunkcat: dropped message: %s\n", err)
			continue
		}
		if pkt.IsVoid() {
			break
		}
		pkts++
		if err := snk.Write(state, pkt); err != nil {
			exitf("re-encoding packet: %s\n", err)
		}
	}
	snk.Cut(state)
	if err := snk.Flush(state); err != nil {
		exitf("final flush: %s\n", err)
	}
	fmt.Fprintf(os.Stderr, "tlog-chunkcat: %d packets re-encoded, %d messages dropped\n", pkts, errs)
}
