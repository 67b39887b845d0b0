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

// Command tlog-esreplay copies a tlog index previously written by
// transport.ESWriter out to a plain line-delimited JSON file, in
// ascending id order, stopping cleanly at the first gap in the id
// sequence (the index may still be receiving writes).
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/elastic/go-elasticsearch/v7"

	"github.com/tlogd/tlog/date"
	"github.com/tlogd/tlog/transport"
)

var (
	dashEndpoint string
	dashIndex    string
	dashUser     string
	dashPass     string
	dashOut      string
	dashPage     int
	dashSince    string
)

func init() {
	flag.StringVar(&dashEndpoint, "endpoint", "", "Elasticsearch endpoint URL")
	flag.StringVar(&dashIndex, "index", "", "Elasticsearch index holding the recording")
	flag.StringVar(&dashUser, "user", "", "Elasticsearch basic auth username")
	flag.StringVar(&dashPass, "pass", "", "Elasticsearch basic auth password")
	flag.StringVar(&dashOut, "o", "-", "output file (or - for stdout)")
	flag.IntVar(&dashPage, "page", 500, "documents fetched per search request")
	flag.StringVar(&dashSince, "since", "", "only replay documents recorded within this long of now, e.g. \"30d\" (default: all)")
}

func exitf(f string, args ...any) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

func logf(f string, args ...any) {
	fmt.Fprintf(os.Stderr, "tlog-esreplay %s: ", date.FromTime(time.Now()).SessionLabel())
	fmt.Fprintf(os.Stderr, f, args...)
}

func main() {
	flag.Parse()
	if dashEndpoint == "" || dashIndex == "" {
		exitf("usage: tlog-esreplay -endpoint <url> -index <name> [-o <file>]\n")
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{dashEndpoint},
		Username:  dashUser,
		Password:  dashPass,
	})
	if err != nil {
		exitf("connecting to elasticsearch: %s\n", err)
	}

	var out *os.File
	if dashOut == "-" {
		out = os.Stdout
	} else {
		out, err = os.Create(dashOut)
		if err != nil {
			exitf("creating output: %s\n", err)
		}
		defer out.Close()
	}
	writer := transport.NewFileWriter(out)

	reader := transport.NewESReader(client, dashIndex, dashPage)
	if dashSince != "" {
		d, ok := date.ParseDuration(dashSince)
		if !ok {
			exitf("invalid -since duration %q\n", dashSince)
		}
		cutoff := d.Sub(date.Now())
		reader = reader.Since(cutoff)
	}

	var n uint64
	for {
		line, ok, err := reader.Read()
		if err != nil {
			exitf("reading from index %q: %s\n", dashIndex, err)
		}
		if !ok {
			break
		}
		n++
		if err := writer.Write(n, append(line, '\n')); err != nil {
			exitf("writing output: %s\n", err)
		}
	}
	logf("replayed %d records from %q\n", n, dashIndex)
}
