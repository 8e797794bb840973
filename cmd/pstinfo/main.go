// Package main provides a command-line utility to inspect PST file
// contents. It opens a file, walks its node B-tree, and optionally dumps
// a node's property tags for debugging.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/pstkit/pst"
	"github.com/pstkit/pst/internal/ndb"
)

func main() {
	nid := flag.Uint("nid", 0, "dump the Property Context tags of this NID")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Println("Usage: pstinfo [flags] <file.pst>")
		fmt.Println("Flags:")
		flag.PrintDefaults()
		return
	}

	path := args[0]
	f, err := pst.Open(path)
	if err != nil {
		log.Fatalf("opening %s: %v", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("closing %s: %v", path, err)
		}
	}()

	fmt.Printf("%s: %d bytes, crypt method %v\n", path, f.Header.FileSize, f.Header.CryptMethod)

	if *nid != 0 {
		dumpNode(f, ndb.DecodeNID(uint32(*nid)))
		return
	}

	storeEntry, err := f.Node(ndb.NIDMessageStore)
	if err != nil {
		log.Fatalf("resolving message store: %v", err)
	}
	fmt.Printf("message store data bid: %s\n", storeEntry.BIDData)

	rootEntry, err := f.Node(ndb.NIDRootFolder)
	if err != nil {
		log.Fatalf("resolving root folder: %v", err)
	}
	fmt.Printf("root folder data bid: %s\n", rootEntry.BIDData)
}

func dumpNode(f *pst.File, nid ndb.NID) {
	pc, err := f.OpenPropertyContext(nid)
	if err != nil {
		log.Fatalf("opening property context for %s: %v", nid, err)
	}
	tags := pc.Tags()
	fmt.Printf("nid %s: %d properties\n", nid, len(tags))
	for _, tag := range tags {
		v, err := pc.As(tag)
		if err != nil {
			fmt.Printf("  0x%04X: <error: %v>\n", uint16(tag), err)
			continue
		}
		fmt.Printf("  0x%04X: %v\n", uint16(tag), v)
	}
}
