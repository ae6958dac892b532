package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zhukovaskychina/xswap-engine/swap/store"
	"github.com/zhukovaskychina/xswap-engine/util"
)

// Formats a swap store file the way mkswap prepares a swap area: a
// header page in slot 0 with magic, uuid and label, the rest zeroed.
func main() {
	var (
		path     string
		sizeMB   int64
		pageSize int
		label    string
		force    bool
	)
	flag.StringVar(&path, "path", "", "swap文件路径")
	flag.Int64Var(&sizeMB, "size", 64, "store size in MB")
	flag.IntVar(&pageSize, "pagesize", 4096, "page size in bytes")
	flag.StringVar(&label, "label", "", "store label (up to 32 bytes)")
	flag.BoolVar(&force, "force", false, "overwrite an existing file")
	flag.Parse()

	if path == "" {
		fmt.Fprintln(os.Stderr, "mkswapstore: -path is required")
		flag.Usage()
		os.Exit(2)
	}
	if util.PathExists(path) && !force {
		fmt.Fprintf(os.Stderr, "mkswapstore: %s already exists, pass -force to overwrite\n", path)
		os.Exit(1)
	}

	header, err := store.FormatStore(path, sizeMB<<20, pageSize, label)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkswapstore: %v\n", err)
		os.Exit(1)
	}

	// slot 0 carries the header, LastSlot is the count of usable slots
	usable := header.LastSlot
	fmt.Printf("Setting up swap store %s:\n", path)
	fmt.Printf("  page size = %d bytes\n", pageSize)
	fmt.Printf("  slots     = %d (%d MB usable)\n", usable, usable*uint64(pageSize)>>20)
	fmt.Printf("  label     = %q\n", header.Label)
	fmt.Printf("  uuid      = %s\n", header.UUIDString())
}
