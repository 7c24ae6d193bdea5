// Command tananfs mounts a tananfs image as a FUSE filesystem: it formats
// the target the first time it sees an unrecognized device or image file,
// then mounts it, following spec §6's
// "<program> <block_device> <mount_point> [block_size]" invocation.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/sirupsen/logrus"

	"github.com/tananfs/tananfs"
	core "github.com/tananfs/tananfs/filesystem/tananfs"
	tfuse "github.com/tananfs/tananfs/fuse"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-size bytes] <block_device_or_image> <mount_point> [block_size]\n", os.Args[0])
		flag.PrintDefaults()
	}
	size := flag.Uint64("size", 256*1024*1024, "capacity in bytes to format a new image at, if it does not already carry a tananfs signature")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	args := flag.Args()
	if len(args) < 2 {
		flag.Usage()
		os.Exit(2)
	}
	devicePath := args[0]
	mountPoint := args[1]

	var requestedBlockSize uint64
	if len(args) >= 3 {
		parsed, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			logrus.Fatalf("tananfs: invalid block_size %q: %v", args[2], err)
		}
		requestedBlockSize = parsed
	}

	fsys, err := open(devicePath, requestedBlockSize, *size)
	if err != nil {
		logrus.Fatalf("tananfs: %v", err)
	}

	server, err := tfuse.Mount(mountPoint, fsys)
	if err != nil {
		logrus.Fatalf("tananfs: mounting at %s: %v", mountPoint, err)
	}
	logrus.WithFields(logrus.Fields{"device": devicePath, "mountpoint": mountPoint}).Info("tananfs: mounted")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logrus.Info("tananfs: unmounting")
		_ = server.Unmount()
	}()

	server.Wait()
}

// open formats devicePath if it does not already carry a tananfs signature,
// otherwise opens it at its existing (or explicitly requested) block size.
func open(devicePath string, requestedBlockSize, formatSize uint64) (*core.Filesystem, error) {
	if _, err := os.Stat(devicePath); os.IsNotExist(err) {
		return formatNew(devicePath, requestedBlockSize, formatSize)
	}

	detected, ok, err := tananfs.DetectExisting(devicePath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return formatNew(devicePath, requestedBlockSize, formatSize)
	}
	blockSize := detected
	if requestedBlockSize != 0 {
		blockSize = requestedBlockSize
	}
	return tananfs.Open(devicePath, blockSize)
}

func formatNew(devicePath string, requestedBlockSize, formatSize uint64) (*core.Filesystem, error) {
	blockSize := requestedBlockSize
	if blockSize == 0 {
		blockSize = deviceBlockSize(devicePath)
	}
	logrus.WithFields(logrus.Fields{"device": devicePath, "size": formatSize, "block_size": blockSize}).Info("tananfs: formatting new image")
	return tananfs.Format(devicePath, formatSize, blockSize)
}

// BLKSSZGET, the logical-sector-size ioctl request number on Linux.
const blksszGet = 0x1268

// deviceBlockSize reads the logical sector size off a real block device via
// ioctl, falling back to 0 (letting Format pick its own default) for plain
// files or devices that don't support the ioctl.
func deviceBlockSize(path string) uint64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.Mode()&os.ModeDevice == 0 {
		return 0
	}

	sectorSize, err := unix.IoctlGetInt(int(f.Fd()), blksszGet)
	if err != nil || sectorSize <= 0 {
		return 0
	}
	return uint64(sectorSize)
}
