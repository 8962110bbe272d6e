package conf

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/tarndt/rawblk/pkg/dataio"
	"github.com/tarndt/rawblk/pkg/imaging"
)

//ErrHelp is returned by ParseArgs when help was requested
var ErrHelp = flag.ErrHelp

//MustGetConfig successful reads configuration from command-line arguments and
// creates a Config or it exits with feedback for the invoking user
func MustGetConfig() *Config {
	cfg, err := ParseArgs(os.Args[0], os.Args[1:], os.Stderr)
	switch {
	case errors.Is(err, ErrHelp):
		os.Exit(0)
	case err != nil:
		log.Fatalf("Bad argument: %s", err)
	}
	return cfg
}

//ParseArgs parses command-line arguments (excluding the program name) into a Config
func ParseArgs(progName string, args []string, output io.Writer) (*Config, error) {
	var modeName, devKind, compressName, dataHex string
	var help bool
	cfg := new(Config)

	fs := flag.NewFlagSet(progName, flag.ContinueOnError)
	fs.SetOutput(output)

	//General options
	fs.StringVar(&modeName, "mode", "", "Operation to perform on each target: 'write', 'zero', 'clear', 'verify', 'read', 'patch', 'check' or 'info'.")
	fs.StringVar(&devKind, "dev-type", "file", "How sector level modes (clear, read, patch, check) access targets: 'file', 'direct' (unbuffered) or 'mmap' (image files only).")
	fs.UintVar(&cfg.Concurrency, "concurrency", uint(runtime.NumCPU()), "Maximum number of targets to process at the same time")
	flagCapacityVar(fs, &cfg.SectorSize, "sector-size", 0, "Sector size of targets (0 implies probe the target, ex. 512 B, 4 KiB)")
	flagCapacityVar(fs, &cfg.LargeDriveBytes, "large-drive", 0, "Capacity at which a target is large and a zero byte write is tolerated (0 disables, ex. 2 TiB)")
	fs.StringVar(&cfg.MetricsListen, "metrics-listen", "", "Address to serve Prometheus metrics on (ex. localhost:9100), empty disables")
	fs.BoolVar(&help, "help", false, "Display help and exit")

	//Streaming options
	fs.StringVar(&cfg.ImagePath, "image", "", "Image file to write or verify against")
	fs.StringVar(&compressName, "compress", imaging.ModeAutoName,
		fmt.Sprintf("Compression of the image: %q (detect), %q, %q, %q or %q",
			imaging.ModeAutoName, imaging.ModeGzipName, imaging.ModeZstdName, imaging.ModeS2Name, imaging.ModeIdentityName),
	)
	flagCapacityVar(fs, &cfg.ChunkBytes, "chunk-size", imaging.DefaultChunkSize, "Size of each asynchronous transfer (ex. 4 MiB, 32 MiB)")
	fs.BoolVar(&cfg.Unbuffered, "unbuffered", false, "Bypass the OS cache when streaming")
	fs.BoolVar(&cfg.Verify, "verify", false, "Read targets back and compare them with the image after writing")
	fs.IntVar(&cfg.Retries, "retries", imaging.DefaultWriteRetries, "Times a failed write or timed out wait is retried")
	fs.DurationVar(&cfg.RetryDelay, "retry-delay", imaging.DefaultRetryDelay, "Time between write retries")
	fs.DurationVar(&cfg.WaitTimeout, "wait-timeout", imaging.DefaultWaitTimeout, "Time one wait on an asynchronous transfer lasts")

	//Byte range options
	fs.Uint64Var(&cfg.Offset, "offset", 0, "Byte offset of the range to read, patch or check")
	flagCapacityVar(fs, &cfg.Length, "length", 512, "Length of the range to read (ex. 512 B)")
	fs.StringVar(&dataHex, "data", "", "Hex encoded bytes to patch in or check for (ex. 55aa)")
	flagCapacityVar(fs, &cfg.MaxDataLength, "max-data-len", dataio.MaxDataLen, "Largest sector aligned span a byte range may cover (ex. 32 KiB)")

	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: %s -mode=<mode> [optional: options see below...] <target device or image>...\n"+
			"\tExample:\n"+
			"\t\tWrite a compressed image and verify it: sudo %s -mode=write -image=debian.img.zst -verify /dev/sdX\n"+
			"\t\tWipe the partition tables of two drives: sudo %s -mode=clear /dev/sdX /dev/sdY\n"+
			"\t\tCheck for a boot signature: %s -mode=check -offset=510 -data=55aa disk.img\n\n",
			progName, progName, progName, progName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if help {
		fs.Usage()
		return nil, ErrHelp
	}

	if cfg.Mode = NewMode(modeName); cfg.Mode == ModeUnknown {
		return nil, fmt.Errorf("Unknown mode: %q (use -mode=X)", modeName)
	}
	if cfg.BackingMode = NewBackingDevice(devKind); cfg.BackingMode == DevUnknown {
		return nil, fmt.Errorf("Unknown backing device type of: %q", devKind)
	}
	if cfg.Targets = fs.Args(); len(cfg.Targets) < 1 {
		return nil, fmt.Errorf("No target devices or images were provided")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	if cfg.Compress = imaging.ModeFromName(strings.ToLower(compressName)); cfg.Compress == imaging.ModeUnknown && !strings.EqualFold(compressName, imaging.ModeAutoName) {
		return nil, fmt.Errorf("Unknown compression: %q", compressName)
	}
	if cfg.Mode.NeedsImage() && cfg.ImagePath == "" {
		return nil, fmt.Errorf("Mode %s requires an image (use -image=X)", cfg.Mode)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("Retries cannot be negative: %d", cfg.Retries)
	}

	if cfg.Mode.NeedsData() {
		var err error
		if cfg.Data, err = hex.DecodeString(strings.TrimPrefix(dataHex, "0x")); err != nil {
			return nil, fmt.Errorf("Could not decode -data=%q as hex: %w", dataHex, err)
		} else if len(cfg.Data) == 0 {
			return nil, fmt.Errorf("Mode %s requires data (use -data=X)", cfg.Mode)
		}
	}
	if cfg.MaxDataLength == 0 || cfg.MaxDataLength > dataio.MaxDataLenLimit {
		return nil, fmt.Errorf("Max data length must be between 1 byte and %s: %s", humanize.IBytes(dataio.MaxDataLenLimit), &cfg.MaxDataLength)
	}
	if cfg.Mode == ModeRead && (cfg.Length == 0 || cfg.Length > cfg.MaxDataLength) {
		return nil, fmt.Errorf("Length must be between 1 byte and the max data length of %s: %s", &cfg.MaxDataLength, &cfg.Length)
	}
	if uint64(len(cfg.Data)) > cfg.MaxDataLength.Bytes() {
		return nil, fmt.Errorf("Data of %d bytes exceeds the max data length of %s", len(cfg.Data), &cfg.MaxDataLength)
	}
	return cfg, nil
}
