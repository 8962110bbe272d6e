package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/tarndt/rawblk/cmd/rawblk/conf"
	"github.com/tarndt/rawblk/pkg/asyncio"
	"github.com/tarndt/rawblk/pkg/imaging"
	"github.com/tarndt/rawblk/pkg/util/consterr"
	"github.com/tarndt/rawblk/pkg/util/strms"
)

const errUnknownCapacity = consterr.ConstErr("Target capacity is unknown")

//streamSectorSize is the configured sector size or, when unset, the probed one
func streamSectorSize(cfg *conf.Config, probed uint64) uint64 {
	if cfg.SectorSize > 0 {
		return cfg.SectorSize.Bytes()
	}
	return probed
}

func streamAttrs(cfg *conf.Config) asyncio.Attributes {
	if cfg.Unbuffered {
		return asyncio.AttrNoBuffering
	}
	return asyncio.AttrNone
}

func streamOpts(cfg *conf.Config, target string, total uint64) []imaging.Option {
	retry := cfg.RetryPolicy()
	retry.Logger = log.Default()
	opts := []imaging.Option{
		imaging.OptChunkSize(cfg.ChunkBytes.Bytes()),
		imaging.OptRetry(retry),
		imaging.OptProgress(progressLogger(target, total)),
	}
	if total > 0 {
		opts = append(opts, imaging.OptTotalSize(total))
	}
	return opts
}

func writeTarget(ctx context.Context, cfg *conf.Config, target string) error {
	geo, err := probeTarget(target)
	if err != nil {
		return err
	}

	src, mode, err := imaging.OpenImage(cfg.ImagePath, cfg.Compress)
	if err != nil {
		return err
	}
	defer src.Close()

	//Only an uncompressed image's size is known up front
	var total uint64
	if mode == imaging.ModeIdentity {
		if info, statErr := os.Stat(cfg.ImagePath); statErr == nil {
			total = uint64(info.Size())
		}
	}

	h, err := asyncio.Open(target, asyncio.AccessWrite, asyncio.ShareRead, asyncio.OpenAlways, streamAttrs(cfg), asyncio.OptLogger{Logger: log.Default()})
	if err != nil {
		return err
	}

	counted := strms.NewCountingReader(src)
	written, err := imaging.WriteImage(ctx, h, counted, streamSectorSize(cfg, geo.LogicalSectorSize), streamOpts(cfg, target, total)...)
	if closeErr := h.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("Could not close %q after writing: %w", target, closeErr)
	}
	if err != nil {
		return err
	}
	log.Printf("Wrote %s to %q from %s of %s image %q", humanize.IBytes(written), target, humanize.IBytes(uint64(counted.Count())), mode, cfg.ImagePath)

	if cfg.Verify {
		return verifyTarget(ctx, cfg, target)
	}
	return nil
}

func zeroTarget(ctx context.Context, cfg *conf.Config, target string) error {
	geo, err := probeTarget(target)
	if err != nil {
		return err
	}
	if geo.Capacity == 0 {
		return fmt.Errorf("Could not zero %q: %w", target, errUnknownCapacity)
	}

	h, err := asyncio.Open(target, asyncio.AccessWrite, asyncio.ShareRead, asyncio.OpenExisting, streamAttrs(cfg), asyncio.OptLogger{Logger: log.Default()})
	if err != nil {
		return err
	}

	zeroed, err := imaging.ZeroDrive(ctx, h, geo.Capacity, streamSectorSize(cfg, geo.LogicalSectorSize), streamOpts(cfg, target, geo.Capacity)...)
	if closeErr := h.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("Could not close %q after zeroing: %w", target, closeErr)
	}
	if err != nil {
		return err
	}
	log.Printf("Zeroed %s of %q", humanize.IBytes(zeroed), target)
	return nil
}

func verifyTarget(ctx context.Context, cfg *conf.Config, target string) error {
	geo, err := probeTarget(target)
	if err != nil {
		return err
	}

	src, mode, err := imaging.OpenImage(cfg.ImagePath, cfg.Compress)
	if err != nil {
		return err
	}
	defer src.Close()

	h, err := asyncio.Open(target, asyncio.AccessRead, asyncio.ShareRead|asyncio.ShareWrite, asyncio.OpenExisting, streamAttrs(cfg), asyncio.OptLogger{Logger: log.Default()})
	if err != nil {
		return err
	}
	defer h.Close()

	verified, err := imaging.VerifyImage(ctx, h, src, streamSectorSize(cfg, geo.LogicalSectorSize), streamOpts(cfg, target, 0)...)
	if err != nil {
		return fmt.Errorf("Could not verify %q against %q: %w", target, cfg.ImagePath, err)
	}
	log.Printf("Verified %s of %q against %s image %q", humanize.IBytes(verified), target, mode, cfg.ImagePath)
	return nil
}

//progressLogger logs every tenth of total, or every GiB when total is unknown
func progressLogger(target string, total uint64) imaging.ProgressFunc {
	const unknownStep = 1 << 30

	step := uint64(unknownStep)
	if total > 0 {
		if step = total / 10; step == 0 {
			step = total
		}
	}
	var next atomic.Uint64
	next.Store(step)

	return func(done, total uint64) {
		if done < next.Load() {
			return
		}
		for next.Load() <= done {
			next.Add(step)
		}
		if total > 0 {
			log.Printf("%q: %s of %s (%.0f%%)", target, humanize.IBytes(done), humanize.IBytes(total), float64(done)*100/float64(total))
		} else {
			log.Printf("%q: %s", target, humanize.IBytes(done))
		}
	}
}
