//Package imaging streams whole images to and from raw devices: writing
// (optionally compressed) images, zeroing drives, clearing partition tables
// and verifying what was written.
package imaging

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/ncw/directio"
	"github.com/tarndt/rawblk/pkg/asyncio"
	"github.com/tarndt/rawblk/pkg/util"
	"github.com/tarndt/rawblk/pkg/util/consterr"
	"github.com/tarndt/rawblk/pkg/util/strms"
)

const (
	//ErrSizeMismatch is returned when the device cursor disagrees with the bytes sent
	ErrSizeMismatch = consterr.ConstErr("Bytes transferred differ from bytes expected")
	//ErrVerifyMismatch is returned when the device content differs from the image
	ErrVerifyMismatch = consterr.ConstErr("Device content differs from the image")
)

//WriteImage writes src sequentially through h using two buffers, one filling
// while the other is in flight. The final chunk is zero padded to a whole
// sector. The bytes written (including padding) are returned.
func WriteImage(ctx context.Context, h *asyncio.Handle, src io.Reader, sectorSize uint64, opts ...Option) (uint64, error) {
	conf, err := newStreamConf(sectorSize, opts)
	if err != nil {
		return 0, err
	}

	start, err := h.TransferredSize()
	if err != nil {
		return 0, err
	}

	bufs := [2][]byte{directio.AlignedBlock(int(conf.chunkSize)), directio.AlignedBlock(int(conf.chunkSize))}
	var written uint64
	var inFlight bool
	for idx := 0; ; idx ^= 1 {
		if err = ctx.Err(); err != nil {
			break
		}

		buf := bufs[idx]
		count, readErr := io.ReadFull(src, buf)
		if readErr != nil && !errors.Is(readErr, io.EOF) && !errors.Is(readErr, io.ErrUnexpectedEOF) {
			err = fmt.Errorf("Could not read image after %d bytes: %w", written, readErr)
			break
		}
		if count == 0 {
			break
		}

		length := util.SectorAlign(uint64(count), conf.sectorSize)
		util.ZeroFill(buf[count:length])

		if inFlight {
			if err = conf.retry.Wait(ctx, h); err != nil {
				break
			}
			conf.report(written)
		}
		if err = h.Write(buf[:length]); err != nil {
			break
		}
		inFlight = true
		written += length

		if readErr != nil {
			break
		}
	}

	if inFlight {
		if waitErr := conf.retry.Wait(ctx, h); err == nil {
			err = waitErr
		}
	}
	if err != nil {
		conf.logger.Printf("imaging::WriteImage(): Write to %q failed after %s; Details: %s", h.Path(), humanize.IBytes(written), err)
		return written, fmt.Errorf("Could not write image to %q: %w", h.Path(), err)
	}
	conf.report(written)

	end, err := h.TransferredSize()
	if err != nil {
		return written, err
	}
	if transferred := uint64(end - start); transferred != written {
		conf.logger.Printf("imaging::WriteImage(): Device %q reports %d bytes transferred but %d were written", h.Path(), transferred, written)
		return transferred, fmt.Errorf("Could not confirm image write to %q (%d of %d bytes): %w", h.Path(), transferred, written, ErrSizeMismatch)
	}
	return written, nil
}

//ZeroDrive writes capacity bytes of zeros through h
func ZeroDrive(ctx context.Context, h *asyncio.Handle, capacity, sectorSize uint64, opts ...Option) (uint64, error) {
	opts = append([]Option{OptTotalSize(capacity)}, opts...)
	return WriteImage(ctx, h, io.LimitReader(strms.DevZero, int64(capacity)), sectorSize, opts...)
}
