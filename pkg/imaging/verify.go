package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ncw/directio"
	"github.com/tarndt/rawblk/pkg/asyncio"
)

//VerifyImage reads the device through h and compares it with src, the device
// read of each chunk is in flight while the matching chunk of src is read. The
// number of bytes verified is returned.
func VerifyImage(ctx context.Context, h *asyncio.Handle, src io.Reader, sectorSize uint64, opts ...Option) (uint64, error) {
	conf, err := newStreamConf(sectorSize, opts)
	if err != nil {
		return 0, err
	}

	devBuf := directio.AlignedBlock(int(conf.chunkSize))
	srcBuf := make([]byte, conf.chunkSize)
	var verified uint64
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return verified, ctxErr
		}

		before, err := h.TransferredSize()
		if err != nil {
			return verified, err
		}
		if err = h.Read(devBuf); err != nil {
			return verified, err
		}

		count, readErr := io.ReadFull(src, srcBuf)
		waitErr := conf.retry.Wait(ctx, h)
		if readErr != nil && !errors.Is(readErr, io.EOF) && !errors.Is(readErr, io.ErrUnexpectedEOF) {
			return verified, fmt.Errorf("Could not read image after %d bytes: %w", verified, readErr)
		}
		if waitErr != nil {
			return verified, fmt.Errorf("Could not read %q after %d bytes: %w", h.Path(), verified, waitErr)
		}
		if count == 0 {
			return verified, nil
		}

		after, err := h.TransferredSize()
		if err != nil {
			return verified, err
		}
		if devCount := int(after - before); devCount < count {
			return verified, fmt.Errorf("Device %q ended after %d bytes, the image is longer: %w", h.Path(), verified+uint64(devCount), ErrVerifyMismatch)
		}

		if !bytes.Equal(devBuf[:count], srcBuf[:count]) {
			offset := verified
			for i := 0; i < count && devBuf[i] == srcBuf[i]; i++ {
				offset++
			}
			conf.logger.Printf("imaging::VerifyImage(): %q differs from the image at byte %d", h.Path(), offset)
			return verified, fmt.Errorf("Device %q differs at byte %d: %w", h.Path(), offset, ErrVerifyMismatch)
		}
		verified += uint64(count)
		conf.report(verified)

		if readErr != nil {
			return verified, nil
		}
	}
}
