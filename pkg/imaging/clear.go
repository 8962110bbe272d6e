package imaging

import (
	"context"
	"fmt"

	"github.com/ncw/directio"
	"github.com/tarndt/rawblk/pkg/sectorio"
	"github.com/tarndt/rawblk/pkg/util"
	"github.com/tarndt/rawblk/pkg/util/consterr"
)

const (
	//MaxSectorsToClear at the start of a drive covers the MBR and primary GPT
	MaxSectorsToClear = 128
	//BackupSectorsToClear at the end of a drive covers the backup GPT
	BackupSectorsToClear = MaxSectorsToClear / 8

	//ErrNotCleared is returned when a cleared region reads back non-zero
	ErrNotCleared = consterr.ConstErr("Partition table region is not zero after clearing")
)

//ClearPartitionTables zeroes the MBR and primary GPT at the start of a drive of
// totalSectors and the backup GPT at its end, then reads both back to confirm
func ClearPartitionTables(ctx context.Context, sio *sectorio.SectorIO, dev sectorio.Device, totalSectors uint64, retry RetryPolicy) error {
	head := uint64(MaxSectorsToClear)
	if head > totalSectors {
		head = totalSectors
	}
	tail := uint64(BackupSectorsToClear)
	if head+tail > totalSectors {
		tail = totalSectors - head
	}

	buf := directio.AlignedBlock(int(head * sio.SectorSize()))
	regions := []struct{ start, count uint64 }{
		{0, head},
		{totalSectors - tail, tail},
	}
	for _, region := range regions {
		if region.count == 0 {
			continue
		}
		span := buf[:region.count*sio.SectorSize()]

		util.ZeroFill(span)
		if _, err := retry.WriteSectors(ctx, sio, dev, region.start, region.count, span); err != nil {
			return fmt.Errorf("Could not clear %d sectors at sector %d: %w", region.count, region.start, err)
		}

		if _, err := sio.ReadSectors(dev, region.start, region.count, span); err != nil {
			return fmt.Errorf("Could not read back %d cleared sectors at sector %d: %w", region.count, region.start, err)
		}
		if !util.IsZeros(span) {
			sio.Logger().Printf("imaging::ClearPartitionTables(): Sectors %d-%d are not zero after being cleared", region.start, region.start+region.count)
			return fmt.Errorf("Could not clear %d sectors at sector %d: %w", region.count, region.start, ErrNotCleared)
		}
	}
	return nil
}
