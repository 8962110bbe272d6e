package main

import (
	"bytes"
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
	"github.com/tarndt/rawblk/cmd/rawblk/conf"
	"github.com/tarndt/rawblk/pkg/dataio"
	"github.com/tarndt/rawblk/pkg/util"
)

const testImageSize = 256 * 1024

func mustConfig(t *testing.T, args ...string) *conf.Config {
	cfg, err := conf.ParseArgs("rawblk", args, new(bytes.Buffer))
	require.NoError(t, err, "Could not parse %q", args)
	return cfg
}

func randomImage(t *testing.T, dir, name string, size int) (string, []byte) {
	data := make([]byte, size)
	rand.New(rand.NewSource(int64(size))).Read(data)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path, data
}

func TestByteRangeModes(t *testing.T) {
	dir := t.TempDir()
	target, _ := randomImage(t, dir, "target.img", testImageSize)
	ctx := context.Background()

	cfg := mustConfig(t, "-mode=patch", "-offset=510", "-data=0x55aa", target)
	require.Zero(t, runTargets(ctx, cfg, new(bytes.Buffer)))

	raw, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, []byte{0x55, 0xaa}, raw[510:512])

	var out bytes.Buffer
	cfg = mustConfig(t, "-mode=check", "-offset=510", "-data=55aa", target)
	require.Zero(t, runTargets(ctx, cfg, &out))
	require.Contains(t, out.String(), "55aa found at offset 510")

	cfg = mustConfig(t, "-mode=check", "-offset=512", "-data=55aa", target)
	require.Equal(t, 1, runTargets(ctx, cfg, new(bytes.Buffer)), "Check at the wrong offset should fail")

	out.Reset()
	cfg = mustConfig(t, "-mode=read", "-offset=508", "-length=4", target)
	require.Zero(t, runTargets(ctx, cfg, &out))
	require.Contains(t, out.String(), "55 aa")
}

func TestClearMode(t *testing.T) {
	dir := t.TempDir()
	first, data := randomImage(t, dir, "first.img", testImageSize)
	second, _ := randomImage(t, dir, "second.img", testImageSize)

	cfg := mustConfig(t, "-mode=clear", "-concurrency=2", first, second)
	require.Zero(t, runTargets(context.Background(), cfg, new(bytes.Buffer)))

	for _, target := range []string{first, second} {
		raw, err := os.ReadFile(target)
		require.NoError(t, err)
		require.Len(t, raw, testImageSize)
		require.True(t, util.IsZeros(raw[:128*512]), "Head of %q was not cleared", target)
		require.True(t, util.IsZeros(raw[testImageSize-16*512:]), "Tail of %q was not cleared", target)
	}

	raw, err := os.ReadFile(first)
	require.NoError(t, err)
	middle := raw[128*512 : testImageSize-16*512]
	require.Equal(t, data[128*512:testImageSize-16*512], middle, "Sectors between the partition tables should be untouched")
}

func TestWriteVerifyZeroModes(t *testing.T) {
	dir := t.TempDir()
	_, data := randomImage(t, dir, "plain.img", testImageSize)

	imagePath := filepath.Join(dir, "image.img.gz")
	imageFile, err := os.Create(imagePath)
	require.NoError(t, err)
	gzw := gzip.NewWriter(imageFile)
	_, err = gzw.Write(data)
	require.NoError(t, err)
	require.NoError(t, gzw.Close())
	require.NoError(t, imageFile.Close())

	ctx := context.Background()
	target := filepath.Join(dir, "target.img")

	cfg := mustConfig(t, "-mode=write", "-image="+imagePath, "-chunk-size=64 KiB", "-verify", target)
	require.Zero(t, runTargets(ctx, cfg, new(bytes.Buffer)))

	written, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, data, written)

	cfg = mustConfig(t, "-mode=verify", "-image="+imagePath, target)
	require.Zero(t, runTargets(ctx, cfg, new(bytes.Buffer)))

	cfg = mustConfig(t, "-mode=zero", "-chunk-size=64 KiB", target)
	require.Zero(t, runTargets(ctx, cfg, new(bytes.Buffer)))

	zeroed, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Len(t, zeroed, testImageSize)
	require.True(t, util.IsZeros(zeroed))

	cfg = mustConfig(t, "-mode=verify", "-image="+imagePath, target)
	require.Equal(t, 1, runTargets(ctx, cfg, new(bytes.Buffer)), "Verify of a zeroed target should fail")
}

func TestInfoMode(t *testing.T) {
	target, _ := randomImage(t, t.TempDir(), "target.img", testImageSize)

	var out bytes.Buffer
	cfg := mustConfig(t, "-mode=info", target)
	require.Zero(t, runTargets(context.Background(), cfg, &out))
	require.Contains(t, out.String(), target)
	require.Contains(t, out.String(), "512")
}

func TestReadLengthBoundedBeforeAllocation(t *testing.T) {
	target, _ := randomImage(t, t.TempDir(), "target.img", testImageSize)

	cfg := mustConfig(t, "-mode=read", target)
	cfg.Length = conf.Capacity(1 << 60)
	_, err := readTarget(cfg, target)
	require.ErrorIs(t, err, dataio.ErrSpanTooLarge)
}
