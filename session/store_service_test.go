package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dicomstore/dicomstore/dimse"
	"github.com/dicomstore/dicomstore/interfaces"
	"github.com/dicomstore/dicomstore/types"
)

func TestNewStoreServiceCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	_, err := NewStoreService(dir, zerolog.Nop())
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestStoreServiceHandleDIMSEPersistsDataset(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStoreService(dir, zerolog.Nop())
	require.NoError(t, err)

	req := &types.Message{
		CommandField:           dimse.CStoreRQ,
		MessageID:              7,
		AffectedSOPClassUID:    "1.2.840.10008.5.1.4.1.1.2",
		AffectedSOPInstanceUID: "1.2.3.4.5",
		CommandDataSetType:     0x0000,
	}
	datasetBytes := []byte{0x01, 0x02, 0x03, 0x04}

	resp, dataset, err := store.HandleDIMSE(context.Background(), req, datasetBytes, interfaces.MessageContext{PresentationContextID: 1})
	require.NoError(t, err)
	require.Nil(t, dataset)
	require.NotNil(t, resp)

	require.Equal(t, uint16(dimse.CStoreRSP), resp.CommandField)
	require.Equal(t, req.MessageID, resp.MessageIDBeingRespondedTo)
	require.Equal(t, req.AffectedSOPClassUID, resp.AffectedSOPClassUID)
	require.Equal(t, req.AffectedSOPInstanceUID, resp.AffectedSOPInstanceUID)
	require.Equal(t, uint16(dimse.StatusSuccess), resp.Status)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Name(), "received_")
	require.Contains(t, entries[0].Name(), "_1.dcm")

	written, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Equal(t, datasetBytes, written)
}

func TestStoreServiceHandleDIMSEFailureStatusOnWriteError(t *testing.T) {
	// Point outputDir at a path that cannot be written to by replacing the
	// directory with a file after construction.
	dir := t.TempDir()
	store, err := NewStoreService(dir, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("not a directory"), 0o644))

	req := &types.Message{
		CommandField:           dimse.CStoreRQ,
		MessageID:              1,
		AffectedSOPClassUID:    "1.2.840.10008.5.1.4.1.1.2",
		AffectedSOPInstanceUID: "1.2.3.4.5",
	}

	resp, _, err := store.HandleDIMSE(context.Background(), req, []byte{0x01}, interfaces.MessageContext{})
	require.NoError(t, err)
	require.Equal(t, uint16(dimse.StatusFailure), resp.Status)
}

func TestStoreServiceFlushPartialDatasetPersistsBytes(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStoreService(dir, zerolog.Nop())
	require.NoError(t, err)

	partial := []byte{0xAA, 0xBB, 0xCC}
	store.FlushPartialDataset(partial, 5)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Name(), "_5.dcm")

	written, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Equal(t, partial, written)
}

func TestReceivedFilenameFormat(t *testing.T) {
	ts := time.Date(2026, 7, 29, 13, 5, 9, 123456000, time.UTC)
	name := receivedFilename(ts, 3)
	require.Equal(t, "received_20260729_130509_123456_3.dcm", name)
}
