package session

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dicomstore/dicomstore/dicom"
	dicomerrors "github.com/dicomstore/dicomstore/errors"
)

var (
	tagStudyInstanceUID  = dicom.Tag{Group: 0x0020, Element: 0x000D}
	tagSeriesInstanceUID = dicom.Tag{Group: 0x0020, Element: 0x000E}
	tagSOPInstanceUID    = dicom.Tag{Group: 0x0008, Element: 0x0018}
	tagSOPClassUID       = dicom.Tag{Group: 0x0008, Element: 0x0016}
	tagModality          = dicom.Tag{Group: 0x0008, Element: 0x0060}
	tagPatientID         = dicom.Tag{Group: 0x0010, Element: 0x0020}
	tagStudyDate         = dicom.Tag{Group: 0x0008, Element: 0x0020}
)

// IndexFiles walks input (a single file or a directory) and returns a
// DicomFile for every entry with a .dcm extension that parses as a DICOM
// Part 10 file. recursive controls whether subdirectories are descended
// into. Files that fail to parse are logged and skipped; files that parse
// but are missing a required UID are still returned, with the missing
// field set to its Unknown* placeholder per the indexing collaborator's
// supplementary contract.
func IndexFiles(input string, recursive bool, logger zerolog.Logger) ([]DicomFile, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		file, ok := indexOne(input, logger)
		if !ok {
			return nil, nil
		}
		return []DicomFile{file}, nil
	}

	var files []DicomFile
	walker := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != input && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !isDicomExtension(path) {
			return nil
		}
		if file, ok := indexOne(path, logger); ok {
			files = append(files, file)
		}
		return nil
	}

	if err := filepath.WalkDir(input, walker); err != nil {
		return nil, err
	}

	return files, nil
}

func isDicomExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".dcm"
}

// indexOne reads and parses a single file into a DicomFile. The second
// return value is false when the file could not be read, did not look
// like a DICOM Part 10 file, or its dataset failed to parse; a dataset
// that parses but lacks a UID does not fail the file, since missing UIDs
// downgrade to placeholders instead.
func indexOne(path string, logger zerolog.Logger) (DicomFile, bool) {
	l := logger
	if l.GetLevel() == zerolog.Disabled {
		l = log.Logger
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		l.Warn().Err(dicomerrors.NewDicomReadError(path, err)).Str("path", path).Msg("failed to read file during indexing")
		return DicomFile{}, false
	}

	datasetBytes, transferSyntaxUID, err := dicom.SplitPart10Header(raw)
	if err != nil {
		l.Warn().Err(dicomerrors.NewDicomReadError(path, err)).Str("path", path).Msg("failed to strip Part 10 header")
		return DicomFile{}, false
	}

	dataset, err := dicom.ParseDatasetWithTransferSyntax(datasetBytes, transferSyntaxUID)
	if err != nil {
		l.Warn().Err(dicomerrors.NewDicomReadError(path, err)).Str("path", path).Msg("failed to parse dataset during indexing")
		return DicomFile{}, false
	}

	file := DicomFile{
		Path:              path,
		StudyInstanceUID:  firstNonEmpty(trimUID(dataset.GetString(tagStudyInstanceUID)), UnknownStudyUID),
		SeriesInstanceUID: firstNonEmpty(trimUID(dataset.GetString(tagSeriesInstanceUID)), UnknownSeriesUID),
		SOPInstanceUID:    firstNonEmpty(trimUID(dataset.GetString(tagSOPInstanceUID)), UnknownSOPInstance),
		SOPClassUID:       firstNonEmpty(trimUID(dataset.GetString(tagSOPClassUID)), UnknownSOPClass),
		Modality:          trimUID(dataset.GetString(tagModality)),
		PatientID:         trimUID(dataset.GetString(tagPatientID)),
		StudyDate:         trimUID(dataset.GetString(tagStudyDate)),
		FileSize:          int64(len(raw)),
	}

	if !file.hasRequiredUIDs() {
		l.Warn().Str("path", path).Msg("file is missing one or more required UIDs, attempting with placeholders")
	}

	return file, true
}

func firstNonEmpty(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
