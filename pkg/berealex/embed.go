package berealex

import (
	"fmt"

	"github.com/barasher/go-exiftool"
	"k8s.io/klog/v2"
)

var (
	exifDate       = "2006:01:02 15:04:05"
	exifDateOffset = "2006:01:02 15:04:05-07:00"
)

// MetadataWriter embeds capture time and GPS fields into an exported file.
// There is one real implementation (exiftool) plus a recording fake used by
// tests.
type MetadataWriter interface {
	Write(path string, ts ResolvedTimestamp, loc *Location, kind MediaKind) error
	Close() error
}

// metadataFields builds the tag set for a file. Image containers carry
// DateTimeOriginal/CreateDate/ModifyDate in local time; video containers use
// CreationDate with the numeric UTC offset so players reconstruct wall-clock
// time. GPS tags are only written when a coordinate is present.
func metadataFields(ts ResolvedTimestamp, loc *Location, kind MediaKind) map[string]interface{} {
	stamp := ts.Local.Format(exifDate)
	fields := map[string]interface{}{
		"CreateDate": stamp,
		"ModifyDate": stamp,
	}
	if kind == KindVideo {
		fields["CreationDate"] = ts.Local.Format(exifDateOffset)
	} else {
		fields["DateTimeOriginal"] = stamp
	}

	if loc != nil {
		fields["GPSLatitude"] = loc.Latitude
		fields["GPSLatitudeRef"] = loc.Latitude
		fields["GPSLongitude"] = loc.Longitude
		fields["GPSLongitudeRef"] = loc.Longitude
	}
	return fields
}

// ExiftoolWriter shells out to exiftool via a long-running process.
type ExiftoolWriter struct {
	et *exiftool.Exiftool
}

// NewExiftoolWriter starts an exiftool process. binPath overrides the binary
// location when exiftool is not on $PATH.
func NewExiftoolWriter(binPath string) (*ExiftoolWriter, error) {
	var opts []func(*exiftool.Exiftool) error
	if binPath != "" {
		opts = append(opts, exiftool.SetExiftoolBinaryPath(binPath))
	}

	et, err := exiftool.NewExiftool(opts...)
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	return &ExiftoolWriter{et: et}, nil
}

func (w *ExiftoolWriter) Write(path string, ts ResolvedTimestamp, loc *Location, kind MediaKind) error {
	fields := metadataFields(ts, loc, kind)
	klog.V(2).Infof("tagging %s: %v", path, fields)

	fms := []exiftool.FileMetadata{{File: path, Fields: fields}}
	w.et.WriteMetadata(fms)
	if fms[0].Err != nil {
		return fmt.Errorf("exiftool %s: %w", path, fms[0].Err)
	}
	return nil
}

func (w *ExiftoolWriter) Close() error {
	return w.et.Close()
}
