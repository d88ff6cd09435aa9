// berealex exports a BeReal GDPR data dump into an organized, metadata-tagged
// media directory.
package main

import (
	"errors"
	"flag"
	"os"

	_ "image/jpeg"
	_ "image/png"

	"k8s.io/klog/v2"

	berealex "github.com/berealex/berealex/pkg/berealex"
)

var (
	berealPath   = flag.String("bereal-path", ".", "Location of the BeReal export")
	outPath      = flag.String("out-path", "./out", "Location of the output directory")
	exiftoolPath = flag.String("exiftool-path", "", "Path to the exiftool executable (needed if it isn't on the $PATH)")

	timespan = flag.String("timespan", "", "Export only the given timespan ('DD.MM.YYYY-DD.MM.YYYY', '*' as wildcard)")
	year     = flag.Int("year", 0, "Export only the given year")

	fallbackTZ = flag.String("fallback-tz", "UTC", "Timezone to assume when a record has no usable GPS coordinate")
	noGPSTZ    = flag.Bool("no-gps-tz", false, "Don't derive timezones from GPS coordinates")

	workers   = flag.Int("workers", 4, "Number of export workers (1 runs sequentially)")
	composite = flag.Bool("composite", false, "Also produce merged front-over-back images")

	noMemories      = flag.Bool("no-memories", false, "Don't export the memories")
	noPosts         = flag.Bool("no-posts", false, "Don't export the posts")
	noRealmojis     = flag.Bool("no-realmojis", false, "Don't export the realmojis")
	noConversations = flag.Bool("no-conversations", false, "Don't export conversation media")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	code := run()
	klog.Flush()
	os.Exit(code)
}

// run holds the deferred exiftool shutdown; os.Exit stays in main so the
// child process is always reaped.
func run() int {
	filter, err := berealex.NewDateFilter(*timespan, *year)
	if err != nil {
		klog.Exitf("date filter: %v", err)
	}

	cfg := &berealex.Config{
		BeRealPath:    *berealPath,
		OutPath:       *outPath,
		ExiftoolPath:  *exiftoolPath,
		FallbackTZ:    *fallbackTZ,
		UseGPSTZ:      !*noGPSTZ,
		Filter:        filter,
		Workers:       *workers,
		Composite:     *composite,
		Memories:      !*noMemories,
		Posts:         !*noPosts,
		Realmojis:     !*noRealmojis,
		Conversations: !*noConversations,
	}
	if err := cfg.Validate(); err != nil {
		klog.Exitf("configuration: %v", err)
	}

	tz, err := berealex.NewTimezoneResolver(cfg.FallbackTZ, cfg.UseGPSTZ)
	if err != nil {
		klog.Exitf("timezone resolver: %v", err)
	}

	writer, err := berealex.NewExiftoolWriter(cfg.ExiftoolPath)
	if err != nil {
		klog.Exitf("exiftool: %v", err)
	}
	defer writer.Close()

	summary, err := berealex.NewExporter(cfg, tz, writer).Run()
	if err != nil {
		var ce *berealex.ConfigError
		if errors.As(err, &ce) {
			klog.Errorf("configuration: %v", ce)
		} else {
			klog.Errorf("export failed: %v", err)
		}
		return 1
	}

	summary.Log()
	if summary.AllFailed() {
		klog.Errorf("every job failed")
		return 1
	}
	return 0
}
