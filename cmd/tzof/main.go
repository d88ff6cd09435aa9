// tzof resolves "lat,lon" pairs to IANA timezone names, using the same
// lookup the exporter uses.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	berealex "github.com/berealex/berealex/pkg/berealex"
)

var fallback = flag.String("fallback", "UTC", "Timezone to print when a point doesn't resolve")

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if len(flag.Args()) == 0 {
		klog.Exitf("Usage: %s [-fallback ZONE] lat,lon [lat,lon ...]", os.Args[0])
	}

	tz, err := berealex.NewTimezoneResolver(*fallback, true)
	if err != nil {
		klog.Exitf("timezone resolver: %v", err)
	}

	for _, arg := range flag.Args() {
		latStr, lonStr, ok := strings.Cut(arg, ",")
		if !ok {
			klog.Exitf("%q: want lat,lon", arg)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		if err != nil {
			klog.Exitf("%q: %v", arg, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
		if err != nil {
			klog.Exitf("%q: %v", arg, err)
		}

		fmt.Printf("%s\t%s\n", arg, tz.Resolve(&berealex.Location{Latitude: lat, Longitude: lon}))
	}
}
