package imgproc

import (
	"fmt"
	"os"
	"time"

	goexif "github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/photon-img/photon/pkg/record"
)

// ExtractEXIF is lenient by design (spec §4.11 step 5): it returns
// whatever subset of fields is present and never fails the pipeline.
// A nil result means every field was absent (including "no EXIF
// segment at all" and "corrupt EXIF segment").
func ExtractEXIF(path string) *record.Exif {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	x, err := goexif.Decode(f)
	if err != nil {
		return nil
	}

	out := &record.Exif{}
	any := false

	if t, err := x.DateTime(); err == nil {
		out.CapturedAt = t.Format(time.RFC3339)
		any = true
	}
	if tag, err := x.Get(goexif.Make); err == nil {
		if s, err := tag.StringVal(); err == nil {
			out.CameraMake = s
			any = true
		}
	}
	if tag, err := x.Get(goexif.Model); err == nil {
		if s, err := tag.StringVal(); err == nil {
			out.CameraModel = s
			any = true
		}
	}
	if lat, lon, err := x.LatLong(); err == nil {
		out.GPSLatitude = &lat
		out.GPSLongitude = &lon
		any = true
	}
	if tag, err := x.Get(goexif.ISOSpeedRatings); err == nil {
		if v, err := tag.Int(0); err == nil {
			out.ISO = v
			any = true
		}
	}
	if tag, err := x.Get(goexif.FNumber); err == nil {
		if v := rationalToFloat(tag); v != 0 {
			out.Aperture = v
			any = true
		}
	}
	if tag, err := x.Get(goexif.ExposureTime); err == nil {
		if s, err := tag.StringVal(); err == nil {
			out.ShutterSpeed = s
			any = true
		} else {
			num, den, err := tag.Rat2(0)
			if err == nil && den != 0 {
				out.ShutterSpeed = fmt.Sprintf("%d/%d", num, den)
				any = true
			}
		}
	}
	if tag, err := x.Get(goexif.FocalLength); err == nil {
		if v := rationalToFloat(tag); v != 0 {
			out.FocalLength = v
			any = true
		}
	}
	if tag, err := x.Get(goexif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil {
			out.Orientation = v
			any = true
		}
	}

	if !any {
		return nil
	}
	return out
}

func rationalToFloat(tag *tiff.Tag) float64 {
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
