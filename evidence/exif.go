package evidence

import (
	"bytes"
	"fmt"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/TegranGrigorian/tiktok-cleaner/logger"
)

// probeCameraMetadata decodes EXIF from the file head and renders any
// capture fields as indicator strings. Real camera photos carry these;
// screenshots and re-encoded downloads do not, so the detector uses
// their presence to rule a file out.
func probeCameraMetadata(head []byte) []string {
	x, err := exif.Decode(bytes.NewReader(head))
	if err != nil {
		return nil
	}

	var found []string
	appendField := func(name exif.FieldName, label string) {
		tag, tagErr := x.Get(name)
		if tagErr != nil {
			return
		}
		value := tag.String()
		if value == "" {
			return
		}
		found = append(found, fmt.Sprintf("%s: %s", label, value))
	}

	appendField(exif.FocalLength, "Focal Length")
	appendField(exif.ISOSpeedRatings, "ISO Speed")
	appendField(exif.FNumber, "Aperture")
	appendField(exif.ExposureTime, "Exposure Time")
	appendField(exif.Make, "Camera Make")
	appendField(exif.Model, "Camera Model")

	if len(found) > 0 {
		logger.Debugf("Found %d EXIF capture fields", len(found))
	}
	return found
}
