package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CheckModelCompatibility checks that a model file written in fileFormat can
// be read by a reader of readerFormat.
//
// Compatibility Rules:
//   - An empty file format or "main" (development model) skips the check
//   - Major versions must match exactly
//   - The file's minor version must not be newer than the reader's
//   - Patch versions can differ
func CheckModelCompatibility(readerFormat, fileFormat string) error {
	readerFormat = strings.TrimPrefix(readerFormat, "v")
	fileFormat = strings.TrimPrefix(fileFormat, "v")

	if fileFormat == "" || fileFormat == "main" {
		return nil
	}

	reader, err := semver.NewVersion(readerFormat)
	if err != nil {
		return fmt.Errorf("invalid reader format '%s': %w", readerFormat, err)
	}

	file, err := semver.NewVersion(fileFormat)
	if err != nil {
		return fmt.Errorf("invalid model format '%s': %w", fileFormat, err)
	}

	if reader.Major() != file.Major() {
		return fmt.Errorf("major version mismatch: reader is %d.x.x but model is %d.x.x",
			reader.Major(), file.Major())
	}

	if file.Minor() > reader.Minor() {
		return fmt.Errorf("model format %d.%d.x is newer than supported %d.%d.x",
			file.Major(), file.Minor(), reader.Major(), reader.Minor())
	}

	return nil
}
