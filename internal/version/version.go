// ABOUTME: Version constants
// ABOUTME: Identifies the build in logs and remote hellos
package version

const (
	// Version is the release version
	Version = "0.3.0"

	// Product is the product name
	Product = "beatmix"

	// Manufacturer is the maintainer
	Manufacturer = "beatmix"
)

// String is the product and version for display
func String() string {
	return Product + " " + Version
}
