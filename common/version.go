package common

// Version is the only wire version of stored credentials and presentations.
const Version = "v0"

// CheckVersion returns an UnsupportedVersionError for any version but Version.
func CheckVersion(v string) error {
	if v != Version {
		return &UnsupportedVersionError{Version: v}
	}
	return nil
}
