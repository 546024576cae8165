//go:build windows

package serac

// newPlatformDriver returns the fwpuclnt.dll client.
func newPlatformDriver() Driver {
	return &fwpClient{}
}
