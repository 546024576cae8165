//go:build !windows

package serac

// newPlatformDriver returns a driver whose Open fails with ErrUnsupported.
// Everything else in the package works against enginetest on any OS.
func newPlatformDriver() Driver {
	return unsupportedDriver{}
}

type unsupportedDriver struct{}

func (unsupportedDriver) Open(SessionConfig) error { return ErrUnsupported }
func (unsupportedDriver) Close() error { return ErrUnsupported }
func (unsupportedDriver) BeginTransaction() error { return ErrUnsupported }
func (unsupportedDriver) CommitTransaction() error { return ErrUnsupported }
func (unsupportedDriver) AbortTransaction() error { return ErrUnsupported }
func (unsupportedDriver) AddFilter(*Filter) (uint64, error) { return 0, ErrUnsupported }
func (unsupportedDriver) AddSubLayer(*SubLayer) error { return ErrUnsupported }
func (unsupportedDriver) AddProvider(*Provider) error { return ErrUnsupported }
func (unsupportedDriver) RemoveFilterByID(uint64) error { return ErrUnsupported }
func (unsupportedDriver) RemoveFilterByKey(GUID) error { return ErrUnsupported }
func (unsupportedDriver) RemoveSubLayer(GUID) error { return ErrUnsupported }
func (unsupportedDriver) RemoveProvider(GUID) error { return ErrUnsupported }

func (unsupportedDriver) OpenFilterEnum(FilterQuery) (EnumHandle, error) { return 0, ErrUnsupported }
func (unsupportedDriver) EnumFilters(EnumHandle, int) ([]FilterInfo, error) {
	return nil, ErrUnsupported
}
func (unsupportedDriver) CloseFilterEnum(EnumHandle) error { return ErrUnsupported }
func (unsupportedDriver) OpenSubLayerEnum() (EnumHandle, error) { return 0, ErrUnsupported }
func (unsupportedDriver) EnumSubLayers(EnumHandle, int) ([]SubLayer, error) {
	return nil, ErrUnsupported
}
func (unsupportedDriver) CloseSubLayerEnum(EnumHandle) error { return ErrUnsupported }

func (unsupportedDriver) AppID(string) ([]byte, error) { return nil, ErrUnsupported }
