//go:build !opencl

package particles

// NewOpenCLDevice is unavailable without the opencl build tag.
func NewOpenCLDevice() (Device, error) {
	return nil, ErrOpenCLUnavailable
}
