//go:build !govips || !cgo

package imaging

func Startup() error {
	return nil
}

func Shutdown() {}

func BackendName() string {
	return "stdlib"
}

func newBackend() (Backend, error) {
	return stdlibBackend{}, nil
}
