//go:build !linux

package watcher

type unsupported struct{}

func newSource() (BusSource, error)   { return nil, ErrUnsupported }
func newEnumerator(string) Enumerator { return unsupported{} }

func (unsupported) Enumerate() ([]RawEvent, error) { return nil, ErrUnsupported }
