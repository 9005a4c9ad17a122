//go:build !windows

package credentials

// ReadFromStore reports that there is no credential store on this platform.
// The credentials are then kept in the configuration file.
func (this *Credentials) ReadFromStore() (supported bool, err error) {
	return false, nil
}

func (this *Credentials) WriteToStore() (supported bool, err error) {
	return false, nil
}
