package diskutil

// SpaceChecker reports the bytes available to an unprivileged writer at path.
type SpaceChecker interface {
	Available(path string) (uint64, error)
}

// SpaceCheckerFunc adapts a plain function to SpaceChecker.
type SpaceCheckerFunc func(path string) (uint64, error)

func (f SpaceCheckerFunc) Available(path string) (uint64, error) {
	return f(path)
}

// StatfsChecker queries the filesystem backing path.
type StatfsChecker struct{}

func (StatfsChecker) Available(path string) (uint64, error) {
	return AvailableSpace(path)
}
