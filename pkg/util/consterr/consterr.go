package consterr

//ConstErr is used to be able to declare constants that are errors that are strings,
// this lets each layer export sentinels callers can match with errors.Is
type ConstErr string

//Error returns the value of the underlying string
func (errstr ConstErr) Error() string { return string(errstr) }

//ErrUnsupported is returned by platform specific code paths that have no
// implementation on the running operating system
const ErrUnsupported = ConstErr("Operation is not supported on this platform")

var _ error = ErrUnsupported //compile time type check
