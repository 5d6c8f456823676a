package sentinel

var _ error = Error("")

// Error is an error backed by a string constant. Two Error values with the
// same text are equal, so errors.Is matches them with plain ==.
type Error string

func (e Error) Error() string {
	return string(e)
}
