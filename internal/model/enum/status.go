package enum

// Status tags a Result as success or failure on the wire.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

func (s Status) IsAvailable() bool {
	return s == StatusOK || s == StatusError
}
