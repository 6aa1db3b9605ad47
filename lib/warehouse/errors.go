package warehouse

type ExecError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExecError) Error() string {
	return e.Message
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
