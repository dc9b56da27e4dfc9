package models

const (
	ErrorKindConfiguration = "configuration"
	ErrorKindNumerical     = "numerical"
	ErrorKindInternal      = "internal"
)

type ServiceResponse[T any] struct {
	Data      *T     `json:"data"`
	Error     string `json:"error"`
	ErrorKind string `json:"errorKind,omitempty"`
}

func GetServiceResponseOk[T any](data *T) ServiceResponse[T] {
	return ServiceResponse[T]{
		Data: data,
	}
}

func GetServiceResponseError(kind, errorMessage string) ServiceResponse[any] {
	return ServiceResponse[any]{
		Data:      nil,
		Error:     errorMessage,
		ErrorKind: kind,
	}
}
