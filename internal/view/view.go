package view

type Response[T any] struct {
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"error_code,omitempty"`
	Message string `json:"message,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"error_code,omitempty"`
}

// CreateResponse builds the common API envelope. err may be nil.
func CreateResponse[T any](data T, err error, code string, message string) Response[T] {
	resp := Response[T]{
		Data:    data,
		Code:    code,
		Message: message,
	}
	if err != nil {
		resp.Error = err.Error()
	}

	return resp
}
