package api

// Response is the uniform JSON envelope of every API endpoint.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

func respOK(data any) Response {
	return Response{OK: true, Data: data}
}

func respError(msg string) Response {
	return Response{OK: false, Error: msg}
}
