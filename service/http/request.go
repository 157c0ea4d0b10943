package http

type request struct {
	id       string
	method   string
	url      string
	path     string
	clientIP string
	body     []byte
}

// response is the body of every reply. Output holds the command's printable
// result, Error the failure message.
type response struct {
	Status int    `json:"status"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}
