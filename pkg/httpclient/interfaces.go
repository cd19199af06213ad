package httpclient

import "context"

// Response is the part of an HTTP response callers inspect.
type Response interface {
	Body() []byte
	StatusCode() int
	Status() string
}

// Client abstracts GET calls so fetchers can swap transports or inject fakes.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}
