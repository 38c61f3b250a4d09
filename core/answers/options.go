package answers

type StreamOptions struct {
	// DataCallback is called for every decoded chunk except the completion
	// marker, in arrival order
	DataCallback func(Chunk)
	// ErrorCallback is called at most once, when the request or the
	// response body fails. It is never called together with
	// CompletionCallback.
	ErrorCallback func(error)
	// CompletionCallback is called exactly once after the whole body was
	// consumed, unless the request failed or was cancelled
	CompletionCallback func(Summary)
}

type StreamOption func(*StreamOptions)

func WithDataCallback(callback func(Chunk)) StreamOption {
	return func(o *StreamOptions) {
		if callback != nil {
			o.DataCallback = callback
		}
	}
}

func WithErrorCallback(callback func(error)) StreamOption {
	return func(o *StreamOptions) {
		if callback != nil {
			o.ErrorCallback = callback
		}
	}
}

func WithCompletionCallback(callback func(Summary)) StreamOption {
	return func(o *StreamOptions) {
		if callback != nil {
			o.CompletionCallback = callback
		}
	}
}

func newStreamOptions(opts ...StreamOption) StreamOptions {
	options := StreamOptions{
		DataCallback:       func(Chunk) {},
		ErrorCallback:      func(error) {},
		CompletionCallback: func(Summary) {},
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
