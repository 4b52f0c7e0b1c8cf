package fake

import opentracing "github.com/opentracing/opentracing-go"

// GetTracerWithError is used to mock `tracing.GetTracer` with an error.
func GetTracerWithError(service string) (opentracing.Tracer, error) {
	return nil, fakeErr
}

// GetTracerEmpty is used to mock `tracing.GetTracer` with an empty tracer.
func GetTracerEmpty(_ string) (opentracing.Tracer, error) {
	return opentracing.NoopTracer{}, nil
}
