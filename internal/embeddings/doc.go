// Package embeddings turns text into dense vectors.
//
// Two providers are available: FastEmbed runs ONNX models in-process (cgo
// builds only) and TEI calls a text-embeddings-inference server over HTTP.
// New selects one from a ProviderConfig and wraps it with OpenTelemetry
// metrics. Dimensions of the known models are available without loading
// them, so collections can be described before the first embedding call.
package embeddings
